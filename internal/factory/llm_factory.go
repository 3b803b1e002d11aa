package factory

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/adapters/ai/bedrock"
	"github.com/hyinfo/phishgate/internal/adapters/ai/gemini"
	"github.com/hyinfo/phishgate/internal/adapters/ai/openai"
	"github.com/hyinfo/phishgate/internal/config"
	"github.com/hyinfo/phishgate/internal/core"
	"github.com/hyinfo/phishgate/internal/utils"
)

// LLMFactory creates AI classifiers
type LLMFactory struct {
	cfg      *config.Config
	logger   *zap.Logger
	textProc *utils.TextProcessor
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProc *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:      cfg,
		logger:   logger,
		textProc: textProc,
	}
}

// CreateClassifier creates an AI classifier based on the configuration
func (f *LLMFactory) CreateClassifier() (core.AIClassifier, error) {
	llmConfig := f.cfg.GetLLM()

	switch llmConfig.Provider {
	case "openai":
		return openai.NewClient(f.cfg.GetOpenAI(), f.textProc, f.logger), nil
	case "bedrock":
		bedrockCfg := f.cfg.GetBedrock()
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(bedrockCfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		return bedrock.NewClient(bedrockruntime.NewFromConfig(awsCfg), bedrockCfg, f.textProc, f.logger), nil
	case "gemini":
		return gemini.NewClient(f.cfg.GetGemini(), f.textProc, f.logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}
