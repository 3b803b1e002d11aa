package factory

import (
	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/adapters/vector"
	"github.com/hyinfo/phishgate/internal/config"
	"github.com/hyinfo/phishgate/internal/core"
	"github.com/hyinfo/phishgate/internal/utils"
)

// VectorFactory creates the similarity index when the feature is enabled
type VectorFactory struct {
	cfg      *config.Config
	logger   *zap.Logger
	textProc *utils.TextProcessor
}

// NewVectorFactory creates a new vector factory
func NewVectorFactory(cfg *config.Config, logger *zap.Logger, textProc *utils.TextProcessor) *VectorFactory {
	return &VectorFactory{
		cfg:      cfg,
		logger:   logger,
		textProc: textProc,
	}
}

// CreateSimilarityIndex creates a similarity index, or nil when disabled
func (f *VectorFactory) CreateSimilarityIndex() (core.SimilarityIndex, error) {
	vectorConfig := f.cfg.GetVector()
	if !vectorConfig.Enabled {
		f.logger.Info("Similarity index disabled")
		return nil, nil
	}

	// Embeddings ride the same OpenAI-compatible credentials as the classifier.
	openaiConfig := f.cfg.GetOpenAI()
	embedder := vector.NewOpenAIEmbedder(openaiConfig.APIKey, openaiConfig.BaseURL, vectorConfig.EmbeddingModel)

	return vector.NewChromaIndex(vectorConfig, embedder, f.textProc, f.logger), nil
}
