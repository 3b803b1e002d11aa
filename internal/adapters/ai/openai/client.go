package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/adapters/ai"
	"github.com/hyinfo/phishgate/internal/config"
	"github.com/hyinfo/phishgate/internal/core"
	"github.com/hyinfo/phishgate/internal/utils"
)

// Client classifies emails through any OpenAI-compatible chat endpoint,
// including DeepSeek
type Client struct {
	client      *openai.Client
	modelName   string
	maxTokens   int
	temperature float32
	topP        float32
	maxBodySize int
	textProc    *utils.TextProcessor
	logger      *zap.Logger
}

// NewClient creates a new OpenAI-compatible classifier
func NewClient(cfg config.OpenAIConfig, textProc *utils.TextProcessor, logger *zap.Logger) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		modelName:   cfg.ModelName,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxBodySize: cfg.MaxBodySize,
		textProc:    textProc,
		logger:      logger,
	}
}

// Classify analyzes an email and returns a phishing verdict
func (c *Client) Classify(ctx context.Context, input *core.ClassificationInput) (*core.AIAnalysis, error) {
	body := c.textProc.ProcessText(input.Record.ContentText, c.maxBodySize)
	prompt := ai.BuildPrompt(input, body)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: ai.SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	analysis, err := ai.ParseAnalysis(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Email classified",
		zap.String("model", c.modelName),
		zap.String("verdict", analysis.Result.String()),
		zap.Float64("confidence", analysis.Confidence))

	return analysis, nil
}
