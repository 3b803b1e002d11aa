package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/hyinfo/phishgate/internal/adapters/ai"
	"github.com/hyinfo/phishgate/internal/config"
	"github.com/hyinfo/phishgate/internal/core"
	"github.com/hyinfo/phishgate/internal/utils"
)

// Client classifies emails through Google Gemini
type Client struct {
	client      *genai.Client
	model       *genai.GenerativeModel
	modelName   string
	maxBodySize int
	textProc    *utils.TextProcessor
	logger      *zap.Logger
}

// NewClient creates a new Gemini classifier
func NewClient(cfg config.GeminiConfig, textProc *utils.TextProcessor, logger *zap.Logger) (*Client, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.ModelName)
	model.SetTemperature(cfg.Temperature)
	model.SetTopP(cfg.TopP)
	model.SetMaxOutputTokens(int32(cfg.MaxTokens))
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ai.SystemPrompt)},
	}

	return &Client{
		client:      client,
		model:       model,
		modelName:   cfg.ModelName,
		maxBodySize: cfg.MaxBodySize,
		textProc:    textProc,
		logger:      logger,
	}, nil
}

// Close closes the Gemini client
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Classify analyzes an email and returns a phishing verdict
func (c *Client) Classify(ctx context.Context, input *core.ClassificationInput) (*core.AIAnalysis, error) {
	body := c.textProc.ProcessText(input.Record.ContentText, c.maxBodySize)
	prompt := ai.BuildPrompt(input, body)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("unexpected response part type from Gemini")
	}

	analysis, err := ai.ParseAnalysis(string(text))
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Email classified",
		zap.String("model", c.modelName),
		zap.String("verdict", analysis.Result.String()),
		zap.Float64("confidence", analysis.Confidence))

	return analysis, nil
}
