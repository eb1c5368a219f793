package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIGenerator talks to OpenAI-compatible chat completion endpoints,
// including Ollama's /v1 and vLLM.
type OpenAIGenerator struct {
	client      *openai.Client
	endpoint    string
	model       string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// NewOpenAIGenerator creates a new OpenAI-compatible generator.
func NewOpenAIGenerator(cfg *Config, logger *zap.Logger) (*OpenAIGenerator, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientConfig),
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger.Named("llm-openai"),
	}, nil
}

// Generate sends the instructions as system message and the site text as user message.
func (g *OpenAIGenerator) Generate(ctx context.Context, sourceText, instructions string) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: instructions},
		{Role: openai.ChatMessageRoleUser, Content: sourcePrefix + sourceText},
	}

	g.logger.Debug("Generation request",
		zap.String("model", g.model),
		zap.Int("source_len", len(sourceText)),
		zap.Float64("temperature", g.temperature))

	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: float32(g.temperature),
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		g.logger.Error("Generation request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		classified := ClassifyError(err)
		classified.Model = g.model
		classified.Endpoint = g.endpoint
		return "", classified
	}

	if len(resp.Choices) == 0 {
		return "", NewError(ErrorTypeEmpty, "no choices in response", false, nil)
	}

	g.logger.Debug("Generation request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}

// Model returns the configured model name.
func (g *OpenAIGenerator) Model() string {
	return g.model
}

var _ Generator = (*OpenAIGenerator)(nil)
