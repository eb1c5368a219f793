package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// defaultAnthropicMaxTokens applies when Config.MaxTokens is unset; the API requires a value.
const defaultAnthropicMaxTokens = 512

// AnthropicGenerator uses the Anthropic Messages API.
type AnthropicGenerator struct {
	client      *anthropic.Client
	endpoint    string
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// NewAnthropicGenerator creates a generator for Claude models.
// Endpoint is optional and overrides the public API base URL.
func NewAnthropicGenerator(cfg *Config, logger *zap.Logger) (*AnthropicGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required for anthropic")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	var opts []anthropic.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, anthropic.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	return &AnthropicGenerator{
		client:      anthropic.NewClient(cfg.APIKey, opts...),
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   maxTokens,
		logger:      logger.Named("llm-anthropic"),
	}, nil
}

// Generate sends the instructions as system prompt and returns the first text block.
func (g *AnthropicGenerator) Generate(ctx context.Context, sourceText, instructions string) (string, error) {
	prompt := sourcePrefix + sourceText
	start := time.Now()

	resp, err := g.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(g.model),
		MaxTokens:   g.maxTokens,
		System:      instructions,
		Temperature: &g.temperature,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
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

	text := extractText(resp)
	if text == "" {
		return "", NewError(ErrorTypeEmpty, "no text block in response", false, nil)
	}

	g.logger.Debug("Generation request completed",
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return text, nil
}

// Model returns the configured model name.
func (g *AnthropicGenerator) Model() string {
	return g.model
}

func extractText(resp anthropic.MessagesResponse) string {
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text
		}
	}
	return ""
}

var _ Generator = (*AnthropicGenerator)(nil)
