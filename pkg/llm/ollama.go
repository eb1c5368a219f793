package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"
)

// OllamaGenerator calls Ollama's native /api/generate endpoint without streaming.
type OllamaGenerator struct {
	httpClient  *http.Client
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// NewOllamaGenerator creates a generator for a local or remote Ollama server.
func NewOllamaGenerator(cfg *Config, logger *zap.Logger) (*OllamaGenerator, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &OllamaGenerator{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     cfg.Endpoint,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger.Named("llm-ollama"),
	}, nil
}

// Generate sends instructions followed by the site text as a single prompt.
func (g *OllamaGenerator) Generate(ctx context.Context, sourceText, instructions string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  g.model,
		Prompt: instructions + "\n\n" + sourcePrefix + sourceText,
		Stream: false,
		Options: ollamaOptions{
			Temperature: g.temperature,
			NumPredict:  g.maxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	reqURL, err := g.buildURL("/api/generate")
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", g.wrap(ClassifyError(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var out ollamaGenerateResponse
	jsonErr := json.Unmarshal(respBody, &out)

	if resp.StatusCode != http.StatusOK {
		msg := string(respBody)
		if jsonErr == nil && out.Error != "" {
			msg = out.Error
		}
		return "", g.wrap(ClassifyError(fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)))
	}
	if jsonErr != nil {
		return "", fmt.Errorf("failed to parse response: %w", jsonErr)
	}
	if out.Error != "" {
		return "", g.wrap(ClassifyError(fmt.Errorf("ollama: %s", out.Error)))
	}

	g.logger.Debug("Generation request completed",
		zap.String("model", g.model),
		zap.Int("response_len", len(out.Response)),
		zap.Duration("elapsed", time.Since(start)))

	return out.Response, nil
}

// Model returns the configured model name.
func (g *OllamaGenerator) Model() string {
	return g.model
}

func (g *OllamaGenerator) buildURL(endpoint string) (string, error) {
	u, err := url.Parse(g.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = path.Join(u.Path, endpoint)
	return u.String(), nil
}

func (g *OllamaGenerator) wrap(e *Error) *Error {
	e.Model = g.model
	e.Endpoint = g.baseURL
	g.logger.Error("Generation request failed", zap.Error(e))
	return e
}

var _ Generator = (*OllamaGenerator)(nil)
