// Package llm provides text generators backed by Ollama, OpenAI-compatible
// and Anthropic endpoints, plus the concurrency helpers used to drive them.
package llm

import (
	"context"
	"time"
)

// Generator produces text for a source text under fixed instructions.
type Generator interface {
	// Generate returns the raw model output. Callers trim it.
	Generate(ctx context.Context, sourceText, instructions string) (string, error)

	// Model returns the configured model name.
	Model() string
}

// Provider names accepted by NewGenerator.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds configuration for creating a generator.
type Config struct {
	Provider    string
	Endpoint    string // Base URL, e.g. "http://localhost:11434" or "https://api.openai.com/v1"
	Model       string
	APIKey      string // Optional for local endpoints
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// sourcePrefix introduces the site text after the instructions.
const sourcePrefix = "Site description: "
