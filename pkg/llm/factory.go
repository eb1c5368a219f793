package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// Default endpoints per provider. Anthropic uses the library default.
const (
	DefaultOllamaEndpoint = "http://localhost:11434"
	DefaultOpenAIEndpoint = "https://api.openai.com/v1"
)

// NewGenerator creates the generator for cfg.Provider.
// An "openai" provider without API key is fine for local OpenAI-compatible servers.
func NewGenerator(cfg *Config, logger *zap.Logger) (Generator, error) {
	c := *cfg
	switch c.Provider {
	case ProviderOllama, "":
		if c.Endpoint == "" {
			c.Endpoint = DefaultOllamaEndpoint
		}
		return NewOllamaGenerator(&c, logger)
	case ProviderOpenAI:
		if c.Endpoint == "" {
			c.Endpoint = DefaultOpenAIEndpoint
		}
		return NewOpenAIGenerator(&c, logger)
	case ProviderAnthropic:
		return NewAnthropicGenerator(&c, logger)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}
