package generator

import (
	"fmt"

	"go.uber.org/zap"
)

// Provider names accepted in configuration.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// New builds the generator selected by provider. "openai" also covers any
// OpenAI-compatible endpoint (vLLM, Ollama, OpenRouter) via Config.Endpoint.
func New(provider string, cfg Config, logger *zap.Logger) (Generator, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIGenerator(cfg, logger)
	case ProviderAnthropic:
		return NewAnthropicGenerator(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported generator provider: %q", provider)
	}
}
