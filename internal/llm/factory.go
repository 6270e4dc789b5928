package llm

import (
	"context"
	"fmt"
	"strings"
)

// NewProvider creates an oracle provider based on configuration
func NewProvider(ctx context.Context, config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "bedrock", "":
		return NewBedrockProvider(ctx, config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "openai":
		return NewOpenAIProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: bedrock, anthropic, openai, ollama)", config.Provider)
	}
}
