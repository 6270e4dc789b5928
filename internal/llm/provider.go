package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/ppiankov/citecheck/internal/model"
)

// Provider is a reasoning oracle: one prompt in, text and usage out
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends a single-shot prompt and returns the model's reply
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is the input for one oracle call
type CompletionRequest struct {
	Prompt string

	// System is an optional system prompt
	System string

	// Model overrides the provider's configured model
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	Temperature float64
}

// Completion is the oracle's reply
type Completion struct {
	Text  string
	Model string
	Usage model.TokenUsage
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "bedrock", "anthropic", "openai", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Region and Profile select the AWS account for Bedrock
	Region  string
	Profile string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "bedrock",
		Region:    "us-east-1",
		Timeout:   60,
		MaxTokens: 2000,
	}
}

// ConfigFromModel converts the oracle section of the app config. aux
// selects the cheap auxiliary model instead of the main one.
func ConfigFromModel(oc model.OracleConfig, aux bool) Config {
	cfg := Config{
		Provider:  oc.Provider,
		Model:     oc.Model,
		APIKey:    oc.APIKey,
		BaseURL:   oc.BaseURL,
		Region:    oc.Region,
		Profile:   oc.Profile,
		Timeout:   oc.Timeout,
		MaxTokens: oc.MaxTokens,
	}
	if aux {
		cfg.Model = oc.AuxModel
		cfg.MaxTokens = oc.AuxMaxTokens
	}
	return cfg
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout <= 0 {
		return fallback
	}
	return time.Duration(c.Timeout) * time.Second
}

// resolve fills per-request defaults from the provider config
func (c Config) resolve(req CompletionRequest, fallbackModel string) (string, int) {
	m := req.Model
	if m == "" {
		m = c.Model
	}
	if m == "" {
		m = fallbackModel
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = 1000
	}
	return m, maxTokens
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
		},
	}
}

func usage(input, output int) model.TokenUsage {
	return model.TokenUsage{InputTokens: input, OutputTokens: output}
}
