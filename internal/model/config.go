package model

import "time"

// Config is the complete citecheck configuration
type Config struct {
	Corpus     CorpusConfig     `mapstructure:"corpus" yaml:"corpus"`
	Oracle     OracleConfig     `mapstructure:"oracle" yaml:"oracle"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Validation ValidationConfig `mapstructure:"validation" yaml:"validation"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

// CorpusConfig configures the evidence corpus command
type CorpusConfig struct {
	CLIPath      string        `mapstructure:"cliPath" yaml:"cliPath"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ContextLines int           `mapstructure:"contextLines" yaml:"contextLines"`
}

// OracleConfig configures the reasoning oracle and the auxiliary model
type OracleConfig struct {
	Provider          string  `mapstructure:"provider" yaml:"provider"` // bedrock, anthropic, openai, ollama
	Region            string  `mapstructure:"region" yaml:"region"`
	Profile           string  `mapstructure:"profile" yaml:"profile"`
	Model             string  `mapstructure:"model" yaml:"model"`
	AuxModel          string  `mapstructure:"auxModel" yaml:"auxModel"`
	MaxTokens         int     `mapstructure:"maxTokens" yaml:"maxTokens"`
	AuxMaxTokens      int     `mapstructure:"auxMaxTokens" yaml:"auxMaxTokens"`
	APIKey            string  `mapstructure:"apiKey" yaml:"-"`
	BaseURL           string  `mapstructure:"baseURL" yaml:"baseURL,omitempty"`
	Timeout           int     `mapstructure:"timeout" yaml:"timeout"` // seconds
	RequestsPerSecond float64 `mapstructure:"requestsPerSecond" yaml:"requestsPerSecond"`
}

// CacheConfig configures the shared TTL cache
type CacheConfig struct {
	TTLSeconds    int    `mapstructure:"ttlSeconds" yaml:"ttlSeconds"`
	RedisAddr     string `mapstructure:"redisAddr" yaml:"redisAddr,omitempty"`
	RedisPassword string `mapstructure:"redisPassword" yaml:"-"`
	RedisDB       int    `mapstructure:"redisDB" yaml:"redisDB"`
}

// TTL returns the cache TTL as a duration
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// ValidationConfig configures orchestration and presentation
type ValidationConfig struct {
	ValidateOnSave       bool                 `mapstructure:"validateOnSave" yaml:"validateOnSave"`
	Concurrency          int                  `mapstructure:"concurrency" yaml:"concurrency"` // 0 = unbounded
	ConfidenceThresholds ConfidenceThresholds `mapstructure:"confidenceThresholds" yaml:"confidenceThresholds"`
}

// ConfidenceThresholds are display-layer thresholds. They are not fed back
// into the prompt, which carries its own tiered thresholds.
type ConfidenceThresholds struct {
	Supported float64 `mapstructure:"supported" yaml:"supported"`
	Partial   float64 `mapstructure:"partial" yaml:"partial"`
}

// LogConfig configures zap
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // json or console
}

// MetricsConfig configures the Prometheus endpoint used by watch mode
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr,omitempty"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			CLIPath:      "bibcorpus",
			Timeout:      30 * time.Second,
			ContextLines: 3,
		},
		Oracle: OracleConfig{
			Provider:     "bedrock",
			Region:       "us-east-1",
			Profile:      "default",
			Model:        "anthropic.claude-3-5-sonnet-20241022-v2:0",
			AuxModel:     "anthropic.claude-3-5-haiku-20241022-v1:0",
			MaxTokens:    2000,
			AuxMaxTokens: 300,
			Timeout:      60,
		},
		Cache: CacheConfig{
			TTLSeconds: 3600,
		},
		Validation: ValidationConfig{
			ValidateOnSave: false,
			Concurrency:    0,
			ConfidenceThresholds: ConfidenceThresholds{
				Supported: 0.8,
				Partial:   0.5,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
