package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/citecheck/internal/logger"
	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/pipeline"
)

// Version is set at build time
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "citecheck",
	Short: "citecheck - validate academic citations in Markdown against their sources",
	Long: `citecheck finds citation markers such as [@smith2020, p. 4] and @doe2019 in
Markdown prose, pulls the cited entry, its quotes and matching full-text
passages from a local bibliography corpus, and asks a language model whether
the evidence supports the claim around each citation.

Every citation gets a verdict: supported, partial or not_supported, with a
confidence and a short explanation.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "citecheck %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.citecheck/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file, .env and environment variables
func initConfig() {
	// .env is optional
	_ = godotenv.Load()

	configureViper(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".citecheck"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// configureViper registers defaults for every key and maps CITECHECK_*
// environment variables onto them
func configureViper(v *viper.Viper) {
	d := model.DefaultConfig()

	v.SetDefault("corpus.cliPath", d.Corpus.CLIPath)
	v.SetDefault("corpus.timeout", d.Corpus.Timeout)
	v.SetDefault("corpus.contextLines", d.Corpus.ContextLines)

	v.SetDefault("oracle.provider", d.Oracle.Provider)
	v.SetDefault("oracle.region", d.Oracle.Region)
	v.SetDefault("oracle.profile", d.Oracle.Profile)
	v.SetDefault("oracle.model", d.Oracle.Model)
	v.SetDefault("oracle.auxModel", d.Oracle.AuxModel)
	v.SetDefault("oracle.maxTokens", d.Oracle.MaxTokens)
	v.SetDefault("oracle.auxMaxTokens", d.Oracle.AuxMaxTokens)
	v.SetDefault("oracle.apiKey", "")
	v.SetDefault("oracle.baseURL", "")
	v.SetDefault("oracle.timeout", d.Oracle.Timeout)
	v.SetDefault("oracle.requestsPerSecond", d.Oracle.RequestsPerSecond)

	v.SetDefault("cache.ttlSeconds", d.Cache.TTLSeconds)
	v.SetDefault("cache.redisAddr", "")
	v.SetDefault("cache.redisPassword", "")
	v.SetDefault("cache.redisDB", 0)

	v.SetDefault("validation.validateOnSave", d.Validation.ValidateOnSave)
	v.SetDefault("validation.concurrency", d.Validation.Concurrency)
	v.SetDefault("validation.confidenceThresholds.supported", d.Validation.ConfidenceThresholds.Supported)
	v.SetDefault("validation.confidenceThresholds.partial", d.Validation.ConfidenceThresholds.Partial)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.addr", "")

	v.SetEnvPrefix("CITECHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// loadConfig decodes the merged configuration and fills API credentials
// from the provider's conventional environment variables
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	switch strings.ToLower(cfg.Oracle.Provider) {
	case "anthropic", "claude":
		if cfg.Oracle.APIKey == "" {
			cfg.Oracle.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "openai":
		if cfg.Oracle.APIKey == "" {
			cfg.Oracle.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "ollama":
		if cfg.Oracle.BaseURL == "" {
			cfg.Oracle.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	}

	if verbose && cfg.Log.Level == "info" {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// setup loads the configuration and wires the services for one command
func setup(ctx context.Context) (*model.Config, *zap.Logger, *pipeline.Services, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, nil, err
	}

	services, err := pipeline.NewServices(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, nil, err
	}
	return cfg, log, services, nil
}
