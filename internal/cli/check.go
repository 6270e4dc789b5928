package cli

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/citecheck/internal/llm"
	"github.com/ppiankov/citecheck/internal/model"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the corpus CLI and the configured models are reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 90*time.Second)
		defer cancel()

		if ok := runChecks(ctx, cmd.OutOrStdout(), cfg); !ok {
			return fmt.Errorf("one or more checks failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runChecks(ctx context.Context, w io.Writer, cfg *model.Config) bool {
	ok := true
	report := func(pass bool, format string, a ...any) {
		mark := "✓"
		if !pass {
			mark = "✗"
			ok = false
		}
		fmt.Fprintf(w, "%s %s\n", mark, fmt.Sprintf(format, a...))
	}

	path, err := exec.LookPath(cfg.Corpus.CLIPath)
	report(err == nil, "corpus CLI %q %s", cfg.Corpus.CLIPath, foundOr(path, err))

	for _, target := range []struct {
		label string
		aux   bool
	}{
		{"oracle", false},
		{"keyword model", true},
	} {
		pc := llm.ConfigFromModel(cfg.Oracle, target.aux)
		provider, err := llm.NewProvider(ctx, pc)
		if err != nil {
			report(false, "%s (%s/%s): %v", target.label, cfg.Oracle.Provider, pc.Model, err)
			continue
		}
		report(provider.IsAvailable(ctx), "%s (%s/%s) reachable", target.label, provider.Name(), pc.Model)
	}

	return ok
}

func foundOr(path string, err error) string {
	if err != nil {
		return "not found: " + err.Error()
	}
	return "at " + path
}
