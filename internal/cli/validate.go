package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/citecheck/internal/pipeline"
	"github.com/ppiankov/citecheck/internal/validate"
)

var (
	validateKey         string
	validateConcurrency int
	validateJSON        string
	validateMD          string
	validateTimeout     time.Duration
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <file.md> [file.md...]",
	Short: "Validate every citation in one or more Markdown documents",
	Long: `Validate locates citations, gathers evidence for each one from the corpus
and asks the configured model for a verdict.

Example:
  citecheck validate chapter1.md
  citecheck validate chapter1.md --key smith2020
  citecheck validate chapter1.md --concurrency 3 --json report.json --md report.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateKey, "key", "", "only validate occurrences of this citation key")
	validateCmd.Flags().IntVar(&validateConcurrency, "concurrency", 0, "citations validated at once (0 = validation.concurrency, -1 = unbounded)")
	validateCmd.Flags().StringVar(&validateJSON, "json", "", "output JSON path ({name} expands to the document name)")
	validateCmd.Flags().StringVar(&validateMD, "md", "", "output Markdown path ({name} expands to the document name)")
	validateCmd.Flags().DurationVar(&validateTimeout, "timeout", 0, "cancel the run after this long (0 = no limit)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if validateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, validateTimeout)
		defer cancel()
	}

	_, log, services, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = services.Close()
		_ = log.Sync()
	}()

	p := pipeline.New(services)
	renderer := pipeline.NewRenderer(services.Fs, cmd.OutOrStdout())

	var failed int
	for _, path := range args {
		report, err := p.ValidateFile(ctx, path, pipeline.RunOptions{
			Key:         validateKey,
			Concurrency: validateConcurrency,
			OnProgress:  progressPrinter(path),
		})
		if errors.Is(err, pipeline.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "Cancelled, no report written")
			return err
		}
		if err != nil {
			log.Error("validation failed", zap.String("file", path), zap.Error(err))
			failed++
			continue
		}

		if validateJSON != "" {
			if err := renderer.RenderJSON(report, outputPath(validateJSON, path)); err != nil {
				return fmt.Errorf("render JSON: %w", err)
			}
		}
		if validateMD != "" {
			if err := renderer.RenderMarkdown(report, outputPath(validateMD, path)); err != nil {
				return fmt.Errorf("render markdown: %w", err)
			}
		}
		renderer.RenderSummary(report)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents could not be validated", failed, len(args))
	}
	return nil
}

func progressPrinter(path string) validate.ProgressFunc {
	if !verbose {
		return nil
	}
	return func(p validate.Progress) {
		fmt.Fprintf(os.Stderr, "[%3.0f%%] %s @%s (%d/%d)\n",
			float64(p.Completed)*p.Increment, filepath.Base(path), p.Key, p.Completed, p.Total)
	}
}

// outputPath expands {name} to the document's base name without extension
func outputPath(pattern, document string) string {
	name := strings.TrimSuffix(filepath.Base(document), filepath.Ext(document))
	return strings.ReplaceAll(pattern, "{name}", name)
}
