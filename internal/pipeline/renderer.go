package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/ppiankov/citecheck/internal/model"
)

// Renderer writes reports as JSON, Markdown and a terminal summary
type Renderer struct {
	fs  afero.Fs
	out io.Writer
}

// NewRenderer creates a renderer writing files to fs and the summary to out
func NewRenderer(fs afero.Fs, out io.Writer) *Renderer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if out == nil {
		out = os.Stdout
	}
	return &Renderer{fs: fs, out: out}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return r.write(path, append(data, '\n'))
}

// RenderMarkdown writes a human-readable report
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return r.write(path, []byte(MarkdownReport(report)))
}

func (r *Renderer) write(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := r.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := afero.WriteFile(r.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderSummary prints a short per-citation listing and totals
func (r *Renderer) RenderSummary(report *model.Report) {
	s := report.Summary
	fmt.Fprintf(r.out, "\n%s\n", report.Subject)
	for _, res := range report.Results {
		fmt.Fprintf(r.out, "  %s %-24s line %-4d %-13s %.2f  %s\n",
			statusMark(res.Status),
			"@"+res.Citation.Key,
			res.Citation.Range.Start.Line+1,
			res.Status,
			res.Confidence,
			truncate(res.Explanation, 80),
		)
	}
	fmt.Fprintf(r.out, "\n%d citations: %d supported, %d partial, %d not supported (%d failed)\n",
		s.Total, s.Supported, s.Partial, s.NotSupported, s.Failed)
	fmt.Fprintf(r.out, "Mean confidence %.2f, %d tokens, est. cost $%.4f\n",
		s.MeanConfidence, s.InputTokens+s.OutputTokens, s.CostUSD)
}

// MarkdownReport renders the report as a Markdown document
func MarkdownReport(report *model.Report) string {
	var b strings.Builder
	s := report.Summary

	fmt.Fprintf(&b, "# Citation report: %s\n\n", report.Subject)
	fmt.Fprintf(&b, "Run `%s` at %s\n\n", report.RunID, report.ValidatedAt.Format("2006-01-02 15:04:05 MST"))

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Citations | %d |\n", s.Total)
	fmt.Fprintf(&b, "| Supported | %d |\n", s.Supported)
	fmt.Fprintf(&b, "| Partial | %d |\n", s.Partial)
	fmt.Fprintf(&b, "| Not supported | %d |\n", s.NotSupported)
	fmt.Fprintf(&b, "| Failed before judging | %d |\n", s.Failed)
	fmt.Fprintf(&b, "| Mean confidence | %.2f |\n", s.MeanConfidence)
	fmt.Fprintf(&b, "| Tokens (in/out) | %d / %d |\n", s.InputTokens, s.OutputTokens)
	fmt.Fprintf(&b, "| Estimated cost | $%.4f |\n\n", s.CostUSD)

	if len(report.Results) == 0 {
		b.WriteString("No citations found.\n")
		return b.String()
	}

	b.WriteString("## Citations\n\n")
	for _, res := range report.Results {
		fmt.Fprintf(&b, "### %s `%s` (line %d)\n\n", statusMark(res.Status), res.Citation.FullText, res.Citation.Range.Start.Line+1)
		fmt.Fprintf(&b, "- Status: **%s** (confidence %.2f)\n", res.Status, res.Confidence)
		fmt.Fprintf(&b, "- Explanation: %s\n", res.Explanation)
		if res.Rephrase != "" {
			fmt.Fprintf(&b, "- Suggested wording: %s\n", res.Rephrase)
		}
		if res.Model != "" {
			fmt.Fprintf(&b, "- Model: %s ($%.4f)\n", res.Model, res.CostUSD)
		}
		for _, q := range res.SupportingQuotes {
			if q.Page != nil {
				fmt.Fprintf(&b, "\n> %s (p. %d)\n", q.Text, *q.Page)
			} else {
				fmt.Fprintf(&b, "\n> %s\n", q.Text)
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

func statusMark(s model.Status) string {
	switch s {
	case model.StatusSupported:
		return "✓"
	case model.StatusPartial:
		return "~"
	default:
		return "✗"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
