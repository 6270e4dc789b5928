package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/ppiankov/citecheck/internal/extract"
	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/score"
	"github.com/ppiankov/citecheck/internal/validate"
)

// ErrCancelled is returned when the caller cancelled while citations were
// being validated. The computed verdicts are discarded.
var ErrCancelled = errors.New("validation cancelled")

// RunOptions tunes a single document run
type RunOptions struct {
	// Key restricts validation to the occurrences of one citation key
	Key string

	// Concurrency overrides validation.concurrency; 0 keeps the configured
	// value, negative means unbounded
	Concurrency int

	OnProgress validate.ProgressFunc
}

// Pipeline orchestrates locate, segment, validate and summarize
type Pipeline struct {
	services  *Services
	locator   *extract.CitationLocator
	segmenter *extract.ParagraphSegmenter
}

// New creates a pipeline over the given services
func New(services *Services) *Pipeline {
	return &Pipeline{
		services:  services,
		locator:   extract.NewCitationLocator(),
		segmenter: extract.NewParagraphSegmenter(),
	}
}

// ValidateFile reads a Markdown document and validates its citations
func (p *Pipeline) ValidateFile(ctx context.Context, path string, opts RunOptions) (*model.Report, error) {
	data, err := afero.ReadFile(p.services.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return p.ValidateText(ctx, path, string(data), opts)
}

// ValidateText validates every citation in a Markdown text
func (p *Pipeline) ValidateText(ctx context.Context, subject, text string, opts RunOptions) (*model.Report, error) {
	runID := uuid.NewString()
	log := p.services.Log.With(zap.String("run_id", runID), zap.String("subject", subject))
	start := time.Now()

	citations := p.locator.Parse(text)
	paragraphs := extract.Associate(p.segmenter.Parse(text), citations)
	log.Info("document parsed", zap.Int("citations", len(citations)), zap.Int("paragraphs", len(paragraphs)))

	limit := p.services.Config.Validation.Concurrency
	if opts.Concurrency != 0 {
		limit = opts.Concurrency
	}
	if limit < 0 {
		limit = 0
	}

	v := p.services.Validator
	var results []model.ValidationResult
	switch {
	case opts.Key != "" && limit == 0:
		results = v.ValidateByKey(ctx, opts.Key, citations, paragraphs, opts.OnProgress)
	case opts.Key != "":
		results = v.ValidateDocumentBounded(ctx, filterKey(citations, opts.Key), paragraphs, limit, opts.OnProgress)
	default:
		results = v.ValidateDocumentBounded(ctx, citations, paragraphs, limit, opts.OnProgress)
	}

	if err := ctx.Err(); err != nil {
		log.Info("run cancelled, discarding results", zap.Int("computed", len(results)))
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	report := &model.Report{
		Subject:     subject,
		RunID:       runID,
		ValidatedAt: time.Now().UTC(),
		Paragraphs:  len(paragraphs),
		Results:     results,
		Summary:     score.Summarize(results, p.services.Config.Validation.ConfidenceThresholds),
	}

	log.Info("document validated",
		zap.Int("results", len(results)),
		zap.Int("supported", report.Summary.Supported),
		zap.Int("partial", report.Summary.Partial),
		zap.Int("not_supported", report.Summary.NotSupported),
		zap.Float64("cost_usd", report.Summary.CostUSD),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

func filterKey(citations []model.Citation, key string) []model.Citation {
	out := make([]model.Citation, 0)
	for _, c := range citations {
		if c.Key == key {
			out = append(out, c)
		}
	}
	return out
}
