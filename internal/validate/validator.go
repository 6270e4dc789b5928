package validate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/citecheck/internal/cache"
	"github.com/ppiankov/citecheck/internal/evidence"
	"github.com/ppiankov/citecheck/internal/extract"
	"github.com/ppiankov/citecheck/internal/llm"
	"github.com/ppiankov/citecheck/internal/logger"
	"github.com/ppiankov/citecheck/internal/metrics"
	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/prompt"
	"github.com/ppiankov/citecheck/internal/worker"
)

const oracleMaxRetries = 3

// oracleSleepFunc is the sleep function used between retries (injectable for tests)
var oracleSleepFunc = time.Sleep

// ExplanationNoParagraph is the verdict explanation for orphaned citations
const ExplanationNoParagraph = "no paragraph context"

// Evidence is the corpus view the validator reads from
type Evidence interface {
	GetEntryWithQuotes(ctx context.Context, key string) (*model.Entry, []model.Quote, error)
	GetFileContent(ctx context.Context, key string) (string, bool)
	SearchByKeywords(ctx context.Context, key string, keywords []string) []model.Fragment
	SearchSemantic(ctx context.Context, key, paragraph string, contextLines int) []model.Fragment
}

// KeywordSource derives search keywords from a paragraph
type KeywordSource interface {
	Extract(ctx context.Context, paragraph string) extract.Keywords
}

// Progress reports one finished citation during a document run
type Progress struct {
	Completed int
	Total     int
	Key       string

	// Increment is the share of the run one citation represents, in percent
	Increment float64
}

// ProgressFunc receives progress updates. Calls never overlap.
type ProgressFunc func(Progress)

// Options tunes a Validator
type Options struct {
	// Model is the oracle model id, used for the request and for costing
	Model     string
	MaxTokens int

	// ContextLines is the semantic search window
	ContextLines int

	// TTL applies to cached verdicts
	TTL time.Duration

	// Limiter throttles oracle calls per model; nil disables throttling
	Limiter *worker.Limiter

	Logger *zap.Logger
}

// Validator judges citations against corpus evidence with a reasoning oracle
type Validator struct {
	evidence Evidence
	keywords KeywordSource
	oracle   llm.Provider
	cache    cache.Cache
	opts     Options
	log      *zap.Logger
	inflight singleflight.Group
}

// NewValidator creates a new validator
func NewValidator(ev Evidence, keywords KeywordSource, oracle llm.Provider, c cache.Cache, opts Options) *Validator {
	if opts.ContextLines <= 0 {
		opts.ContextLines = evidence.DefaultContextLines
	}
	return &Validator{
		evidence: ev,
		keywords: keywords,
		oracle:   oracle,
		cache:    c,
		opts:     opts,
		log:      logger.OrNop(opts.Logger),
	}
}

func validationKey(c model.Citation, paragraph string) string {
	return "validation:" + c.Key + ":" + cache.Hash(paragraph)
}

// ValidateOne judges one citation in its paragraph. It never fails: every
// error becomes a not_supported verdict whose explanation names the cause.
// Concurrent calls for the same key and paragraph share one computation.
func (v *Validator) ValidateOne(ctx context.Context, c model.Citation, p model.Paragraph) model.ValidationResult {
	cacheKey := validationKey(c, p.Text)

	if result, ok := v.cached(cacheKey); ok {
		result.Citation = c
		return result
	}

	shared, _, _ := v.inflight.Do(cacheKey, func() (any, error) {
		if result, ok := v.cached(cacheKey); ok {
			return result, nil
		}
		return v.compute(ctx, c, p, cacheKey), nil
	})

	result := shared.(model.ValidationResult)
	result.Citation = c
	return result
}

func (v *Validator) cached(cacheKey string) (model.ValidationResult, bool) {
	var result model.ValidationResult
	if v.cache == nil || !cache.GetJSON(v.cache, cacheKey, &result) {
		metrics.CacheMisses.WithLabelValues("validation").Inc()
		return result, false
	}
	metrics.CacheHits.WithLabelValues("validation").Inc()
	return result, true
}

func (v *Validator) compute(ctx context.Context, c model.Citation, p model.Paragraph, cacheKey string) model.ValidationResult {
	ctx, span := metrics.Tracer.Start(ctx, "validate.citation", trace.WithAttributes(
		attribute.String("citation.key", c.Key),
		attribute.String("citation.type", string(c.Type)),
	))
	defer span.End()

	log := v.log.With(zap.String("key", c.Key))

	var (
		entry    *model.Entry
		quotes   []model.Quote
		entryErr error
		keywords extract.Keywords
	)

	var g errgroup.Group
	g.Go(func() error {
		entry, quotes, entryErr = v.evidence.GetEntryWithQuotes(ctx, c.Key)
		return nil
	})
	g.Go(func() error {
		if v.keywords != nil {
			keywords = v.keywords.Extract(ctx, p.Text)
		}
		return nil
	})
	_ = g.Wait()

	if entryErr != nil {
		log.Info("entry unavailable", zap.Error(entryErr))
		span.SetStatus(codes.Error, entryErr.Error())
		return v.record(model.NotSupported(c, fmt.Sprintf("Entry not found: %s", c.Key)))
	}

	terms := keywords.All()
	var (
		fullText string
		kwFrags  []model.Fragment
		semFrags []model.Fragment
	)

	var fetch errgroup.Group
	if c.HasPageRef() {
		fetch.Go(func() error {
			fullText, _ = v.evidence.GetFileContent(ctx, c.Key)
			return nil
		})
	}
	if len(terms) > 0 {
		fetch.Go(func() error {
			kwFrags = v.evidence.SearchByKeywords(ctx, c.Key, terms)
			return nil
		})
	}
	fetch.Go(func() error {
		semFrags = v.evidence.SearchSemantic(ctx, c.Key, p.Text, v.opts.ContextLines)
		return nil
	})
	_ = fetch.Wait()

	fragments := evidence.Combine(kwFrags, semFrags)
	log.Debug("evidence gathered",
		zap.Int("quotes", len(quotes)),
		zap.Int("keywords", len(terms)),
		zap.Int("fragments", len(fragments)),
		zap.Bool("full_text", fullText != ""),
	)

	text := prompt.Build(prompt.Request{
		Citation:  c,
		Paragraph: p.Text,
		Entry:     *entry,
		Quotes:    quotes,
		Fragments: fragments,
		FullText:  fullText,
	})

	completion, err := v.ask(ctx, text)
	if err != nil {
		metrics.OracleFailures.WithLabelValues(v.oracle.Name()).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("oracle call failed", zap.Error(err))
		return v.record(model.NotSupported(c, "Validation failed: "+err.Error()))
	}

	resp, err := prompt.Parse(completion.Text)
	if err != nil {
		metrics.OracleFailures.WithLabelValues(v.oracle.Name()).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("oracle response rejected", zap.Error(err))
		return v.record(model.NotSupported(c, "Validation failed: "+err.Error()))
	}

	modelID := completion.Model
	if modelID == "" {
		modelID = v.opts.Model
	}
	usage := completion.Usage
	cost := llm.EstimateCost(modelID, usage.InputTokens, usage.OutputTokens)

	result := model.ValidationResult{
		Citation:         c,
		Status:           resp.Status,
		Confidence:       resp.Confidence,
		Explanation:      resp.Explanation,
		SupportingQuotes: selectQuotes(quotes, resp.SupportingQuoteIndices),
		Rephrase:         resp.Rephrase,
		Usage:            &usage,
		CostUSD:          cost,
		Model:            modelID,
	}

	metrics.TokensTotal.WithLabelValues("input").Add(float64(usage.InputTokens))
	metrics.TokensTotal.WithLabelValues("output").Add(float64(usage.OutputTokens))
	metrics.CostUSD.Add(cost)
	span.SetAttributes(
		attribute.String("verdict.status", string(result.Status)),
		attribute.Float64("verdict.confidence", result.Confidence),
	)

	if v.cache != nil {
		if err := cache.SetJSON(v.cache, cacheKey, result, v.opts.TTL); err != nil {
			log.Warn("cache write failed", zap.Error(err))
		}
	}

	return v.record(result)
}

// ask calls the oracle, retrying only transient failures such as
// throttling, 5xx replies and transport errors
func (v *Validator) ask(ctx context.Context, text string) (*llm.Completion, error) {
	ctx, span := metrics.Tracer.Start(ctx, "oracle.complete", trace.WithAttributes(
		attribute.String("oracle.provider", v.oracle.Name()),
		attribute.String("oracle.model", v.opts.Model),
	))
	defer span.End()

	var lastErr error
	for attempt := 0; attempt < oracleMaxRetries; attempt++ {
		if attempt > 0 {
			oracleSleepFunc(time.Duration(attempt) * time.Second)
		}

		if err := v.opts.Limiter.Wait(ctx, v.opts.Model); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}

		start := time.Now()
		completion, err := v.oracle.Complete(ctx, llm.CompletionRequest{
			Prompt:      text,
			Model:       v.opts.Model,
			MaxTokens:   v.opts.MaxTokens,
			Temperature: 0,
		})
		metrics.OracleDuration.WithLabelValues(v.oracle.Name()).Observe(time.Since(start).Seconds())
		if err == nil {
			return completion, nil
		}

		lastErr = err
		if !llm.IsTransient(err) {
			break
		}
		v.log.Debug("oracle attempt failed", zap.Int("attempt", attempt+1), zap.Error(err))
	}

	span.RecordError(lastErr)
	return nil, lastErr
}

func (v *Validator) record(result model.ValidationResult) model.ValidationResult {
	metrics.ValidationsTotal.WithLabelValues(string(result.Status)).Inc()
	return result
}

// selectQuotes maps 1-based indices onto quotes, dropping out-of-range ones
func selectQuotes(quotes []model.Quote, indices []int) []model.Quote {
	selected := make([]model.Quote, 0, len(indices))
	for _, idx := range indices {
		if idx < 1 || idx > len(quotes) {
			continue
		}
		selected = append(selected, quotes[idx-1])
	}
	return selected
}

// ValidateDocument validates every citation at once. The result at index i
// belongs to citations[i].
func (v *Validator) ValidateDocument(ctx context.Context, citations []model.Citation, paragraphs []model.Paragraph, onProgress ProgressFunc) []model.ValidationResult {
	return v.ValidateDocumentBounded(ctx, citations, paragraphs, 0, onProgress)
}

// ValidateDocumentBounded validates citations in sequential batches of
// limit, each batch concurrently. A limit of 0 or less means unbounded.
// Work is detached from ctx cancellation; callers check ctx.Err() once the
// document resolves.
func (v *Validator) ValidateDocumentBounded(ctx context.Context, citations []model.Citation, paragraphs []model.Paragraph, limit int, onProgress ProgressFunc) []model.ValidationResult {
	if len(citations) == 0 {
		return []model.ValidationResult{}
	}

	report := newProgressReporter(len(citations), onProgress)
	detached := context.WithoutCancel(ctx)

	return worker.RunBatches(detached, citations, limit, func(ctx context.Context, i int, c model.Citation) model.ValidationResult {
		var result model.ValidationResult
		if p, ok := extract.FindParagraph(paragraphs, c); ok {
			result = v.ValidateOne(ctx, c, p)
		} else {
			result = v.record(model.NotSupported(c, ExplanationNoParagraph))
		}
		report(c.Key)
		return result
	})
}

// ValidateByKey validates only the occurrences of key
func (v *Validator) ValidateByKey(ctx context.Context, key string, citations []model.Citation, paragraphs []model.Paragraph, onProgress ProgressFunc) []model.ValidationResult {
	matching := make([]model.Citation, 0)
	for _, c := range citations {
		if c.Key == key {
			matching = append(matching, c)
		}
	}
	return v.ValidateDocument(ctx, matching, paragraphs, onProgress)
}

// ClearCache drops every cached verdict and corpus lookup
func (v *Validator) ClearCache() error {
	if v.cache == nil {
		return nil
	}
	return v.cache.Clear()
}

func newProgressReporter(total int, onProgress ProgressFunc) func(key string) {
	var (
		mu        sync.Mutex
		completed int
	)
	increment := 100 / float64(total)

	return func(key string) {
		if onProgress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		completed++
		onProgress(Progress{
			Completed: completed,
			Total:     total,
			Key:       key,
			Increment: increment,
		})
	}
}
