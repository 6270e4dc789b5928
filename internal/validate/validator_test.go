package validate

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/citecheck/internal/cache"
	"github.com/ppiankov/citecheck/internal/evidence"
	"github.com/ppiankov/citecheck/internal/extract"
	"github.com/ppiankov/citecheck/internal/llm"
	"github.com/ppiankov/citecheck/internal/model"
)

const verdictJSON = `{"status":"supported","confidence":0.9,"explanation":"Quote 1 states it.","supportingQuoteIndices":[1],"rephrase":"tighter"}`

type fakeEvidence struct {
	mu       sync.Mutex
	entries  map[string]model.Entry
	quotes   map[string][]model.Quote
	files    map[string]string
	fileKeys []string
	kwCalls  [][]string
	semCalls int
}

func newFakeEvidence() *fakeEvidence {
	return &fakeEvidence{
		entries: map[string]model.Entry{
			"smith2023": {Key: "smith2023", Title: "ML and Society", Type: model.EntryPaper, PeerReviewed: true},
		},
		quotes: map[string][]model.Quote{
			"smith2023": {{Text: "first quote"}, {Text: "second quote"}},
		},
		files: map[string]string{"smith2023": "FULL DOCUMENT BODY"},
	}
}

func (f *fakeEvidence) GetEntryWithQuotes(ctx context.Context, key string) (*model.Entry, []model.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", evidence.ErrEntryNotFound, key)
	}
	return &e, f.quotes[key], nil
}

func (f *fakeEvidence) GetFileContent(ctx context.Context, key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fileKeys = append(f.fileKeys, key)
	content, ok := f.files[key]
	return content, ok
}

func (f *fakeEvidence) SearchByKeywords(ctx context.Context, key string, keywords []string) []model.Fragment {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kwCalls = append(f.kwCalls, keywords)
	return []model.Fragment{{LineStart: 7, LineEnd: 8, Lines: []string{"keyword hit"}}}
}

func (f *fakeEvidence) SearchSemantic(ctx context.Context, key, paragraph string, contextLines int) []model.Fragment {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.semCalls++
	return []model.Fragment{{LineStart: 3, LineEnd: 5, Lines: []string{"semantic hit"}}}
}

type fakeKeywords struct {
	kw extract.Keywords
}

func (f fakeKeywords) Extract(ctx context.Context, paragraph string) extract.Keywords {
	return f.kw
}

type fakeOracle struct {
	text    string
	err     error
	delay   func() time.Duration
	calls   int32
	active  int32
	maxSeen int32
	prompts chan string
}

func (o *fakeOracle) Name() string { return "fake" }
func (o *fakeOracle) IsAvailable(ctx context.Context) bool { return true }

func (o *fakeOracle) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	atomic.AddInt32(&o.calls, 1)
	n := atomic.AddInt32(&o.active, 1)
	defer atomic.AddInt32(&o.active, -1)
	for {
		seen := atomic.LoadInt32(&o.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&o.maxSeen, seen, n) {
			break
		}
	}

	if o.prompts != nil {
		o.prompts <- req.Prompt
	}
	if o.delay != nil {
		time.Sleep(o.delay())
	}
	if o.err != nil {
		return nil, o.err
	}
	return &llm.Completion{
		Text:  o.text,
		Model: req.Model,
		Usage: model.TokenUsage{InputTokens: 1000, OutputTokens: 500},
	}, nil
}

func newTestValidator(ev Evidence, kw KeywordSource, oracle llm.Provider) *Validator {
	return NewValidator(ev, kw, oracle, cache.NewMemoryCache(time.Hour, time.Minute), Options{
		Model:     "anthropic.claude-3-5-sonnet-20241022-v2:0",
		MaxTokens: 2000,
		TTL:       time.Hour,
	})
}

func citationAt(key string, line int, pageRef string) model.Citation {
	return model.Citation{
		Key:      key,
		FullText: "[@" + key + "]",
		Range: model.Range{
			Start: model.Position{Line: line, Character: 10},
			End:   model.Position{Line: line, Character: 20},
		},
		PageRef: pageRef,
		Type:    model.CitationBracket,
	}
}

func paragraphAt(line int, text string) model.Paragraph {
	return model.Paragraph{
		Text: text,
		Range: model.Range{
			Start: model.Position{Line: line, Character: 0},
			End:   model.Position{Line: line, Character: 80},
		},
	}
}

func TestValidateOne_Success(t *testing.T) {
	oracle := &fakeOracle{text: verdictJSON}
	v := newTestValidator(newFakeEvidence(), nil, oracle)

	c := citationAt("smith2023", 0, "")
	got := v.ValidateOne(context.Background(), c, paragraphAt(0, "ML changed everything."))

	assert.Equal(t, c, got.Citation)
	assert.Equal(t, model.StatusSupported, got.Status)
	assert.Equal(t, 0.9, got.Confidence)
	assert.Equal(t, []model.Quote{{Text: "first quote"}}, got.SupportingQuotes)
	assert.Equal(t, "tighter", got.Rephrase)
	require.NotNil(t, got.Usage)
	assert.Equal(t, 1500, got.Usage.Total())
	// 1000 in at $3/M + 500 out at $15/M
	assert.InDelta(t, 0.0105, got.CostUSD, 1e-9)
	assert.Equal(t, "anthropic.claude-3-5-sonnet-20241022-v2:0", got.Model)
}

func TestValidateOne_CacheIdentity(t *testing.T) {
	oracle := &fakeOracle{text: verdictJSON}
	v := newTestValidator(newFakeEvidence(), nil, oracle)

	c := citationAt("smith2023", 0, "")
	p := paragraphAt(0, "ML changed everything.")

	first := v.ValidateOne(context.Background(), c, p)
	second := v.ValidateOne(context.Background(), c, p)

	assert.Equal(t, int32(1), atomic.LoadInt32(&oracle.calls))
	assert.Equal(t, first, second)

	// a different paragraph is a different cache entry
	v.ValidateOne(context.Background(), c, paragraphAt(0, "Another claim."))
	assert.Equal(t, int32(2), atomic.LoadInt32(&oracle.calls))
}

func TestValidateOne_SharesInFlightCalls(t *testing.T) {
	oracle := &fakeOracle{text: verdictJSON, delay: func() time.Duration { return 50 * time.Millisecond }}
	v := newTestValidator(newFakeEvidence(), nil, oracle)

	p := paragraphAt(0, "ML changed everything.")
	var wg sync.WaitGroup
	results := make([]model.ValidationResult, 5)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := citationAt("smith2023", 0, "")
			c.Range.Start.Character = i
			results[i] = v.ValidateOne(context.Background(), c, p)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&oracle.calls))
	for i, r := range results {
		assert.Equal(t, model.StatusSupported, r.Status)
		assert.Equal(t, i, r.Citation.Range.Start.Character, "each caller keeps its own citation")
	}
}

func TestValidateOne_EntryMissingSkipsOracle(t *testing.T) {
	oracle := &fakeOracle{text: verdictJSON}
	v := newTestValidator(newFakeEvidence(), nil, oracle)

	got := v.ValidateOne(context.Background(), citationAt("ghost", 0, ""), paragraphAt(0, "Claim."))

	assert.Equal(t, model.StatusNotSupported, got.Status)
	assert.Equal(t, 0.0, got.Confidence)
	assert.Contains(t, got.Explanation, "ghost")
	assert.Equal(t, int32(0), atomic.LoadInt32(&oracle.calls))
}

func TestValidateOne_OracleErrorBecomesVerdict(t *testing.T) {
	oracleSleepFunc = func(time.Duration) {}
	defer func() { oracleSleepFunc = time.Sleep }()

	oracle := &fakeOracle{err: &llm.StatusError{StatusCode: 429, Message: "slow down"}}
	v := newTestValidator(newFakeEvidence(), nil, oracle)

	c := citationAt("smith2023", 0, "")
	p := paragraphAt(0, "Claim.")
	got := v.ValidateOne(context.Background(), c, p)

	assert.Equal(t, model.StatusNotSupported, got.Status)
	assert.Equal(t, 0.0, got.Confidence)
	assert.Contains(t, got.Explanation, "API error (429): slow down")
	assert.Equal(t, int32(oracleMaxRetries), atomic.LoadInt32(&oracle.calls))

	// failures are not cached
	v.ValidateOne(context.Background(), c, p)
	assert.Equal(t, int32(2*oracleMaxRetries), atomic.LoadInt32(&oracle.calls))
}

func TestValidateOne_PermanentOracleErrorNotRetried(t *testing.T) {
	var slept int32
	oracleSleepFunc = func(time.Duration) { atomic.AddInt32(&slept, 1) }
	defer func() { oracleSleepFunc = time.Sleep }()

	oracle := &fakeOracle{err: fmt.Errorf("anthropic API error: %w", &llm.StatusError{StatusCode: 401, Message: "invalid x-api-key"})}
	v := newTestValidator(newFakeEvidence(), nil, oracle)

	got := v.ValidateOne(context.Background(), citationAt("smith2023", 0, ""), paragraphAt(0, "Claim."))

	assert.Equal(t, model.StatusNotSupported, got.Status)
	assert.Contains(t, got.Explanation, "invalid x-api-key")
	assert.Equal(t, int32(1), atomic.LoadInt32(&oracle.calls))
	assert.Equal(t, int32(0), atomic.LoadInt32(&slept))
}

func TestValidateOne_UnparseableResponse(t *testing.T) {
	oracle := &fakeOracle{text: `{"status":"maybe","confidence":0.5,"explanation":"x"}`}
	v := newTestValidator(newFakeEvidence(), nil, oracle)

	got := v.ValidateOne(context.Background(), citationAt("smith2023", 0, ""), paragraphAt(0, "Claim."))
	assert.Equal(t, model.StatusNotSupported, got.Status)
	assert.Contains(t, got.Explanation, "invalid status")
	assert.Equal(t, int32(1), atomic.LoadInt32(&oracle.calls))
}

func TestValidateOne_DropsOutOfRangeQuoteIndices(t *testing.T) {
	oracle := &fakeOracle{text: `{"status":"partial","confidence":0.6,"explanation":"x","supportingQuoteIndices":[2,0,5,1,-1]}`}
	v := newTestValidator(newFakeEvidence(), nil, oracle)

	got := v.ValidateOne(context.Background(), citationAt("smith2023", 0, ""), paragraphAt(0, "Claim."))
	assert.Equal(t, []model.Quote{{Text: "second quote"}, {Text: "first quote"}}, got.SupportingQuotes)
}

func TestValidateOne_PageRefFetchesFullText(t *testing.T) {
	ev := newFakeEvidence()
	oracle := &fakeOracle{text: verdictJSON, prompts: make(chan string, 2)}
	v := newTestValidator(ev, nil, oracle)

	v.ValidateOne(context.Background(), citationAt("smith2023", 0, ""), paragraphAt(0, "ML changed everything @smith2023."))
	assert.Empty(t, ev.fileKeys)
	assert.NotContains(t, <-oracle.prompts, "FULL DOCUMENT BODY")

	v.ValidateOne(context.Background(), citationAt("smith2023", 0, "42"), paragraphAt(0, "ML changed everything [@smith2023, p. 42]."))
	assert.Equal(t, []string{"smith2023"}, ev.fileKeys)
	assert.Contains(t, <-oracle.prompts, "FULL DOCUMENT BODY")
}

func TestValidateOne_KeywordSearchOnlyWithKeywords(t *testing.T) {
	ev := newFakeEvidence()
	oracle := &fakeOracle{text: verdictJSON}

	v := newTestValidator(ev, fakeKeywords{kw: extract.Keywords{English: []string{}, Dutch: []string{}}}, oracle)
	v.ValidateOne(context.Background(), citationAt("smith2023", 0, ""), paragraphAt(0, "One."))
	assert.Empty(t, ev.kwCalls)
	assert.Equal(t, 1, ev.semCalls)

	v = newTestValidator(ev, fakeKeywords{kw: extract.Keywords{English: []string{"trust"}, Dutch: []string{"vertrouwen"}}}, oracle)
	v.ValidateOne(context.Background(), citationAt("smith2023", 0, ""), paragraphAt(0, "Two."))
	require.Len(t, ev.kwCalls, 1)
	assert.Equal(t, []string{"trust", "vertrouwen"}, ev.kwCalls[0])
	assert.Equal(t, 2, ev.semCalls)
}

func TestValidateDocument_OrderAndOrphans(t *testing.T) {
	oracle := &fakeOracle{
		text:  verdictJSON,
		delay: func() time.Duration { return time.Duration(rand.Intn(20)) * time.Millisecond },
	}
	ev := newFakeEvidence()
	ev.entries["doe2019"] = model.Entry{Key: "doe2019", Title: "Doe"}
	v := newTestValidator(ev, nil, oracle)

	paragraphs := []model.Paragraph{
		paragraphAt(0, "First claim."),
		paragraphAt(2, "Second claim."),
	}
	citations := []model.Citation{
		citationAt("smith2023", 0, ""),
		citationAt("orphan", 5, ""),
		citationAt("doe2019", 2, ""),
		citationAt("ghost", 2, ""),
	}

	var progress []Progress
	results := v.ValidateDocument(context.Background(), citations, paragraphs, func(p Progress) {
		progress = append(progress, p)
	})

	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, citations[i], r.Citation)
	}
	assert.Equal(t, model.StatusSupported, results[0].Status)
	assert.Equal(t, ExplanationNoParagraph, results[1].Explanation)
	assert.Equal(t, model.StatusSupported, results[2].Status)
	assert.Equal(t, model.StatusNotSupported, results[3].Status)

	require.Len(t, progress, 4)
	for i, p := range progress {
		assert.Equal(t, i+1, p.Completed)
		assert.Equal(t, 4, p.Total)
		assert.Equal(t, 25.0, p.Increment)
	}
}

func TestValidateDocumentBounded_SevenByThree(t *testing.T) {
	oracle := &fakeOracle{
		text:  verdictJSON,
		delay: func() time.Duration { return time.Duration(5+rand.Intn(20)) * time.Millisecond },
	}
	ev := newFakeEvidence()
	var citations []model.Citation
	var paragraphs []model.Paragraph
	for i := 0; i < 7; i++ {
		key := fmt.Sprintf("key%d", i)
		ev.entries[key] = model.Entry{Key: key, Title: key}
		citations = append(citations, citationAt(key, i, ""))
		paragraphs = append(paragraphs, paragraphAt(i, fmt.Sprintf("Claim %d.", i)))
	}
	v := newTestValidator(ev, nil, oracle)

	results := v.ValidateDocumentBounded(context.Background(), citations, paragraphs, 3, nil)

	require.Len(t, results, 7)
	for i, r := range results {
		assert.Equal(t, citations[i].Key, r.Citation.Key)
	}
	assert.Equal(t, int32(7), atomic.LoadInt32(&oracle.calls))
	assert.LessOrEqual(t, atomic.LoadInt32(&oracle.maxSeen), int32(3))
}

func TestValidateDocument_Empty(t *testing.T) {
	v := newTestValidator(newFakeEvidence(), nil, &fakeOracle{text: verdictJSON})
	got := v.ValidateDocument(context.Background(), nil, nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestValidateDocument_DetachedFromCancellation(t *testing.T) {
	oracle := &fakeOracle{text: verdictJSON}
	v := newTestValidator(newFakeEvidence(), nil, oracle)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := v.ValidateDocument(ctx, []model.Citation{citationAt("smith2023", 0, "")}, []model.Paragraph{paragraphAt(0, "Claim.")}, nil)
	require.Len(t, results, 1)
	assert.Equal(t, model.StatusSupported, results[0].Status)
	assert.Error(t, ctx.Err())
}

func TestValidateByKey(t *testing.T) {
	oracle := &fakeOracle{text: verdictJSON}
	ev := newFakeEvidence()
	ev.entries["doe2019"] = model.Entry{Key: "doe2019"}
	v := newTestValidator(ev, nil, oracle)

	citations := []model.Citation{
		citationAt("smith2023", 0, ""),
		citationAt("doe2019", 0, ""),
		citationAt("smith2023", 2, ""),
	}
	paragraphs := []model.Paragraph{paragraphAt(0, "A."), paragraphAt(2, "B.")}

	results := v.ValidateByKey(context.Background(), "smith2023", citations, paragraphs, nil)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "smith2023", r.Citation.Key)
	}
}

func TestClearCache(t *testing.T) {
	oracle := &fakeOracle{text: verdictJSON}
	v := newTestValidator(newFakeEvidence(), nil, oracle)

	c := citationAt("smith2023", 0, "")
	p := paragraphAt(0, "Claim.")
	v.ValidateOne(context.Background(), c, p)
	require.NoError(t, v.ClearCache())
	v.ValidateOne(context.Background(), c, p)

	assert.Equal(t, int32(2), atomic.LoadInt32(&oracle.calls))
}
