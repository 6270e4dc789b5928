package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/citecheck/internal/cache"
	"github.com/ppiankov/citecheck/internal/logger"
	"github.com/ppiankov/citecheck/internal/metrics"
	"github.com/ppiankov/citecheck/internal/model"
)

// DefaultContextLines is the semantic search window around each match
const DefaultContextLines = 3

// ErrEntryNotFound is returned when no corpus category knows the key
var ErrEntryNotFound = errors.New("entry not found in corpus")

// Source is a read-through cached view of the external corpus
type Source struct {
	runner Runner
	cache  cache.Cache
	ttl    time.Duration
	fs     afero.Fs
	log    *zap.Logger
}

// NewSource creates a corpus source. A nil fs reads from the OS
// filesystem.
func NewSource(runner Runner, c cache.Cache, ttl time.Duration, fs afero.Fs, log *zap.Logger) *Source {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Source{
		runner: runner,
		cache:  c,
		ttl:    ttl,
		fs:     fs,
		log:    logger.OrNop(log),
	}
}

// firstOf probes each category in order and returns the first success
func firstOf[T any](ctx context.Context, categories []model.EntryType, probe func(context.Context, model.EntryType) (T, error)) (T, model.EntryType, error) {
	var zero T
	var errs []error
	for _, category := range categories {
		v, err := probe(ctx, category)
		if err == nil {
			return v, category, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", category, err))
	}
	return zero, "", errors.Join(errs...)
}

func (s *Source) cached(kind, key string, out any) bool {
	if s.cache != nil && cache.GetJSON(s.cache, key, out) {
		metrics.CacheHits.WithLabelValues(kind).Inc()
		return true
	}
	metrics.CacheMisses.WithLabelValues(kind).Inc()
	return false
}

func (s *Source) store(key string, v any) {
	if s.cache == nil {
		return
	}
	if err := cache.SetJSON(s.cache, key, v, s.ttl); err != nil {
		s.log.Warn("cache write failed", zap.String("cache_key", key), zap.Error(err))
	}
}

// GetEntry returns the entry for key from the first category that has it
func (s *Source) GetEntry(ctx context.Context, key string) (*model.Entry, bool) {
	cacheKey := "entry:" + key
	var entry model.Entry
	if s.cached("entry", cacheKey, &entry) {
		return &entry, true
	}

	found, category, err := firstOf(ctx, model.EntryTypes, func(ctx context.Context, category model.EntryType) (*model.Entry, error) {
		out, err := s.runner.Execute(ctx, string(category), "show", key, "--format", "json")
		if err != nil {
			return nil, err
		}
		var e model.Entry
		if err := json.Unmarshal(out, &e); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		return &e, nil
	})
	if err != nil {
		s.log.Debug("entry lookup failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	if found.Key == "" {
		found.Key = key
	}
	if found.Type == "" {
		found.Type = category
	}
	s.store(cacheKey, found)
	return found, true
}

// GetQuotes returns the fixed quotes of an entry. A missing entry yields
// an empty list.
func (s *Source) GetQuotes(ctx context.Context, key string) []model.Quote {
	cacheKey := "quotes:" + key
	quotes := []model.Quote{}
	if s.cached("quotes", cacheKey, &quotes) {
		return quotes
	}

	found, _, err := firstOf(ctx, model.EntryTypes, func(ctx context.Context, category model.EntryType) ([]model.Quote, error) {
		out, err := s.runner.Execute(ctx, string(category), "quotes", key, "--format", "json")
		if err != nil {
			return nil, err
		}
		return decodeList[model.Quote](out, "quotes")
	})
	if err != nil {
		s.log.Debug("quote lookup failed", zap.String("key", key), zap.Error(err))
		return []model.Quote{}
	}

	s.store(cacheKey, found)
	return found
}

// GetEntryWithQuotes fetches the entry and its quotes concurrently
func (s *Source) GetEntryWithQuotes(ctx context.Context, key string) (*model.Entry, []model.Quote, error) {
	var (
		entry  *model.Entry
		found  bool
		quotes []model.Quote
	)

	var g errgroup.Group
	g.Go(func() error {
		entry, found = s.GetEntry(ctx, key)
		return nil
	})
	g.Go(func() error {
		quotes = s.GetQuotes(ctx, key)
		return nil
	})
	_ = g.Wait()

	if !found {
		return nil, nil, fmt.Errorf("%w: %s", ErrEntryNotFound, key)
	}
	return entry, quotes, nil
}

// GetFileContent reads the entry's backing full text. Any failure means
// no content is available.
func (s *Source) GetFileContent(ctx context.Context, key string) (string, bool) {
	cacheKey := "filecontent:" + key
	if s.cache != nil {
		if data, ok := s.cache.Get(cacheKey); ok {
			metrics.CacheHits.WithLabelValues("filecontent").Inc()
			return string(data), true
		}
	}
	metrics.CacheMisses.WithLabelValues("filecontent").Inc()

	entry, ok := s.GetEntry(ctx, key)
	if !ok || entry.File == "" {
		return "", false
	}

	data, err := afero.ReadFile(s.fs, entry.File)
	if err != nil {
		s.log.Debug("full text unreadable", zap.String("key", key), zap.String("file", entry.File), zap.Error(err))
		return "", false
	}

	if s.cache != nil {
		if err := s.cache.Set(cacheKey, data, s.ttl); err != nil {
			s.log.Warn("cache write failed", zap.String("cache_key", cacheKey), zap.Error(err))
		}
	}
	return string(data), true
}

// SearchByKeyword greps the entry's full text for one keyword
func (s *Source) SearchByKeyword(ctx context.Context, key, keyword string) []model.Fragment {
	// keys may contain ':', so the keyword is hashed to keep entries apart
	cacheKey := "search:" + key + ":" + cache.Hash(keyword)
	return s.search(ctx, "search", cacheKey, key, "--keyword", keyword)
}

// SearchByKeywords runs one keyword search per keyword concurrently and
// merges the results by line_start
func (s *Source) SearchByKeywords(ctx context.Context, key string, keywords []string) []model.Fragment {
	if len(keywords) == 0 {
		return []model.Fragment{}
	}

	results := make([][]model.Fragment, len(keywords))
	var g errgroup.Group
	for i, kw := range keywords {
		i, kw := i, kw
		g.Go(func() error {
			results[i] = s.SearchByKeyword(ctx, key, kw)
			return nil
		})
	}
	_ = g.Wait()

	return dedupFragments(results...)
}

// SearchSemantic queries the corpus's semantic index for passages close
// to the paragraph
func (s *Source) SearchSemantic(ctx context.Context, key, paragraph string, contextLines int) []model.Fragment {
	if contextLines <= 0 {
		contextLines = DefaultContextLines
	}
	n := strconv.Itoa(contextLines)
	cacheKey := "semantic:" + key + ":" + n + ":" + cache.Hash(paragraph)
	return s.search(ctx, "semantic", cacheKey, key, "--semantic", paragraph, "--context", n)
}

func (s *Source) search(ctx context.Context, kind, cacheKey, key string, query ...string) []model.Fragment {
	fragments := []model.Fragment{}
	if s.cached(kind, cacheKey, &fragments) {
		return fragments
	}

	found, _, err := firstOf(ctx, model.EntryTypes, func(ctx context.Context, category model.EntryType) ([]model.Fragment, error) {
		args := append([]string{string(category), "query", key}, query...)
		args = append(args, "--format", "json")
		out, err := s.runner.Execute(ctx, args...)
		if err != nil {
			return nil, err
		}
		return decodeList[model.Fragment](out, "fragments")
	})
	if err != nil {
		s.log.Debug("corpus search failed", zap.String("key", key), zap.String("kind", kind), zap.Error(err))
		return []model.Fragment{}
	}

	s.store(cacheKey, found)
	return found
}

// Clear drops every cached lookup
func (s *Source) Clear() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear()
}

// decodeList accepts either a bare JSON array or an object wrapping the
// array under field
func decodeList[T any](data []byte, field string) ([]T, error) {
	data = bytes.TrimSpace(data)
	list := []T{}
	if len(data) == 0 {
		return list, nil
	}

	if data[0] == '[' {
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode %s: %w", field, err)
		}
		return nonNil(list), nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode %s: %w", field, err)
	}
	raw, ok := wrapped[field]
	if !ok {
		return list, nil
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", field, err)
	}
	return nonNil(list), nil
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
