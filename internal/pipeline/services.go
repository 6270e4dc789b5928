package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/ppiankov/citecheck/internal/cache"
	"github.com/ppiankov/citecheck/internal/evidence"
	"github.com/ppiankov/citecheck/internal/extract"
	"github.com/ppiankov/citecheck/internal/llm"
	"github.com/ppiankov/citecheck/internal/logger"
	"github.com/ppiankov/citecheck/internal/model"
	"github.com/ppiankov/citecheck/internal/validate"
	"github.com/ppiankov/citecheck/internal/worker"
)

// Services holds the configured adapters shared by every run. It is built
// once per configuration; reconfiguring builds a new value and leaves work
// in flight on the old one untouched.
type Services struct {
	Config    *model.Config
	Log       *zap.Logger
	Fs        afero.Fs
	Cache     cache.Cache
	Source    *evidence.Source
	Oracle    llm.Provider
	Aux       llm.Provider
	Keywords  *extract.KeywordExtractor
	Validator *validate.Validator

	closers []func() error
}

// Option overrides one adapter, mostly for tests
type Option func(*serviceDeps)

type serviceDeps struct {
	runner evidence.Runner
	fs     afero.Fs
	cache  cache.Cache
	oracle llm.Provider
	aux    llm.Provider
	noAux  bool
}

// WithRunner replaces the corpus CLI
func WithRunner(r evidence.Runner) Option {
	return func(d *serviceDeps) { d.runner = r }
}

// WithFs replaces the filesystem used for documents and full texts
func WithFs(fs afero.Fs) Option {
	return func(d *serviceDeps) { d.fs = fs }
}

// WithCache replaces the configured cache
func WithCache(c cache.Cache) Option {
	return func(d *serviceDeps) { d.cache = c }
}

// WithOracle replaces the main oracle provider
func WithOracle(p llm.Provider) Option {
	return func(d *serviceDeps) { d.oracle = p }
}

// WithAuxOracle replaces the keyword extraction provider. nil disables
// keyword extraction.
func WithAuxOracle(p llm.Provider) Option {
	return func(d *serviceDeps) {
		d.aux = p
		d.noAux = p == nil
	}
}

// NewServices wires every adapter from cfg
func NewServices(ctx context.Context, cfg *model.Config, log *zap.Logger, opts ...Option) (*Services, error) {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	log = logger.OrNop(log)

	var deps serviceDeps
	for _, opt := range opts {
		opt(&deps)
	}

	s := &Services{Config: cfg, Log: log}

	s.Fs = deps.fs
	if s.Fs == nil {
		s.Fs = afero.NewOsFs()
	}

	s.Cache = deps.cache
	if s.Cache == nil {
		s.Cache = s.buildCache(ctx)
	}

	runner := deps.runner
	if runner == nil {
		runner = evidence.NewCLIRunner(cfg.Corpus.CLIPath, cfg.Corpus.Timeout)
	}
	s.Source = evidence.NewSource(runner, s.Cache, cfg.Cache.TTL(), s.Fs, log.Named("corpus"))

	s.Oracle = deps.oracle
	if s.Oracle == nil {
		p, err := llm.NewProvider(ctx, llm.ConfigFromModel(cfg.Oracle, false))
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("init oracle provider: %w", err)
		}
		s.Oracle = p
	}

	s.Aux = deps.aux
	if s.Aux == nil && !deps.noAux {
		p, err := llm.NewProvider(ctx, llm.ConfigFromModel(cfg.Oracle, true))
		if err != nil {
			log.Warn("keyword extraction disabled", zap.Error(err))
		} else {
			s.Aux = p
		}
	}
	s.Keywords = extract.NewKeywordExtractor(s.Aux, cfg.Oracle.AuxModel, cfg.Oracle.AuxMaxTokens, log.Named("keywords"))

	var limiter *worker.Limiter
	if cfg.Oracle.RequestsPerSecond > 0 {
		limiter = worker.NewLimiter(cfg.Oracle.RequestsPerSecond, 1)
	}

	s.Validator = validate.NewValidator(s.Source, s.Keywords, s.Oracle, s.Cache, validate.Options{
		Model:        cfg.Oracle.Model,
		MaxTokens:    cfg.Oracle.MaxTokens,
		ContextLines: cfg.Corpus.ContextLines,
		TTL:          cfg.Cache.TTL(),
		Limiter:      limiter,
		Logger:       log.Named("validator"),
	})

	return s, nil
}

// buildCache returns the in-process cache, layered over Redis when an
// address is configured. An unreachable Redis degrades to memory only.
func (s *Services) buildCache(ctx context.Context) cache.Cache {
	ttl := s.Config.Cache.TTL()
	if ttl <= 0 {
		ttl = time.Hour
	}
	memory := cache.NewMemoryCache(ttl, 2*ttl)

	if s.Config.Cache.RedisAddr == "" {
		return memory
	}

	remote, err := cache.DialRedis(ctx, s.Config.Cache.RedisAddr, s.Config.Cache.RedisPassword, s.Config.Cache.RedisDB, ttl)
	if err != nil {
		s.Log.Warn("redis unavailable, using memory cache only", zap.String("addr", s.Config.Cache.RedisAddr), zap.Error(err))
		return memory
	}
	s.closers = append(s.closers, remote.Close)
	s.Log.Debug("redis cache connected", zap.String("addr", s.Config.Cache.RedisAddr))
	return cache.NewLayeredCache(memory, remote)
}

// Close releases connections held by the adapters
func (s *Services) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
