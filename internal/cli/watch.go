package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/citecheck/internal/pipeline"
)

const watchDebounce = 300 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch <file.md> [file.md...]",
	Short: "Re-validate documents every time they are saved",
	Long: `Watch validates each document once, then again whenever it is saved. A save
that arrives while a run is still going cancels that run; its verdicts stay
cached but no report is printed for it.

Editing the config file rebuilds the corpus and model clients for the next
run. A run already in progress keeps the clients it started with.

With metrics.addr set (for example :9464) Prometheus metrics are served on
/metrics.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&validateKey, "key", "", "only validate occurrences of this citation key")
	watchCmd.Flags().IntVar(&validateConcurrency, "concurrency", 0, "citations validated at once (0 = validation.concurrency, -1 = unbounded)")
}

// generation is one Services instance and the runs that started on it
type generation struct {
	services *pipeline.Services
	runs     sync.WaitGroup
}

// watchSession runs one validation per document at a time
type watchSession struct {
	current atomic.Pointer[generation]
	log     *zap.Logger
	out     *pipeline.Renderer

	// closeServices releases a retired Services value
	closeServices func(*pipeline.Services) error

	// mu guards cancels and run registration against swaps
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newWatchSession(services *pipeline.Services, log *zap.Logger, out *pipeline.Renderer) *watchSession {
	s := &watchSession{
		log:           log,
		out:           out,
		closeServices: (*pipeline.Services).Close,
		cancels:       make(map[string]context.CancelFunc),
	}
	s.current.Store(&generation{services: services})
	return s
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, services, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	session := newWatchSession(services, log, pipeline.NewRenderer(services.Fs, cmd.OutOrStdout()))
	defer session.shutdown()

	if !cfg.Validation.ValidateOnSave {
		log.Info("validation.validateOnSave is off; watch enables it for this session")
	}

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, log)
		defer func() { _ = srv.Close() }()
	}

	if viper.ConfigFileUsed() != "" {
		viper.OnConfigChange(func(e fsnotify.Event) {
			session.reconfigure(ctx, e.Name)
		})
		viper.WatchConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	targets := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", arg, err)
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	// editors often save by rename, so watch directories
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	for path := range targets {
		session.trigger(ctx, path)
	}
	fmt.Fprintf(os.Stderr, "Watching %d document(s), Ctrl-C to stop\n", len(targets))

	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			session.cancelAll()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !targets[event.Name] || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			pending[event.Name] = true
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			timerC = timer.C

		case <-timerC:
			for path := range pending {
				session.trigger(ctx, path)
			}
			pending = make(map[string]bool)
			timerC = nil

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(err))
		}
	}
}

// trigger cancels any run in progress for path and starts a new one
func (s *watchSession) trigger(parent context.Context, path string) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	if prev, ok := s.cancels[path]; ok {
		prev()
	}
	s.cancels[path] = cancel
	gen := s.acquire()
	s.mu.Unlock()

	go func() {
		defer gen.runs.Done()
		report, err := pipeline.New(gen.services).ValidateFile(ctx, path, pipeline.RunOptions{
			Key:         validateKey,
			Concurrency: validateConcurrency,
			OnProgress:  progressPrinter(path),
		})
		switch {
		case errors.Is(err, pipeline.ErrCancelled):
			s.log.Debug("superseded run discarded", zap.String("file", path))
		case err != nil:
			s.log.Error("validation failed", zap.String("file", path), zap.Error(err))
		default:
			s.out.RenderSummary(report)
		}
	}()
}

// acquire registers a run on the current generation. Callers hold s.mu so
// a concurrent swap cannot retire the generation between load and Add.
func (s *watchSession) acquire() *generation {
	gen := s.current.Load()
	gen.runs.Add(1)
	return gen
}

// swap installs next and closes the previous Services once every run that
// started on it has finished
func (s *watchSession) swap(next *pipeline.Services) {
	s.mu.Lock()
	old := s.current.Swap(&generation{services: next})
	s.mu.Unlock()

	go func() {
		old.runs.Wait()
		if err := s.closeServices(old.services); err != nil {
			s.log.Warn("closing retired services", zap.Error(err))
		}
	}()
}

// shutdown cancels runs and closes the current Services. The process is
// exiting, so detached runs are not waited for.
func (s *watchSession) shutdown() {
	s.cancelAll()
	s.mu.Lock()
	gen := s.current.Load()
	s.mu.Unlock()

	if err := s.closeServices(gen.services); err != nil {
		s.log.Warn("closing services", zap.Error(err))
	}
}

func (s *watchSession) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.cancels {
		cancel()
	}
}

// reconfigure swaps in services built from the changed config. Runs that
// already started keep their services.
func (s *watchSession) reconfigure(ctx context.Context, file string) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		s.log.Error("config reload failed", zap.String("file", file), zap.Error(err))
		return
	}
	next, err := pipeline.NewServices(ctx, cfg, s.log)
	if err != nil {
		s.log.Error("config reload failed", zap.String("file", file), zap.Error(err))
		return
	}
	s.swap(next)
	s.log.Info("configuration reloaded", zap.String("file", file), zap.String("model", cfg.Oracle.Model))
}

func serveMetrics(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return srv
}
