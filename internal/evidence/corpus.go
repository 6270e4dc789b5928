package evidence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ppiankov/citecheck/internal/metrics"
)

const defaultCorpusTimeout = 30 * time.Second

// Runner executes one corpus command and returns its stdout. A non-nil
// error means the entry is not available in the queried category.
type Runner interface {
	Execute(ctx context.Context, args ...string) ([]byte, error)
}

// CLIRunner runs the corpus command-line tool as a subprocess
type CLIRunner struct {
	path    string
	timeout time.Duration
}

// NewCLIRunner creates a runner for the corpus binary at path
func NewCLIRunner(path string, timeout time.Duration) *CLIRunner {
	if timeout <= 0 {
		timeout = defaultCorpusTimeout
	}
	return &CLIRunner{path: path, timeout: timeout}
}

func (r *CLIRunner) Execute(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	command := "unknown"
	if len(args) > 1 {
		command = args[1]
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		metrics.CorpusCalls.WithLabelValues(command, "error").Inc()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("corpus %s timed out after %s", strings.Join(args, " "), r.timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("corpus %s: %w", strings.Join(args, " "), err)
		}
		return nil, fmt.Errorf("corpus %s: %w: %s", strings.Join(args, " "), err, msg)
	}

	metrics.CorpusCalls.WithLabelValues(command, "ok").Inc()
	return stdout.Bytes(), nil
}
