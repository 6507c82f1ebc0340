package ffmpeg

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"upscaler/internal/logging"
	"upscaler/internal/services"
)

var commandContext = exec.CommandContext

// stderrTailLines bounds how much ffmpeg output is folded into an error.
const stderrTailLines = 8

// Runner executes one-shot ffmpeg invocations.
type Runner struct {
	binary string
	logger *slog.Logger
}

// NewRunner returns a runner for the given ffmpeg binary.
func NewRunner(binary string, logger *slog.Logger) *Runner {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Runner{binary: binary, logger: logging.NewComponentLogger(logger, "ffmpeg")}
}

// Binary returns the ffmpeg executable the runner invokes.
func (r *Runner) Binary() string {
	return r.binary
}

// Run invokes ffmpeg with the common quiet/overwrite prefix followed by args.
func (r *Runner) Run(ctx context.Context, operation string, args ...string) error {
	full := append(baseArgs(), args...)
	cmd := commandContext(ctx, r.binary, full...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.logger.Debug("ffmpeg invocation", logging.String("operation", operation), logging.Any("args", full))
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrExternalTool, "ffmpeg", operation, tail(stderr.String(), stderrTailLines), err)
	}
	return nil
}

func baseArgs() []string {
	return []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y"}
}

// tail returns the last n non-empty lines of s joined with "; ".
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			kept = append(kept, line)
		}
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return strings.Join(kept, "; ")
}

// syncBuffer collects stderr from a running process; exec copies into it from
// its own goroutine while callers may read it on error paths.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
