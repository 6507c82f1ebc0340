package reclaim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"upscaler/internal/logging"
	"upscaler/internal/progress"
	"upscaler/internal/services"
)

// ReclaimLag is how far behind the confirmed frame reclamation runs. When the
// consumer confirms frame x, the artifacts of frame x-ReclaimLag are deleted.
const ReclaimLag = 1

// Compile-time guard: reclaiming the confirmed frame itself (or a later one)
// would race the consumer.
var _ = [ReclaimLag - 1]struct{}{}

// DefaultMaxInflightDeletes caps concurrent per-frame deletion goroutines.
const DefaultMaxInflightDeletes = 8

// ReclaimIndex returns the frame whose artifacts may be deleted once frame
// confirmed has been consumed. Values below 1 mean nothing is reclaimable yet.
func ReclaimIndex(confirmed int) int {
	return confirmed - ReclaimLag
}

// Extractor pulls frames out of the source video one at a time, in order.
type Extractor interface {
	// Next writes the next frame to the workspace and returns its 1-based index.
	Next(ctx context.Context) (int, error)
	// Close releases the decoder. It must be safe to call more than once.
	Close() error
}

// Settings are the per-instance knobs of a Reclaimer.
type Settings struct {
	FrameCount     int
	MaxFramesAhead int
}

// Reclaimer extracts frames ahead of the consumer and deletes consumed ones.
type Reclaimer struct {
	settings  Settings
	layout    Layout
	extractor Extractor
	logger    *slog.Logger
	remover   *remover
	inflight  int64
	sem       *semaphore.Weighted

	extracted atomic.Int64
	abandoned atomic.Int64
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// Option customizes a Reclaimer.
type Option func(*Reclaimer)

// WithLogger sets the logger; component fields are added automatically.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reclaimer) {
		if logger != nil {
			r.logger = logging.NewComponentLogger(logger, "reclaimer")
		}
	}
}

// WithRemoveFunc replaces os.Remove.
func WithRemoveFunc(fn func(string) error) Option {
	return func(r *Reclaimer) {
		if fn != nil {
			r.remover.remove = fn
		}
	}
}

// WithSleep replaces time.Sleep between deletion attempts.
func WithSleep(fn func(time.Duration)) Option {
	return func(r *Reclaimer) {
		if fn != nil {
			r.remover.sleep = fn
		}
	}
}

// WithDeletePolicy sets the per-file attempt budget and spacing.
func WithDeletePolicy(attempts int, backoff time.Duration) Option {
	return func(r *Reclaimer) {
		if attempts > 0 {
			r.remover.policy.Attempts = attempts
		}
		if backoff >= 0 {
			r.remover.policy.Backoff = backoff
		}
	}
}

// WithMaxInflightDeletes bounds how many frames may be deleting at once.
func WithMaxInflightDeletes(n int) Option {
	return func(r *Reclaimer) {
		if n > 0 {
			r.inflight = int64(n)
		}
	}
}

// New builds a reclaimer that owns extractor until Run returns or Close is called.
func New(settings Settings, layout Layout, extractor Extractor, opts ...Option) (*Reclaimer, error) {
	if extractor == nil {
		return nil, services.Wrap(services.ErrValidation, "reclaim", "init", "extractor is required", nil)
	}
	if settings.FrameCount < 0 {
		return nil, services.Wrap(services.ErrValidation, "reclaim", "init", fmt.Sprintf("negative frame count %d", settings.FrameCount), nil)
	}
	if settings.MaxFramesAhead < 1 {
		return nil, services.Wrap(services.ErrValidation, "reclaim", "init", fmt.Sprintf("max frames ahead must be >= 1, got %d", settings.MaxFramesAhead), nil)
	}
	r := &Reclaimer{
		settings:  settings,
		layout:    layout,
		extractor: extractor,
		logger:    logging.NewComponentLogger(nil, "reclaimer"),
		remover:   newRemover(DeletePolicy{Attempts: DefaultDeleteAttempts, Backoff: DefaultDeleteBackoff}),
		inflight:  DefaultMaxInflightDeletes,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.sem = semaphore.NewWeighted(r.inflight)
	return r, nil
}

// Extracted returns the highest frame index extracted so far.
func (r *Reclaimer) Extracted() int {
	return int(r.extracted.Load())
}

// Abandoned returns how many files were left behind after exhausting the
// deletion budget.
func (r *Reclaimer) Abandoned() int {
	return int(r.abandoned.Load())
}

// Prime extracts the first min(lookAhead, FrameCount) frames so the consumer
// has work before the wait loop starts.
func (r *Reclaimer) Prime(ctx context.Context, lookAhead int) error {
	n := min(lookAhead, r.settings.FrameCount)
	for i := 0; i < n; i++ {
		if err := r.extract(ctx); err != nil {
			return err
		}
	}
	r.logger.Debug("look-ahead primed", logging.Int("frames", n))
	return nil
}

// Run extracts one frame per confirmed frame until the source is exhausted,
// reclaiming artifacts ReclaimLag frames behind the confirmed index. The
// extractor is released on every return path and in-flight deletions are
// drained before Run returns.
func (r *Reclaimer) Run(ctx context.Context, counter *progress.Counter) (err error) {
	defer func() {
		if closeErr := r.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	defer r.wg.Wait()

	last := r.settings.FrameCount - r.settings.MaxFramesAhead
	for x := 1; x <= last; x++ {
		if err := counter.WaitFor(ctx, x); err != nil {
			r.logger.Debug("reclaimer stopping", logging.Int(logging.FieldFrame, x), logging.Error(err))
			return err
		}
		if err := r.extract(ctx); err != nil {
			return err
		}
		r.reclaim(ctx, ReclaimIndex(x))
	}
	r.logger.Debug("extraction finished",
		logging.Int("frames", r.Extracted()),
		logging.Int("abandoned_files", r.Abandoned()),
	)
	return nil
}

// Close releases the extractor. Safe to call repeatedly.
func (r *Reclaimer) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.extractor.Close()
		if r.closeErr != nil {
			r.closeErr = services.Wrap(services.ErrExternalTool, "reclaim", "release decoder", "", r.closeErr)
		}
	})
	return r.closeErr
}

func (r *Reclaimer) extract(ctx context.Context) error {
	index, err := r.extractor.Next(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return services.Wrap(services.ErrExternalTool, "reclaim", "extract frame",
			fmt.Sprintf("frame %d", r.Extracted()+1), err)
	}
	r.extracted.Store(int64(index))
	return nil
}

// reclaim dispatches deletion of one frame's artifacts. Blocks while the
// in-flight limit is reached.
func (r *Reclaimer) reclaim(ctx context.Context, frame int) {
	if frame < 1 {
		return
	}
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return
	}
	files := r.layout.ArtifactSet(frame)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.sem.Release(1)
		abandoned := r.remover.removeAll(files)
		if len(abandoned) == 0 {
			return
		}
		r.abandoned.Add(int64(len(abandoned)))
		r.logger.Debug("artifact deletion abandoned",
			logging.Int(logging.FieldFrame, frame),
			logging.Any("files", abandoned),
			logging.Int("attempts", r.remover.policy.Attempts),
		)
	}()
}
