package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"upscaler/internal/logging"
	"upscaler/internal/monitor"
	"upscaler/internal/progress"
	"upscaler/internal/reclaim"
	"upscaler/internal/services"
)

// Consumer drains extracted frames and advances the counter. Close finalizes
// whatever the consumer produced and is called exactly once per Run.
type Consumer interface {
	Run(ctx context.Context, counter *progress.Counter) error
	Close() error
}

// Components build the external collaborators of an instance.
type Components struct {
	NewExtractor func(ctx context.Context, job Job, layout reclaim.Layout) (reclaim.Extractor, error)
	NewConsumer  func(ctx context.Context, job Job, layout reclaim.Layout) (Consumer, error)
}

// Instance runs jobs one at a time. It holds no per-job state, so one
// Instance may serve several partitions concurrently.
type Instance struct {
	components  Components
	reclaimOpts []reclaim.Option
	renderer    func(Job) monitor.Renderer
	logger      *slog.Logger
}

// InstanceOption customizes an Instance.
type InstanceOption func(*Instance)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) InstanceOption {
	return func(i *Instance) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithReclaimOptions forwards options to every reclaimer.
func WithReclaimOptions(opts ...reclaim.Option) InstanceOption {
	return func(i *Instance) {
		i.reclaimOpts = append(i.reclaimOpts, opts...)
	}
}

// WithRenderer selects the progress renderer per job.
func WithRenderer(fn func(Job) monitor.Renderer) InstanceOption {
	return func(i *Instance) {
		i.renderer = fn
	}
}

// NewInstance returns an instance using the given collaborators.
func NewInstance(components Components, opts ...InstanceOption) *Instance {
	i := &Instance{components: components, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run executes job to completion. The look-ahead window is primed before the
// reclaimer, consumer and monitor start; the first failure cancels the rest.
func (i *Instance) Run(ctx context.Context, job Job) (err error) {
	if err := job.Validate(); err != nil {
		return err
	}
	if i.components.NewExtractor == nil || i.components.NewConsumer == nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "run", "pipeline components not configured", nil)
	}
	logger := logging.WithContext(ctx, logging.NewComponentLogger(i.logger, "pipeline"))

	layout := reclaim.NewLayout(job.Workspace)
	if err := layout.EnsureDirs(); err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "prepare workspace", "", err)
	}

	extractor, err := i.components.NewExtractor(ctx, job, layout)
	if err != nil {
		return err
	}
	opts := append([]reclaim.Option{reclaim.WithLogger(logger)}, i.reclaimOpts...)
	reclaimer, err := reclaim.New(reclaim.Settings{FrameCount: job.FrameCount, MaxFramesAhead: job.MaxFramesAhead}, layout, extractor, opts...)
	if err != nil {
		_ = extractor.Close()
		return err
	}
	defer func() {
		if closeErr := reclaimer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	consumer, err := i.components.NewConsumer(ctx, job, layout)
	if err != nil {
		return err
	}
	consumerClosed := false
	defer func() {
		if !consumerClosed {
			_ = consumer.Close()
		}
	}()

	logger.Info("pipeline starting",
		logging.String("input", job.InputPath),
		logging.Int("frames", job.FrameCount),
		logging.Int("max_frames_ahead", job.MaxFramesAhead),
	)

	if err := reclaimer.Prime(ctx, job.MaxFramesAhead); err != nil {
		return err
	}

	counter := progress.NewCounter(job.FrameCount)
	group, gctx := errgroup.WithContext(ctx)

	monOpts := []monitor.Option{monitor.WithLogger(logger)}
	if i.renderer != nil {
		monOpts = append(monOpts, monitor.WithRenderer(i.renderer(job)))
	}
	mon := monitor.New(job.Name, monOpts...)
	monCtx, stopMonitor := context.WithCancel(gctx)
	monDone := make(chan struct{})
	go func() {
		defer close(monDone)
		_ = mon.Run(monCtx, counter)
	}()

	group.Go(func() error { return reclaimer.Run(gctx, counter) })
	group.Go(func() error { return consumer.Run(gctx, counter) })
	runErr := group.Wait()
	stopMonitor()
	<-monDone

	consumerClosed = true
	closeErr := consumer.Close()
	if runErr != nil {
		if !errors.Is(runErr, context.Canceled) {
			logging.Event(ctx, logger, slog.LevelError, "pipeline_failed", "pipeline failed",
				"inspect the engine and ffmpeg output above",
				logging.Error(runErr),
				logging.Int("confirmed_frames", counter.Current()),
			)
		}
		return runErr
	}
	if closeErr != nil {
		return closeErr
	}
	logger.Info("pipeline complete", logging.String("output", job.OutputPath), logging.Int("frames", counter.Current()))
	return nil
}
