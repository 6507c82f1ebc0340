package partition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"upscaler/internal/logging"
	"upscaler/internal/pipeline"
	"upscaler/internal/services"
)

const (
	// NoAudioName is the concatenated, audio-less intermediate inside the workspace.
	NoAudioName = "noaudio.mkv"
	lockName    = ".upscaler.lock"
)

// Splitter divides a source into n re-encoded segments inside dir.
type Splitter interface {
	Split(ctx context.Context, input string, durationSeconds float64, n int, dir string, opts []string) error
}

// Concatenator joins files in order into one video-only stream.
type Concatenator interface {
	Concat(ctx context.Context, files []string, output string) error
}

// Remuxer carries the source's audio and subtitles onto a video-only stream.
type Remuxer interface {
	Remux(ctx context.Context, videoOnly, source, output string) error
}

// Prober reads frame count and geometry from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (pipeline.MediaInfo, error)
}

// Runner executes one pipeline instance.
type Runner interface {
	Run(ctx context.Context, job pipeline.Job) error
}

// Recorder persists job progress. Failures to record are logged, not fatal.
type Recorder interface {
	RecordJob(ctx context.Context, id string, job pipeline.Job, partitions int) error
	RecordState(ctx context.Context, id string, state State, cause error) error
	RecordPartitions(ctx context.Context, id string, plan Plan) error
	RecordPartitionState(ctx context.Context, id string, index int, state State, cause error) error
}

// Plan is the ordered set of partition jobs and their expected outputs.
// Index i of Jobs and Outputs always refers to the same segment.
type Plan struct {
	Parent  pipeline.Job
	Jobs    []pipeline.Job
	Outputs []string
}

// Dependencies are the orchestrator's external collaborators.
type Dependencies struct {
	Splitter     Splitter
	Segments     func(dir string) ([]string, error)
	Prober       Prober
	Runner       Runner
	Concatenator Concatenator
	Remuxer      Remuxer
	Recorder     Recorder
}

// Orchestrator drives a single partitioned job. It is not reusable.
type Orchestrator struct {
	id     string
	deps   Dependencies
	logger *slog.Logger

	mu    sync.Mutex
	state State
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logging.NewComponentLogger(logger, "partition")
		}
	}
}

// WithID overrides the generated job identifier.
func WithID(id string) Option {
	return func(o *Orchestrator) {
		if id != "" {
			o.id = id
		}
	}
}

// New returns an orchestrator in the created state.
func New(deps Dependencies, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		id:     uuid.NewString(),
		deps:   deps,
		logger: logging.NewComponentLogger(nil, "partition"),
		state:  StateCreated,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ID returns the job identifier used for persistence and logging.
func (o *Orchestrator) ID() string {
	return o.id
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Run plans, executes and merges job into n partitions while holding the
// workspace lock.
func (o *Orchestrator) Run(ctx context.Context, job pipeline.Job, n int) error {
	ctx = services.WithJobID(ctx, o.id)
	if err := os.MkdirAll(job.Workspace, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "partition", "prepare workspace", "", err)
	}
	lock := flock.New(filepath.Join(job.Workspace, lockName))
	ok, err := lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "partition", "lock workspace", "", err)
	}
	if !ok {
		return services.Wrap(services.ErrValidation, "partition", "lock workspace",
			fmt.Sprintf("workspace %s is in use by another job", job.Workspace), nil)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			o.logger.Warn("failed to release workspace lock", logging.Error(err))
		}
	}()

	if o.deps.Recorder != nil {
		if err := o.deps.Recorder.RecordJob(ctx, o.id, job, n); err != nil {
			o.logRecordFailure(ctx, "job", err)
		}
	}

	plan, err := o.Plan(ctx, job, n)
	if err != nil {
		return err
	}
	if err := o.Execute(ctx, plan); err != nil {
		return err
	}
	return o.Merge(ctx, plan)
}

// Plan splits the source and builds one isolated job per segment, ordered by
// segment name.
func (o *Orchestrator) Plan(ctx context.Context, job pipeline.Job, n int) (Plan, error) {
	ctx = services.WithJobID(ctx, o.id)
	if err := o.requireState(StateCreated); err != nil {
		return Plan{}, err
	}
	plan, err := o.plan(ctx, job, n)
	if err != nil {
		o.fail(ctx, err)
		return Plan{}, err
	}
	if o.deps.Recorder != nil {
		if err := o.deps.Recorder.RecordPartitions(ctx, o.id, plan); err != nil {
			o.logRecordFailure(ctx, "partitions", err)
		}
	}
	if err := o.transition(ctx, StatePlanned, nil); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func (o *Orchestrator) plan(ctx context.Context, job pipeline.Job, n int) (Plan, error) {
	if n < 1 {
		return Plan{}, services.Wrap(services.ErrValidation, "partition", "plan", fmt.Sprintf("partition count must be >= 1, got %d", n), nil)
	}
	if err := o.deps.validate(); err != nil {
		return Plan{}, err
	}
	source, err := o.deps.Prober.Probe(ctx, job.InputPath)
	if err != nil {
		return Plan{}, err
	}
	if err := o.deps.Splitter.Split(ctx, job.InputPath, source.DurationSeconds, n, job.Workspace, job.OutputOptions); err != nil {
		return Plan{}, err
	}
	segments, err := o.deps.Segments(job.Workspace)
	if err != nil {
		return Plan{}, err
	}
	if len(segments) != n {
		logging.Event(ctx, logging.WithContext(ctx, o.logger), slog.LevelWarn, "segment_count_mismatch",
			"splitter produced a different segment count",
			"segment boundaries snap to keyframes; every produced segment is still processed",
			logging.Int("requested", n),
			logging.Int("produced", len(segments)),
		)
	}

	plan := Plan{Parent: job.Clone()}
	for i, segment := range segments {
		info, err := o.deps.Prober.Probe(ctx, segment)
		if err != nil {
			return Plan{}, err
		}
		sub := job.ForPartition(i, segment, job.Workspace).WithMedia(info)
		plan.Jobs = append(plan.Jobs, sub)
		plan.Outputs = append(plan.Outputs, sub.OutputPath)
	}
	return plan, nil
}

// Execute runs every partition concurrently and returns after all of them
// have stopped. Any partition failure fails the job.
func (o *Orchestrator) Execute(ctx context.Context, plan Plan) error {
	ctx = services.WithJobID(ctx, o.id)
	if err := o.transition(ctx, StateRunning, nil); err != nil {
		return err
	}
	group, gctx := errgroup.WithContext(ctx)
	for i, job := range plan.Jobs {
		group.Go(func() error {
			pctx := services.WithPartition(gctx, i)
			o.recordPartition(pctx, i, StateRunning, nil)
			if err := o.deps.Runner.Run(pctx, job); err != nil {
				o.recordPartition(pctx, i, StateFailed, err)
				return fmt.Errorf("partition %d: %w", i, err)
			}
			o.recordPartition(pctx, i, StateDone, nil)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		o.fail(ctx, err)
		return err
	}
	return nil
}

// Merge concatenates partition outputs in plan order and remuxes the
// source's audio and subtitle tracks onto the result.
func (o *Orchestrator) Merge(ctx context.Context, plan Plan) error {
	ctx = services.WithJobID(ctx, o.id)
	if err := o.transition(ctx, StateMerging, nil); err != nil {
		return err
	}
	noAudio := filepath.Join(plan.Parent.Workspace, NoAudioName)
	if err := o.deps.Concatenator.Concat(ctx, plan.Outputs, noAudio); err != nil {
		o.fail(ctx, err)
		return err
	}
	if err := o.deps.Remuxer.Remux(ctx, noAudio, plan.Parent.InputPath, plan.Parent.OutputPath); err != nil {
		o.fail(ctx, err)
		return err
	}
	return o.transition(ctx, StateDone, nil)
}

func (d Dependencies) validate() error {
	var missing []string
	if d.Splitter == nil {
		missing = append(missing, "splitter")
	}
	if d.Segments == nil {
		missing = append(missing, "segment lister")
	}
	if d.Prober == nil {
		missing = append(missing, "prober")
	}
	if d.Runner == nil {
		missing = append(missing, "runner")
	}
	if d.Concatenator == nil {
		missing = append(missing, "concatenator")
	}
	if d.Remuxer == nil {
		missing = append(missing, "remuxer")
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrConfiguration, "partition", "init", fmt.Sprintf("missing %v", missing), nil)
	}
	return nil
}

func (o *Orchestrator) requireState(want State) error {
	if got := o.State(); got != want {
		return fmt.Errorf("%w: expected %s, orchestrator is %s", ErrIllegalTransition, want, got)
	}
	return nil
}

func (o *Orchestrator) transition(ctx context.Context, to State, cause error) error {
	o.mu.Lock()
	from := o.state
	if err := checkTransition(from, to); err != nil {
		o.mu.Unlock()
		return err
	}
	o.state = to
	o.mu.Unlock()

	logger := logging.WithContext(ctx, o.logger)
	if to == StateFailed {
		logging.Event(ctx, logger, slog.LevelError, "job_failed", "job failed", "",
			logging.String("from", string(from)),
			logging.Error(cause),
		)
	} else {
		logger.Info("job state changed", logging.String("from", string(from)), logging.String("to", string(to)))
	}
	if o.deps.Recorder != nil {
		// History is written even after cancellation so the failure is visible.
		if err := o.deps.Recorder.RecordState(context.WithoutCancel(ctx), o.id, to, cause); err != nil {
			o.logRecordFailure(ctx, "state", err)
		}
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, cause error) {
	if err := o.transition(ctx, StateFailed, cause); err != nil && !errors.Is(err, ErrIllegalTransition) {
		o.logger.Warn("failed to mark job failed", logging.Error(err))
	}
}

func (o *Orchestrator) recordPartition(ctx context.Context, index int, state State, cause error) {
	if o.deps.Recorder == nil {
		return
	}
	if err := o.deps.Recorder.RecordPartitionState(context.WithoutCancel(ctx), o.id, index, state, cause); err != nil {
		o.logRecordFailure(ctx, "partition state", err)
	}
}

func (o *Orchestrator) logRecordFailure(ctx context.Context, what string, err error) {
	logging.Event(ctx, logging.WithContext(ctx, o.logger), slog.LevelWarn, "jobstore_write_failed",
		"failed to record job progress",
		"job continues; `upscaler jobs` may show stale state",
		logging.String("record", what),
		logging.Error(err),
	)
}
