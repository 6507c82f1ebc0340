package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"upscaler/internal/jobstore"
	"upscaler/internal/logging"
	"upscaler/internal/partition"
	"upscaler/internal/pipeline"
	"upscaler/internal/services"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var outputFlag string
	var keepWorkspace bool

	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Upscale a video with a single pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.setup()
			if err != nil {
				return err
			}
			input, err := resolveInput(args[0])
			if err != nil {
				return err
			}
			output, err := resolveOutput(outputFlag)
			if err != nil {
				return err
			}
			if err := checkReady(cmd.Context(), cfg); err != nil {
				return err
			}

			id := uuid.NewString()
			workspace := filepath.Join(cfg.Paths.WorkspaceDir, id)
			job := newJob(cfg, input, output, workspace)
			runCtx := services.WithJobID(cmd.Context(), id)
			logger = logging.WithContext(runCtx, logger)

			store, err := jobstore.Open(cfg)
			if err != nil {
				logger.Warn("job history unavailable", logging.Error(err))
			} else {
				defer store.Close()
			}

			run := singleRun{
				id:       id,
				prober:   pipeline.Prober{Binary: ffprobeBinary(cfg), Logger: logger},
				runner:   newInstance(cfg, logger, false),
				remuxer:  newFFmpegRunner(cfg, logger),
				recorder: recorderOrNil(store),
				logger:   logger,
			}
			err = run.execute(runCtx, job)
			if err != nil {
				logger.Error("upscale failed",
					logging.Error(err),
					logging.String("failed_at", services.StageOf(err)),
					logging.String("workspace", workspace),
				)
				return err
			}
			removeWorkspace(logger, workspace, keepWorkspace)
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", job.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file (default: tagged name next to the input)")
	cmd.Flags().BoolVar(&keepWorkspace, "keep-workspace", false, "Keep the frame workspace after a successful run")
	return cmd
}

// recorderOrNil avoids handing a typed nil store to code that checks for a
// nil recorder.
func recorderOrNil(store *jobstore.Store) partition.Recorder {
	if store == nil {
		return nil
	}
	return store
}

// singleRun upscales one job without splitting: probe, run one pipeline into
// a video-only intermediate, then remux the source's other streams.
type singleRun struct {
	id       string
	prober   partition.Prober
	runner   partition.Runner
	remuxer  partition.Remuxer
	recorder partition.Recorder
	logger   *slog.Logger
}

func (r singleRun) execute(ctx context.Context, job pipeline.Job) (err error) {
	if err := os.MkdirAll(job.Workspace, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "run", "prepare workspace", "", err)
	}
	info, err := r.prober.Probe(ctx, job.InputPath)
	if err != nil {
		return err
	}
	job = job.WithMedia(info)
	if job.FrameCount < 1 {
		return services.Wrap(services.ErrValidation, "run", "probe", "input has no frames", nil)
	}

	r.record(ctx, func(rec partition.Recorder) error { return rec.RecordJob(ctx, r.id, job, 1) })
	defer func() {
		if err != nil {
			// Record the failure even when ctx was cancelled.
			rctx := context.WithoutCancel(ctx)
			r.record(rctx, func(rec partition.Recorder) error {
				return rec.RecordState(rctx, r.id, partition.StateFailed, err)
			})
		}
	}()
	r.setState(ctx, partition.StateRunning)

	intermediate := job.Clone()
	intermediate.OutputPath = filepath.Join(job.Workspace, partition.NoAudioName)
	if err := r.runner.Run(ctx, intermediate); err != nil {
		return err
	}

	r.setState(ctx, partition.StateMerging)
	if err := r.remuxer.Remux(ctx, intermediate.OutputPath, job.InputPath, job.OutputPath); err != nil {
		return err
	}
	r.setState(ctx, partition.StateDone)
	r.logger.Info("upscale complete", logging.String("output", job.OutputPath), logging.Int("frames", job.FrameCount))
	return nil
}

func (r singleRun) setState(ctx context.Context, state partition.State) {
	r.record(ctx, func(rec partition.Recorder) error { return rec.RecordState(ctx, r.id, state, nil) })
}

func (r singleRun) record(ctx context.Context, fn func(partition.Recorder) error) {
	if r.recorder == nil {
		return
	}
	if err := fn(r.recorder); err != nil && ctx.Err() == nil {
		r.logger.Warn("failed to record job state", logging.Error(err))
	}
}
