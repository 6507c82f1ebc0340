package main

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"upscaler/internal/jobstore"
	"upscaler/internal/logging"
	"upscaler/internal/media/ffmpeg"
	"upscaler/internal/partition"
	"upscaler/internal/pipeline"
	"upscaler/internal/services"
)

func newSplitCommand(ctx *commandContext) *cobra.Command {
	var outputFlag string
	var partitions int
	var keepWorkspace bool

	cmd := &cobra.Command{
		Use:   "split <input>",
		Short: "Split a video into partitions and upscale them concurrently",
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
			n := partitions
			if n <= 0 {
				n = cfg.Pipeline.Partitions
			}
			if err := checkReady(cmd.Context(), cfg); err != nil {
				return err
			}

			id := uuid.NewString()
			workspace := filepath.Join(cfg.Paths.WorkspaceDir, id)
			job := newJob(cfg, input, output, workspace)

			store, err := jobstore.Open(cfg)
			if err != nil {
				logger.Warn("job history unavailable", logging.Error(err))
			} else {
				defer store.Close()
			}

			runner := newFFmpegRunner(cfg, logger)
			orchestrator := partition.New(partition.Dependencies{
				Splitter:     runner,
				Segments:     ffmpeg.Segments,
				Prober:       pipeline.Prober{Binary: ffprobeBinary(cfg), Logger: logger},
				Runner:       newInstance(cfg, logger, n > 1),
				Concatenator: runner,
				Remuxer:      runner,
				Recorder:     recorderOrNil(store),
			}, partition.WithID(id), partition.WithLogger(logger))

			if err := orchestrator.Run(cmd.Context(), job, n); err != nil {
				logger.Error("partitioned upscale failed",
					logging.String(logging.FieldJobID, id),
					logging.String("state", string(orchestrator.State())),
					logging.String("failed_at", services.StageOf(err)),
					logging.String("workspace", workspace),
					logging.Error(err),
				)
				return err
			}
			removeWorkspace(logger, workspace, keepWorkspace)
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", job.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file (default: tagged name next to the input)")
	cmd.Flags().IntVarP(&partitions, "partitions", "n", 0, "Number of partitions (default from config)")
	cmd.Flags().BoolVar(&keepWorkspace, "keep-workspace", false, "Keep segment workspaces after a successful run")
	return cmd
}
