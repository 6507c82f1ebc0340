package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"upscaler/internal/config"
	"upscaler/internal/deps"
	"upscaler/internal/logging"
	"upscaler/internal/media/ffmpeg"
	"upscaler/internal/monitor"
	"upscaler/internal/pipeline"
	"upscaler/internal/preflight"
	"upscaler/internal/reclaim"
	"upscaler/internal/services"
)

// newJob builds the parent job for input from config defaults. An empty
// output derives a tagged name next to the input.
func newJob(cfg *config.Config, input, output, workspace string) pipeline.Job {
	settings := pipeline.EngineSettings{
		Name:       cfg.Engine.Name,
		Scale:      cfg.Engine.Scale,
		NoiseLevel: cfg.Engine.NoiseLevel,
		BlockSize:  cfg.Engine.BlockSize,
		Quality:    cfg.Pipeline.JPEGQuality,
	}
	if strings.TrimSpace(output) == "" {
		output = pipeline.DefaultOutputPath(input, settings)
	}
	return pipeline.Job{
		Name:           filepath.Base(input),
		InputPath:      input,
		OutputPath:     output,
		Workspace:      workspace,
		MaxFramesAhead: cfg.Pipeline.MaxFramesAhead,
		Engine:         settings,
		OutputOptions:  cfg.OutputOptions(),
	}
}

func resolveInput(arg string) (string, error) {
	path, err := config.ExpandPath(strings.TrimSpace(arg))
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "cli", "resolve input", path, err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrValidation, "cli", "resolve input", path+" is a directory", nil)
	}
	return path, nil
}

func resolveOutput(arg string) (string, error) {
	if strings.TrimSpace(arg) == "" {
		return "", nil
	}
	return config.ExpandPath(arg)
}

// checkReady runs preflight and dependency checks and fails on the first
// required problem.
func checkReady(ctx context.Context, cfg *config.Config) error {
	var problems []string
	for _, status := range preflight.CheckSystemDeps(ctx, cfg) {
		if !status.Available && !status.Optional {
			problems = append(problems, fmt.Sprintf("%s: %s", status.Name, status.Detail))
		}
	}
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		problems = append(problems, fmt.Sprintf("%s: %s", result.Name, result.Detail))
	}
	if len(problems) > 0 {
		return services.Wrap(services.ErrConfiguration, "cli", "preflight",
			strings.Join(problems, "; ")+" (run `upscaler doctor` for details)", nil)
	}
	return nil
}

func ffprobeBinary(cfg *config.Config) string {
	return deps.ResolveFFprobe(cfg.FFmpeg.FFmpegBinary, cfg.FFmpeg.FFprobeBinary)
}

// newInstance wires the default ffmpeg and engine components. shared selects
// log-based progress so concurrent partitions do not fight over one terminal.
func newInstance(cfg *config.Config, logger *slog.Logger, shared bool) *pipeline.Instance {
	return pipeline.NewInstance(
		pipeline.DefaultComponents(cfg, logger),
		pipeline.WithLogger(logger),
		pipeline.WithReclaimOptions(
			reclaim.WithDeletePolicy(cfg.Pipeline.DeleteAttempts, cfg.DeleteBackoff()),
			reclaim.WithMaxInflightDeletes(cfg.Pipeline.MaxInflightDeletes),
		),
		pipeline.WithRenderer(func(pipeline.Job) monitor.Renderer {
			if shared {
				return monitor.NewLogRenderer(logger)
			}
			return monitor.NewRenderer(os.Stderr, logger)
		}),
	)
}

func newFFmpegRunner(cfg *config.Config, logger *slog.Logger) *ffmpeg.Runner {
	return ffmpeg.NewRunner(cfg.FFmpeg.FFmpegBinary, logger)
}

func removeWorkspace(logger *slog.Logger, workspace string, keep bool) {
	if keep {
		logger.Info("workspace kept", logging.String("workspace", workspace))
		return
	}
	if err := os.RemoveAll(workspace); err != nil {
		logger.Warn("failed to remove workspace", logging.String("workspace", workspace), logging.Error(err))
	}
}
