package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"upscaler/internal/config"
	"upscaler/internal/engine"
	"upscaler/internal/fswait"
	"upscaler/internal/media/ffmpeg"
	"upscaler/internal/reclaim"
)

// DefaultComponents decode with ffmpeg and upscale with the configured engine
// command, encoding results through an ffmpeg image pipe.
func DefaultComponents(cfg *config.Config, logger *slog.Logger) Components {
	return Components{
		NewExtractor: func(ctx context.Context, job Job, layout reclaim.Layout) (reclaim.Extractor, error) {
			extractor, err := ffmpeg.NewFrameExtractor(ctx, ffmpeg.ExtractorConfig{
				Binary:      cfg.FFmpeg.FFmpegBinary,
				Input:       job.InputPath,
				Width:       job.Width,
				Height:      job.Height,
				JPEGQuality: job.Engine.Quality,
				Paths:       layout,
			})
			if err != nil {
				return nil, err
			}
			return extractor, nil
		},
		NewConsumer: func(ctx context.Context, job Job, layout reclaim.Layout) (Consumer, error) {
			watcher, err := fswait.New(filepath.Join(layout.Root, reclaim.InputDir), logger)
			if err != nil {
				return nil, err
			}
			sink, err := ffmpeg.NewFrameSink(ctx, cfg.FFmpeg.FFmpegBinary, job.OutputPath, job.FrameRate, job.OutputOptions)
			if err != nil {
				_ = watcher.Close()
				return nil, err
			}
			settings := engine.Settings{
				Command:    cfg.Engine.Command,
				Args:       cfg.Engine.Args,
				Scale:      job.Engine.Scale,
				NoiseLevel: job.Engine.NoiseLevel,
				BlockSize:  job.Engine.BlockSize,
			}
			consumer, err := engine.NewConsumer(settings, layout, watcher, sink, engine.WithLogger(logger))
			if err != nil {
				_ = sink.Close()
				_ = watcher.Close()
				return nil, err
			}
			return &engineConsumer{Consumer: consumer, watcher: watcher, sink: sink}, nil
		},
	}
}

type engineConsumer struct {
	*engine.Consumer
	watcher *fswait.Watcher
	sink    *ffmpeg.FrameSink
}

// Close finalizes the encoded output before releasing the watcher.
func (c *engineConsumer) Close() error {
	return errors.Join(c.sink.Close(), c.watcher.Close())
}
