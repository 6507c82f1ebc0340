package pipeline

import (
	"context"
	"log/slog"

	"upscaler/internal/logging"
	"upscaler/internal/media/ffprobe"
)

// MediaInfo is what a pipeline needs to know about a source before it starts.
type MediaInfo struct {
	FrameCount      int
	FrameRate       string
	Width           int
	Height          int
	DurationSeconds float64
	AudioStreams    int
}

// Prober inspects media files.
type Prober struct {
	Binary string
	Logger *slog.Logger
}

// Probe runs ffprobe on path and requires a decodable video stream. When the
// container does not record a frame count (mkv segments) the packets are
// counted, since the extractor and consumer loops must match the stream
// exactly. The duration estimate is used only if counting fails.
func (p Prober) Probe(ctx context.Context, path string) (MediaInfo, error) {
	result, err := ffprobe.Inspect(ctx, p.Binary, path)
	if err != nil {
		return MediaInfo{}, err
	}
	stream, err := result.RequireVideo()
	if err != nil {
		return MediaInfo{}, err
	}
	frames := result.FrameCount()
	if !result.ExactFrameCount() {
		counted, err := ffprobe.CountFrames(ctx, p.Binary, path)
		switch {
		case err == nil:
			frames = counted
		case ctx.Err() != nil:
			return MediaInfo{}, ctx.Err()
		default:
			logging.Event(ctx, p.logger(), slog.LevelWarn, "frame_count_estimated",
				"frame count is an estimate", "install an ffprobe that supports -count_packets",
				logging.String("path", path),
				logging.Int("estimated_frames", frames),
				logging.Error(err),
			)
		}
	}
	_, rate := result.FrameRate()
	return MediaInfo{
		FrameCount:      frames,
		FrameRate:       rate,
		Width:           stream.Width,
		Height:          stream.Height,
		DurationSeconds: result.DurationSeconds(),
		AudioStreams:    result.AudioStreamCount(),
	}, nil
}

func (p Prober) logger() *slog.Logger {
	if p.Logger == nil {
		return logging.NewNop()
	}
	return p.Logger
}

// WithMedia returns a copy of j sized from info.
func (j Job) WithMedia(info MediaInfo) Job {
	out := j.Clone()
	out.FrameCount = info.FrameCount
	out.FrameRate = info.FrameRate
	out.Width = info.Width
	out.Height = info.Height
	return out
}
