package ffprobe

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"upscaler/internal/services"
)

const sampleJSON = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720,
     "r_frame_rate": "24000/1001", "avg_frame_rate": "24000/1001", "nb_frames": "2400"},
    {"index": 1, "codec_type": "audio", "codec_name": "aac", "channels": 2},
    {"index": 2, "codec_type": "subtitle", "codec_name": "subrip"}
  ],
  "format": {"filename": "clip.mp4", "nb_streams": 3, "duration": "100.1"}
}`

func TestParseVideoHelpers(t *testing.T) {
	result, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := result.VideoStream(); !ok {
		t.Fatal("expected video")
	}
	if result.AudioStreamCount() != 1 {
		t.Fatalf("expected 1 audio stream, got %d", result.AudioStreamCount())
	}
	if result.FrameCount() != 2400 {
		t.Fatalf("FrameCount = %d, want 2400", result.FrameCount())
	}
	fps, raw := result.FrameRate()
	if raw != "24000/1001" || math.Abs(fps-23.976) > 0.001 {
		t.Fatalf("FrameRate = %v %q", fps, raw)
	}
	if math.Abs(result.DurationSeconds()-100.1) > 1e-9 {
		t.Fatalf("DurationSeconds = %v", result.DurationSeconds())
	}
}

func TestFrameCountFallsBackToDuration(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", Width: 640, Height: 480, RFrameRate: "25/1"}},
		Format:  Format{Duration: "4.0"},
	}
	if got := result.FrameCount(); got != 100 {
		t.Fatalf("FrameCount = %d, want 100", got)
	}
}

func TestFrameCountPrefersReadPackets(t *testing.T) {
	payload := `{
  "streams": [
    {"index": 0, "codec_type": "video", "width": 640, "height": 480,
     "r_frame_rate": "25/1", "duration": "4.0", "nb_read_packets": "99"}
  ],
  "format": {"duration": "4.0"}
}`
	result, err := Parse([]byte(payload))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := result.FrameCount(); got != 99 {
		t.Fatalf("FrameCount = %d, want 99 counted packets", got)
	}
	if !result.ExactFrameCount() {
		t.Fatal("expected counted packets to be exact")
	}

	estimated := Result{
		Streams: []Stream{{CodecType: "video", RFrameRate: "25/1"}},
		Format:  Format{Duration: "4.0"},
	}
	if estimated.ExactFrameCount() {
		t.Fatal("duration estimate reported as exact")
	}
}

func writeFFprobe(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCountFramesReadsPacketCount(t *testing.T) {
	binary := writeFFprobe(t, `echo '{"streams":[{"codec_type":"video","nb_read_packets":"1437"}]}'`)
	n, err := CountFrames(context.Background(), binary, "segment.mkv")
	if err != nil {
		t.Fatalf("CountFrames: %v", err)
	}
	if n != 1437 {
		t.Fatalf("CountFrames = %d, want 1437", n)
	}
}

func TestCountFramesFailures(t *testing.T) {
	failing := writeFFprobe(t, "echo boom >&2; exit 1")
	if _, err := CountFrames(context.Background(), failing, "segment.mkv"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}

	empty := writeFFprobe(t, `echo '{"streams":[{"codec_type":"video"}]}'`)
	if _, err := CountFrames(context.Background(), empty, "segment.mkv"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected error for missing packet count, got %v", err)
	}
}

func TestRequireVideo(t *testing.T) {
	audioOnly := Result{Streams: []Stream{{CodecType: "audio"}}}
	_, err := audioOnly.RequireVideo()
	if !errors.Is(err, ErrNoVideo) || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected no-video validation error, got %v", err)
	}

	noFrames := Result{Streams: []Stream{{CodecType: "video", Width: 10, Height: 10}}}
	if _, err := noFrames.RequireVideo(); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown frame count, got %v", err)
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", RFrameRate: "0/0", AvgFrameRate: "bad"}},
		Format:  Format{Duration: "bad"},
	}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected duration 0, got %v", result.DurationSeconds())
	}
	if fps, _ := result.FrameRate(); fps != 0 {
		t.Fatalf("expected fps 0, got %v", fps)
	}
	if result.FrameCount() != 0 {
		t.Fatalf("expected frame count 0, got %d", result.FrameCount())
	}
}
