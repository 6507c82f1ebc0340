package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"upscaler/internal/services"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Duration     string `json:"duration"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	PixFmt       string `json:"pix_fmt"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NBFrames     string `json:"nb_frames"`
	NBReadPacket string `json:"nb_read_packets"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, services.Wrap(services.ErrValidation, "ffprobe", "inspect", "empty path", nil)
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, services.Wrap(services.ErrExternalTool, "ffprobe", "inspect", strings.TrimSpace(string(output)), err)
	}
	return Parse(output)
}

// CountFrames demuxes the first video stream of path and returns its packet
// count. Slower than Inspect, but exact for containers without nb_frames.
func CountFrames(ctx context.Context, binary string, path string) (int, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-select_streams", "v:0",
		"-count_packets", "-show_entries", "stream=codec_type,nb_read_packets", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, services.Wrap(services.ErrExternalTool, "ffprobe", "count packets", path, err)
	}
	result, err := Parse(output)
	if err != nil {
		return 0, err
	}
	stream, ok := result.VideoStream()
	if !ok {
		return 0, services.Wrap(services.ErrValidation, "ffprobe", "count packets", path, ErrNoVideo)
	}
	n, err := strconv.Atoi(strings.TrimSpace(stream.NBReadPacket))
	if err != nil || n <= 0 {
		return 0, services.Wrap(services.ErrExternalTool, "ffprobe", "count packets",
			fmt.Sprintf("unusable nb_read_packets %q", stream.NBReadPacket), err)
	}
	return n, nil
}

// Parse decodes an ffprobe JSON payload.
func Parse(payload []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoStream returns the first video stream.
func (r Result) VideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			count++
		}
	}
	return count
}

// FrameRate returns the video frame rate in frames per second together with
// the rational form ffmpeg expects on its command line.
func (r Result) FrameRate() (float64, string) {
	stream, ok := r.VideoStream()
	if !ok {
		return 0, ""
	}
	for _, raw := range []string{stream.RFrameRate, stream.AvgFrameRate} {
		if fps := parseRational(raw); fps > 0 {
			return fps, strings.TrimSpace(raw)
		}
	}
	return 0, ""
}

// FrameCount returns the number of video frames: nb_frames, then
// nb_read_packets, then an estimate of duration times frame rate.
func (r Result) FrameCount() int {
	stream, ok := r.VideoStream()
	if !ok {
		return 0
	}
	if n, ok := exactCount(stream); ok {
		return n
	}
	fps, _ := r.FrameRate()
	duration := parseFloat(stream.Duration)
	if math.IsNaN(duration) || duration <= 0 {
		duration = r.DurationSeconds()
	}
	if math.IsNaN(duration) || duration <= 0 || fps <= 0 {
		return 0
	}
	return int(math.Round(duration * fps))
}

// ExactFrameCount reports whether FrameCount comes from a counted value
// rather than the duration estimate.
func (r Result) ExactFrameCount() bool {
	stream, ok := r.VideoStream()
	if !ok {
		return false
	}
	_, exact := exactCount(stream)
	return exact
}

func exactCount(stream Stream) (int, bool) {
	for _, raw := range []string{stream.NBFrames, stream.NBReadPacket} {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

// DurationSeconds returns the container duration in seconds, or 0 when
// missing or malformed.
func (r Result) DurationSeconds() float64 {
	d := parseFloat(r.Format.Duration)
	if math.IsNaN(d) || d < 0 {
		return 0
	}
	return d
}

// ErrNoVideo is returned by RequireVideo for audio-only or unreadable inputs.
var ErrNoVideo = errors.New("no video stream")

// RequireVideo checks that the result describes a decodable video with a known
// frame count and geometry.
func (r Result) RequireVideo() (Stream, error) {
	stream, ok := r.VideoStream()
	if !ok {
		return Stream{}, services.Wrap(services.ErrValidation, "ffprobe", "inspect", "", ErrNoVideo)
	}
	if stream.Width <= 0 || stream.Height <= 0 {
		return Stream{}, services.Wrap(services.ErrValidation, "ffprobe", "inspect",
			fmt.Sprintf("invalid dimensions %dx%d", stream.Width, stream.Height), nil)
	}
	if r.FrameCount() <= 0 {
		return Stream{}, services.Wrap(services.ErrValidation, "ffprobe", "inspect", "unable to determine frame count", nil)
	}
	return stream, nil
}

func parseRational(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	num, den, found := strings.Cut(value, "/")
	if !found {
		f := parseFloat(num)
		if math.IsNaN(f) {
			return 0
		}
		return f
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if math.IsNaN(n) || math.IsNaN(d) || d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
