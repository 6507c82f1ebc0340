package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"upscaler/internal/services"
)

// FrameSink encodes a sequence of image files into a video by piping them to
// ffmpeg's image2pipe demuxer.
type FrameSink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr syncBuffer
	ctx    context.Context

	closeOnce sync.Once
	closeErr  error
}

// NewFrameSink starts an encoder writing to output at frameRate (for example
// "24000/1001") with the user's output options.
func NewFrameSink(ctx context.Context, binary, output, frameRate string, opts []string) (*FrameSink, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if strings.TrimSpace(frameRate) == "" {
		return nil, services.Wrap(services.ErrValidation, "ffmpeg", "encode", "frame rate required", nil)
	}
	args := append(baseArgs(), "-f", "image2pipe", "-framerate", frameRate, "-i", "-")
	args = append(args, opts...)
	args = append(args, "-an", output)

	cmd := commandContext(ctx, binary, args...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	s := &FrameSink{stdin: stdin, ctx: ctx}
	cmd.Stderr = &s.stderr
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ffmpeg", "encode", "start encoder", err)
	}
	s.cmd = cmd
	return s, nil
}

// WriteFile streams one encoded image into the encoder.
func (s *FrameSink) WriteFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(s.stdin, f); err != nil {
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "encode", tail(s.stderr.String(), stderrTailLines), err)
	}
	return nil
}

// Close ends the input stream and waits for the encoder to finalize output.
func (s *FrameSink) Close() error {
	s.closeOnce.Do(func() {
		_ = s.stdin.Close()
		if err := s.cmd.Wait(); err != nil {
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				s.closeErr = ctxErr
				return
			}
			s.closeErr = services.Wrap(services.ErrExternalTool, "ffmpeg", "encode", tail(s.stderr.String(), stderrTailLines), err)
		}
	})
	return s.closeErr
}
