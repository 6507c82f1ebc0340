package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"upscaler/internal/services"
)

// ErrEndOfStream is returned by Next once the decoder has no frames left.
var ErrEndOfStream = errors.New("end of video stream")

// FramePaths names the files a decoded frame is written to.
type FramePaths interface {
	InputFrame(index int) string
	CompressedFrame(index int) string
}

// ExtractorConfig describes the source video for a FrameExtractor.
type ExtractorConfig struct {
	Binary      string
	Input       string
	Width       int
	Height      int
	JPEGQuality int
	Paths       FramePaths
}

// FrameExtractor decodes a video through a single long-running ffmpeg
// process that streams raw RGB frames on stdout.
type FrameExtractor struct {
	cfg    ExtractorConfig
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	stderr syncBuffer
	buf    []byte
	img    *image.RGBA
	index  int

	closeOnce sync.Once
}

// NewFrameExtractor starts the decoder. The process is bound to ctx and is
// released by Close.
func NewFrameExtractor(ctx context.Context, cfg ExtractorConfig) (*FrameExtractor, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, services.Wrap(services.ErrValidation, "ffmpeg", "extract", fmt.Sprintf("invalid frame size %dx%d", cfg.Width, cfg.Height), nil)
	}
	if cfg.Paths == nil {
		return nil, services.Wrap(services.ErrValidation, "ffmpeg", "extract", "frame paths required", nil)
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = jpeg.DefaultQuality
	}
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}

	args := append(baseArgs(),
		"-i", cfg.Input,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	)
	cmd := commandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	e := &FrameExtractor{
		cfg:    cfg,
		stdout: stdout,
		reader: bufio.NewReaderSize(stdout, cfg.Width*cfg.Height*3),
		buf:    make([]byte, cfg.Width*cfg.Height*3),
		img:    image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height)),
	}
	cmd.Stderr = &e.stderr
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ffmpeg", "extract", "start decoder", err)
	}
	e.cmd = cmd
	return e, nil
}

// Next decodes the next frame, writes it as PNG plus a compressed JPEG copy,
// and returns its 1-based index.
func (e *FrameExtractor) Next(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if _, err := io.ReadFull(e.reader, e.buf); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		switch {
		case errors.Is(err, io.EOF):
			return 0, fmt.Errorf("frame %d: %w", e.index+1, ErrEndOfStream)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return 0, fmt.Errorf("frame %d truncated: %w: %s", e.index+1, err, tail(e.stderr.String(), stderrTailLines))
		default:
			return 0, fmt.Errorf("read frame %d: %w", e.index+1, err)
		}
	}
	rgbToRGBA(e.img.Pix, e.buf)

	index := e.index + 1
	if err := writeAtomic(e.cfg.Paths.CompressedFrame(index), func(w io.Writer) error {
		return jpeg.Encode(w, e.img, &jpeg.Options{Quality: e.cfg.JPEGQuality})
	}); err != nil {
		return 0, err
	}
	if err := writeAtomic(e.cfg.Paths.InputFrame(index), func(w io.Writer) error {
		return png.Encode(w, e.img)
	}); err != nil {
		return 0, err
	}
	e.index = index
	return index, nil
}

// Close terminates the decoder and reaps it. Safe to call repeatedly.
func (e *FrameExtractor) Close() error {
	e.closeOnce.Do(func() {
		_ = e.stdout.Close()
		_ = e.cmd.Process.Kill()
		// Killed on purpose, so the exit status carries no information.
		_ = e.cmd.Wait()
	})
	return nil
}

func rgbToRGBA(dst, src []byte) {
	for i, j := 0, 0; i+2 < len(src); i, j = i+3, j+4 {
		dst[j] = src[i]
		dst[j+1] = src[i+1]
		dst[j+2] = src[i+2]
		dst[j+3] = 0xff
	}
}

// writeAtomic writes through a temp file in the destination directory and
// renames it into place, so watchers never observe a partial frame.
func writeAtomic(path string, encode func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp frame: %w", err)
	}
	tmpName := tmp.Name()
	w := bufio.NewWriter(tmp)
	if err := encode(w); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("flush %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("publish %s: %w", filepath.Base(path), err)
	}
	return nil
}
