package reclaim

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// LexiconWidth is the fixed digit count used in upscaled frame names.
const LexiconWidth = 6

// Workspace subdirectories for per-frame artifacts.
const (
	PFrameDir     = "pframe_data"
	ResidualDir   = "residual_data"
	FadeDir       = "fade_data"
	InputDir      = "inputs"
	NoisedDir     = "noised_inputs"
	UpscaledDir   = "residual_upscaled"
	CompressedDir = "compressed_static"
)

// Lexicon encodes a frame index as a fixed-width, zero-padded string so that
// lexicographic filename order matches frame order.
func Lexicon(index int) string {
	return fmt.Sprintf("%0*d", LexiconWidth, index)
}

// Layout resolves artifact paths inside a single pipeline workspace.
type Layout struct {
	Root string
}

// NewLayout returns the layout rooted at workspace.
func NewLayout(workspace string) Layout {
	return Layout{Root: workspace}
}

// Dirs lists every artifact directory in the workspace.
func (l Layout) Dirs() []string {
	names := []string{PFrameDir, ResidualDir, FadeDir, InputDir, NoisedDir, UpscaledDir, CompressedDir}
	dirs := make([]string, 0, len(names))
	for _, name := range names {
		dirs = append(dirs, filepath.Join(l.Root, name))
	}
	return dirs
}

// EnsureDirs creates the workspace and all artifact directories.
func (l Layout) EnsureDirs() error {
	for _, dir := range l.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create workspace directory %q: %w", dir, err)
		}
	}
	return nil
}

// PredictionData holds the motion vectors for a frame.
func (l Layout) PredictionData(index int) string {
	return filepath.Join(l.Root, PFrameDir, "pframe_"+strconv.Itoa(index)+".txt")
}

// ResidualData lists the residual blocks the engine upscales.
func (l Layout) ResidualData(index int) string {
	return filepath.Join(l.Root, ResidualDir, "residual_"+strconv.Itoa(index)+".txt")
}

// FadeData records fade detection for a frame.
func (l Layout) FadeData(index int) string {
	return filepath.Join(l.Root, FadeDir, "fade_"+strconv.Itoa(index)+".txt")
}

// InputFrame is the raw frame written by the extractor.
func (l Layout) InputFrame(index int) string {
	return filepath.Join(l.Root, InputDir, "frame"+strconv.Itoa(index)+".png")
}

// NoisedFrame is the denoised copy of the input frame.
func (l Layout) NoisedFrame(index int) string {
	return filepath.Join(l.Root, NoisedDir, "frame"+strconv.Itoa(index)+".png")
}

// CompressedFrame is the quality-reduced copy written next to each input frame.
func (l Layout) CompressedFrame(index int) string {
	return filepath.Join(l.Root, CompressedDir, "frame"+strconv.Itoa(index)+".jpg")
}

// UpscaledFrame is the engine output for a frame.
func (l Layout) UpscaledFrame(index int) string {
	return filepath.Join(l.Root, UpscaledDir, "output_"+Lexicon(index)+".png")
}

// ArtifactSet returns every file that may exist on disk for one frame.
func (l Layout) ArtifactSet(index int) []string {
	return []string{
		l.PredictionData(index),
		l.ResidualData(index),
		l.NoisedFrame(index),
		l.FadeData(index),
		l.InputFrame(index),
		l.CompressedFrame(index),
		l.UpscaledFrame(index),
	}
}
