package pipeline

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"upscaler/internal/services"
	"upscaler/internal/textutil"
)

// EngineSettings are the per-job upscaler quality knobs.
type EngineSettings struct {
	Name       string
	Scale      int
	NoiseLevel int
	BlockSize  int
	Quality    int
}

// Job describes the work of one pipeline instance. Treat it as a value: pass
// it by value and derive new jobs with Clone or ForPartition.
type Job struct {
	Name           string
	InputPath      string
	OutputPath     string
	Workspace      string
	FrameCount     int
	FrameRate      string
	Width          int
	Height         int
	MaxFramesAhead int
	Engine         EngineSettings
	OutputOptions  []string
}

// Clone returns a deep copy.
func (j Job) Clone() Job {
	j.OutputOptions = slices.Clone(j.OutputOptions)
	return j
}

// ForPartition derives the sub-job for segment index. Frame count and
// geometry are left for the caller to fill from the segment itself.
func (j Job) ForPartition(index int, segment, root string) Job {
	sub := j.Clone()
	sub.Name = fmt.Sprintf("%s#%d", j.Name, index)
	sub.InputPath = segment
	sub.OutputPath = filepath.Join(root, "non_migrated"+strconv.Itoa(index)+".mkv")
	sub.Workspace = filepath.Join(root, "subworkspace"+strconv.Itoa(index))
	sub.FrameCount = 0
	return sub
}

// Validate checks the fields every instance depends on.
func (j Job) Validate() error {
	var problems []string
	if strings.TrimSpace(j.InputPath) == "" {
		problems = append(problems, "input path is empty")
	}
	if strings.TrimSpace(j.OutputPath) == "" {
		problems = append(problems, "output path is empty")
	}
	if strings.TrimSpace(j.Workspace) == "" {
		problems = append(problems, "workspace is empty")
	}
	if j.FrameCount < 0 {
		problems = append(problems, fmt.Sprintf("negative frame count %d", j.FrameCount))
	}
	if j.MaxFramesAhead < 1 {
		problems = append(problems, fmt.Sprintf("max frames ahead must be >= 1, got %d", j.MaxFramesAhead))
	}
	if len(problems) > 0 {
		return services.Wrap(services.ErrValidation, "pipeline", "validate job", strings.Join(problems, "; "), nil)
	}
	return nil
}

// DefaultOutputPath names the output next to the input, tagged with the
// engine and its settings: clip.mkv -> clip_[realesrgan][s2][n1][b20][q98].mkv.
func DefaultOutputPath(input string, settings EngineSettings) string {
	dir := filepath.Dir(input)
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(filepath.Base(input), ext)
	if ext == "" {
		ext = ".mkv"
	}
	var b strings.Builder
	b.WriteString(stem)
	b.WriteByte('_')
	if settings.Name != "" {
		fmt.Fprintf(&b, "[%s]", textutil.CommandToken(settings.Name))
	}
	fmt.Fprintf(&b, "[s%d][n%d][b%d][q%d]", settings.Scale, settings.NoiseLevel, settings.BlockSize, settings.Quality)
	b.WriteString(ext)
	return filepath.Join(dir, b.String())
}
