package pipeline_test

import (
	"errors"
	"path/filepath"
	"testing"

	"upscaler/internal/pipeline"
	"upscaler/internal/services"
)

func sampleJob() pipeline.Job {
	return pipeline.Job{
		Name:           "clip.mkv",
		InputPath:      "/media/clip.mkv",
		OutputPath:     "/media/clip_up.mkv",
		Workspace:      "/work/clip",
		FrameCount:     300,
		FrameRate:      "24/1",
		Width:          640,
		Height:         360,
		MaxFramesAhead: 10,
		Engine:         pipeline.EngineSettings{Name: "realesrgan", Scale: 2, NoiseLevel: 1, BlockSize: 20, Quality: 98},
		OutputOptions:  []string{"-c:v", "libx264"},
	}
}

func TestCloneDoesNotAliasOptions(t *testing.T) {
	job := sampleJob()
	clone := job.Clone()
	clone.OutputOptions[1] = "libx265"
	if job.OutputOptions[1] != "libx264" {
		t.Fatal("clone shares OutputOptions with the original")
	}
}

func TestForPartitionIsolatesWorkspaceAndOutput(t *testing.T) {
	job := sampleJob()
	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		sub := job.ForPartition(i, filepath.Join(job.Workspace, "split_00"+string(rune('0'+i))+".mkv"), job.Workspace)
		if sub.OutputPath != filepath.Join(job.Workspace, "non_migrated"+string(rune('0'+i))+".mkv") {
			t.Fatalf("partition %d output = %s", i, sub.OutputPath)
		}
		if sub.Workspace != filepath.Join(job.Workspace, "subworkspace"+string(rune('0'+i))) {
			t.Fatalf("partition %d workspace = %s", i, sub.Workspace)
		}
		if seen[sub.Workspace] || seen[sub.OutputPath] {
			t.Fatalf("partition %d reuses a path", i)
		}
		seen[sub.Workspace], seen[sub.OutputPath] = true, true

		sub.OutputOptions[0] = "-changed"
		if job.OutputOptions[0] != "-c:v" {
			t.Fatal("partition aliases the parent's options")
		}
	}
}

func TestValidate(t *testing.T) {
	if err := sampleJob().Validate(); err != nil {
		t.Fatalf("valid job rejected: %v", err)
	}
	tests := map[string]func(*pipeline.Job){
		"no input":       func(j *pipeline.Job) { j.InputPath = "" },
		"no output":      func(j *pipeline.Job) { j.OutputPath = " " },
		"no workspace":   func(j *pipeline.Job) { j.Workspace = "" },
		"negative count": func(j *pipeline.Job) { j.FrameCount = -1 },
		"zero ahead":     func(j *pipeline.Job) { j.MaxFramesAhead = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			job := sampleJob()
			mutate(&job)
			if err := job.Validate(); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestDefaultOutputPath(t *testing.T) {
	got := pipeline.DefaultOutputPath("/media/clip.mkv", pipeline.EngineSettings{Name: "waifu2x", Scale: 2, NoiseLevel: 3, BlockSize: 30, Quality: 95})
	want := "/media/clip_[waifu2x][s2][n3][b30][q95].mkv"
	if got != want {
		t.Fatalf("DefaultOutputPath = %q, want %q", got, want)
	}

	got = pipeline.DefaultOutputPath("/media/clip", pipeline.EngineSettings{Name: "/opt/engines/RealESRGAN", Scale: 4, BlockSize: 1, Quality: 90})
	want = "/media/clip_[realesrgan][s4][n0][b1][q90].mkv"
	if got != want {
		t.Fatalf("DefaultOutputPath = %q, want %q", got, want)
	}
}
