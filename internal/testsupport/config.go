package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"upscaler/internal/config"
)

// ConfigOption adjusts the configuration built by NewConfig.
type ConfigOption func(t testing.TB, base string, cfg *config.Config)

// NewConfig returns the default configuration rooted in a fresh temp
// directory: workspaces under base/workspace, logs and the job database
// under base/logs. Deletion backoff is shortened to keep reclaim tests fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkspaceDir = filepath.Join(base, "workspace")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Pipeline.DeleteBackoffMS = 1
	for _, opt := range opts {
		opt(t, base, &cfg)
	}
	return &cfg
}

// BaseDir is the temp directory NewConfig rooted cfg in.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkspaceDir)
}

// WithEngineCommand points the engine at command and names it after the
// command's base name.
func WithEngineCommand(command string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Engine.Command = command
		cfg.Engine.Name = filepath.Base(command)
	}
}

// WithMaxFramesAhead sets the look-ahead window.
func WithMaxFramesAhead(n int) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Pipeline.MaxFramesAhead = n
	}
}

// WithStubbedBinaries puts do-nothing executables named after names first on
// PATH for the rest of the test. Without names the configured ffmpeg,
// ffprobe and engine commands are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, base string, cfg *config.Config) {
		t.Helper()
		if len(names) == 0 {
			names = []string{cfg.FFmpeg.FFmpegBinary, cfg.FFmpeg.FFprobeBinary, cfg.Engine.Command}
		}
		binDir := filepath.Join(base, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
