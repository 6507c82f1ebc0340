package preflight

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/disk"
	"golang.org/x/sys/unix"

	"upscaler/internal/config"
	"upscaler/internal/deps"
)

// MinWorkspaceFreeBytes is the free space a workspace needs before a job
// starts. The look-ahead window keeps usage bounded, but a 4K frame set is
// tens of megabytes and segment files need room too.
const MinWorkspaceFreeBytes uint64 = 2 << 30

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least min bytes free.
func CheckFreeSpace(ctx context.Context, name, path string, min uint64) Result {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	detail := fmt.Sprintf("%s free of %s", humanize.IBytes(usage.Free), humanize.IBytes(usage.Total))
	if usage.Free < min {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need %s)", detail, humanize.IBytes(min))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSystemDeps evaluates the external executables for the given config.
// FFmpeg and FFprobe versions are probed; engines have no common version flag.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpeg.FFmpegBinary,
			Description: "Required for frame extraction, splitting and encoding",
			VersionArgs: []string{"-hide_banner", "-version"},
		},
		{
			Name:        "FFprobe",
			Command:     deps.ResolveFFprobe(cfg.FFmpeg.FFmpegBinary, cfg.FFmpeg.FFprobeBinary),
			Description: "Required for media inspection",
			VersionArgs: []string{"-hide_banner", "-version"},
		},
		{
			Name:        cfg.Engine.Name,
			Command:     cfg.Engine.Command,
			Description: "Upscaling engine",
		},
	}
	return deps.Check(ctx, requirements)
}
