package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFprobe picks the ffprobe executable to pair with ffmpegBinary.
//
// An explicitly configured path wins. When ffprobe is left at its bare name
// and ffmpeg resolves to a real file, an ffprobe sitting in the same directory
// is preferred so both tools come from one build. Otherwise the bare name is
// returned for PATH lookup.
func ResolveFFprobe(ffmpegBinary, ffprobeBinary string) string {
	ffprobe := strings.TrimSpace(ffprobeBinary)
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	if strings.ContainsRune(ffprobe, os.PathSeparator) {
		return ffprobe
	}

	ffmpeg := strings.TrimSpace(ffmpegBinary)
	if ffmpeg == "" {
		return ffprobe
	}
	resolved, err := exec.LookPath(ffmpeg)
	if err != nil {
		return ffprobe
	}
	candidate := filepath.Join(filepath.Dir(resolved), executableName(ffprobe))
	if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
		return candidate
	}
	return ffprobe
}

func executableName(base string) string {
	if runtime.GOOS == "windows" && filepath.Ext(base) == "" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
