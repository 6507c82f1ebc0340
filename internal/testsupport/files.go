package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// Touch creates a placeholder media file at path, making parent directories
// as needed, and returns path. The content is never decoded: tests that reach
// ffprobe or ffmpeg stub those binaries.
func Touch(t testing.TB, path string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("placeholder media\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
