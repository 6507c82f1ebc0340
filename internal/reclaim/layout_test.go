package reclaim_test

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"upscaler/internal/reclaim"
)

func TestLexiconSortsNumerically(t *testing.T) {
	if got := reclaim.Lexicon(42); got != "000042" {
		t.Fatalf("Lexicon(42) = %q", got)
	}
	names := []string{reclaim.Lexicon(100), reclaim.Lexicon(9), reclaim.Lexicon(10)}
	sort.Strings(names)
	want := []string{"000009", "000010", "000100"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("sorted = %v, want %v", names, want)
		}
	}
}

func TestArtifactSetCoversEveryDirectory(t *testing.T) {
	root := t.TempDir()
	layout := reclaim.NewLayout(root)
	want := []string{
		filepath.Join(root, "pframe_data", "pframe_7.txt"),
		filepath.Join(root, "residual_data", "residual_7.txt"),
		filepath.Join(root, "noised_inputs", "frame7.png"),
		filepath.Join(root, "fade_data", "fade_7.txt"),
		filepath.Join(root, "inputs", "frame7.png"),
		filepath.Join(root, "compressed_static", "frame7.jpg"),
		filepath.Join(root, "residual_upscaled", "output_000007.png"),
	}
	got := layout.ArtifactSet(7)
	if len(got) != len(want) {
		t.Fatalf("artifact set has %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("artifact %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEnsureDirsCreatesLayout(t *testing.T) {
	layout := reclaim.NewLayout(filepath.Join(t.TempDir(), "subworkspace0"))
	if err := layout.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, dir := range layout.Dirs() {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
