package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"upscaler/internal/services"
)

func TestRunWrapsFailureWithStderr(t *testing.T) {
	stubFFmpeg(t, "fail")
	r := NewRunner("", nil)

	err := r.Run(context.Background(), "probe-like", "-i", "clip.mp4")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("expected stderr tail in error, got %v", err)
	}
}

func TestSplitBuildsSegmentInvocation(t *testing.T) {
	calls := stubFFmpeg(t, "success")
	r := NewRunner("ffmpeg", nil)
	dir := filepath.Join(t.TempDir(), "work")

	if err := r.Split(context.Background(), "movie.mkv", 90, 3, dir, []string{"-c:v", "libx264"}); err != nil {
		t.Fatalf("Split: %v", err)
	}
	args := (*calls)[0]
	if idx := slices.Index(args, "-segment_time"); idx < 0 || args[idx+1] != "30.000" {
		t.Fatalf("expected 30s segments, got %v", args)
	}
	if args[len(args)-1] != filepath.Join(dir, SegmentPattern) {
		t.Fatalf("unexpected output pattern %q", args[len(args)-1])
	}
	if !slices.Contains(args, "libx264") {
		t.Fatalf("output options not forwarded: %v", args)
	}
}

func TestSplitRejectsBadInput(t *testing.T) {
	r := NewRunner("ffmpeg", nil)
	if err := r.Split(context.Background(), "movie.mkv", 90, 0, t.TempDir(), nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := r.Split(context.Background(), "movie.mkv", 0, 3, t.TempDir(), nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSegmentsSortedByName(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"split_010.mkv", "split_002.mkv", "split_000.mkv", "noaudio.mkv"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := Segments(dir)
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	want := []string{
		filepath.Join(dir, "split_000.mkv"),
		filepath.Join(dir, "split_002.mkv"),
		filepath.Join(dir, "split_010.mkv"),
	}
	if !slices.Equal(got, want) {
		t.Fatalf("Segments = %v, want %v", got, want)
	}

	if _, err := Segments(t.TempDir()); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for empty dir, got %v", err)
	}
}

func TestSegmentsOrderPastThreeDigits(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"split_1000.mkv", "split_101.mkv", "split_999.mkv", "split_010.mkv"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := Segments(dir)
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	want := []string{
		filepath.Join(dir, "split_010.mkv"),
		filepath.Join(dir, "split_101.mkv"),
		filepath.Join(dir, "split_999.mkv"),
		filepath.Join(dir, "split_1000.mkv"),
	}
	if !slices.Equal(got, want) {
		t.Fatalf("Segments = %v, want %v", got, want)
	}
}

func TestConcatWritesOrderedList(t *testing.T) {
	calls := stubFFmpeg(t, "success")
	r := NewRunner("ffmpeg", nil)
	dir := t.TempDir()
	files := []string{
		filepath.Join(dir, "non_migrated0.mkv"),
		filepath.Join(dir, "non_migrated1.mkv"),
		filepath.Join(dir, "it's.mkv"),
	}
	if got := concatList(files); got != "file '"+files[0]+"'\nfile '"+files[1]+"'\nfile '"+filepath.Join(dir, `it'\''s.mkv`)+"'\n" {
		t.Fatalf("unexpected concat list:\n%s", got)
	}

	if err := r.Concat(context.Background(), files, filepath.Join(dir, "noaudio.mkv")); err != nil {
		t.Fatalf("Concat: %v", err)
	}
	args := (*calls)[0]
	if !slices.Contains(args, "-an") || !slices.Contains(args, "concat") {
		t.Fatalf("unexpected concat args %v", args)
	}
	if _, err := os.Stat(filepath.Join(dir, concatListName)); !os.IsNotExist(err) {
		t.Fatalf("concat list should be removed after use, stat err = %v", err)
	}
}

func TestRemuxMapsOriginalTracks(t *testing.T) {
	calls := stubFFmpeg(t, "success")
	r := NewRunner("ffmpeg", nil)
	if err := r.Remux(context.Background(), "noaudio.mkv", "movie.mkv", "final.mkv"); err != nil {
		t.Fatalf("Remux: %v", err)
	}
	args := strings.Join((*calls)[0], " ")
	for _, want := range []string{"-i noaudio.mkv -i movie.mkv", "-map 0:v", "-map 1:a?", "-map 1:s?", "final.mkv"} {
		if !strings.Contains(args, want) {
			t.Fatalf("remux args %q missing %q", args, want)
		}
	}
}

func TestTailKeepsLastLines(t *testing.T) {
	got := tail("a\n\nb\nc\nd\n", 2)
	if got != "c; d" {
		t.Fatalf("tail = %q", got)
	}
}
