package ffmpeg

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"upscaler/internal/logging"
	"upscaler/internal/services"
)

const (
	// SegmentPattern is the splitter's output naming. The padding only keeps
	// directory listings readable; Segments orders by the parsed index.
	SegmentPattern = "split_%03d.mkv"
	segmentPrefix  = "split_"
	segmentExt     = ".mkv"
	segmentGlob    = segmentPrefix + "*" + segmentExt
	concatListName = "concat_list.txt"
)

// Split re-encodes input into n contiguous segments inside dir. Keyframes are
// forced at every cut point so segment boundaries are exact.
func (r *Runner) Split(ctx context.Context, input string, durationSeconds float64, n int, dir string, opts []string) error {
	if n < 1 {
		return services.Wrap(services.ErrValidation, "ffmpeg", "split", fmt.Sprintf("invalid partition count %d", n), nil)
	}
	if durationSeconds <= 0 {
		return services.Wrap(services.ErrValidation, "ffmpeg", "split", "unknown source duration", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "ffmpeg", "split", "create segment directory", err)
	}
	segment := fmt.Sprintf("%.3f", durationSeconds/float64(n))
	args := []string{"-i", input, "-map", "0:v:0", "-an", "-sn"}
	args = append(args, opts...)
	args = append(args,
		"-force_key_frames", "expr:gte(t,n_forced*"+segment+")",
		"-f", "segment",
		"-segment_time", segment,
		"-reset_timestamps", "1",
		filepath.Join(dir, SegmentPattern),
	)
	return r.Run(ctx, "split", args...)
}

// Segments lists the splitter's output in partition order.
func Segments(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, segmentGlob))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ffmpeg", "segments", "", err)
	}
	if len(matches) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "ffmpeg", "segments", "splitter produced no segments in "+dir, nil)
	}
	slices.SortFunc(matches, compareSegments)
	return matches, nil
}

// compareSegments orders by numeric index so split_1000 follows split_999.
// Names without an index sort after indexed ones, by name.
func compareSegments(a, b string) int {
	ai, aok := segmentIndex(a)
	bi, bok := segmentIndex(b)
	switch {
	case aok && bok && ai != bi:
		return cmp.Compare(ai, bi)
	case aok != bok:
		if aok {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func segmentIndex(path string) (int, bool) {
	name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), segmentPrefix), segmentExt)
	n, err := strconv.Atoi(name)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Concat joins files in the given order into a single video-only stream.
func (r *Runner) Concat(ctx context.Context, files []string, output string) error {
	if len(files) == 0 {
		return services.Wrap(services.ErrValidation, "ffmpeg", "concat", "no inputs", nil)
	}
	listPath := filepath.Join(filepath.Dir(output), concatListName)
	if err := os.WriteFile(listPath, []byte(concatList(files)), 0o644); err != nil {
		return services.Wrap(services.ErrConfiguration, "ffmpeg", "concat", "write concat list", err)
	}
	defer os.Remove(listPath)

	r.logger.Debug("concatenating partitions", logging.Int("files", len(files)), logging.String("output", output))
	return r.Run(ctx, "concat", "-f", "concat", "-safe", "0", "-i", listPath, "-map", "0:v", "-an", "-c", "copy", output)
}

// concatList renders the concat demuxer input with single quotes escaped.
func concatList(files []string) string {
	var b strings.Builder
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			abs = file
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

// Remux copies the video of videoOnly and every audio and subtitle track of
// source into output. Missing audio or subtitles are not an error.
func (r *Runner) Remux(ctx context.Context, videoOnly, source, output string) error {
	return r.Run(ctx, "remux",
		"-i", videoOnly,
		"-i", source,
		"-map", "0:v",
		"-map", "1:a?",
		"-map", "1:s?",
		"-c", "copy",
		output,
	)
}
