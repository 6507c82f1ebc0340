package monitor

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestNewRendererFallsBackToLogsOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	if _, ok := NewRenderer(&buf, nil).(*logRenderer); !ok {
		t.Fatal("expected log renderer for a non-terminal writer")
	}
}

func TestLogRendererSamplesByBucket(t *testing.T) {
	var buf bytes.Buffer
	r := newLogRenderer(slog.New(slog.NewJSONHandler(&buf, nil)))
	for frame := 1; frame <= 2000; frame++ {
		r.Render(Status{Name: "clip", Frame: frame, Total: 2000, Percent: float64(frame) / 20, Average: 1500 * time.Millisecond})
	}
	r.Finish()

	lines := strings.Count(buf.String(), "\n")
	// one entry per 5% bucket, from the 0% bucket through 100%
	if lines != 21 {
		t.Fatalf("logged %d lines, want 21:\n%s", lines, buf.String())
	}
	if !strings.Contains(buf.String(), `"frames":"2,000/2,000"`) {
		t.Fatalf("expected grouped frame count in output:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), `"avg_per_frame":"1.50s"`) {
		t.Fatalf("expected average in output:\n%s", buf.String())
	}
}
