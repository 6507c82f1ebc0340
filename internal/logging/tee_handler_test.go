package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestTeeCollapsesTrivialCases(t *testing.T) {
	if _, ok := Tee(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every destination is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := Tee(nil, inner); h != inner {
		t.Fatal("expected the single destination to be returned unwrapped")
	}
}

func TestTeeRespectsDestinationLevels(t *testing.T) {
	var console, file bytes.Buffer
	h := Tee(
		slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	slog.New(h).Debug("frame reclaimed", "frame", 7)

	if console.Len() != 0 {
		t.Fatalf("console destination should drop debug, got %q", console.String())
	}
	if !strings.Contains(file.String(), `"frame":7`) {
		t.Fatalf("file destination missing debug record: %q", file.String())
	}
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("tee should be enabled when any destination accepts the level")
	}
}

func TestTeeCarriesAttrsAndGroups(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(Tee(slog.NewJSONHandler(&a, nil), slog.NewJSONHandler(&b, nil))).
		With(String(FieldComponent, "reclaimer")).
		WithGroup("frame")
	logger.Info("released", "index", 3)

	for name, buf := range map[string]*bytes.Buffer{"a": &a, "b": &b} {
		out := buf.String()
		if !strings.Contains(out, `"component":"reclaimer"`) || !strings.Contains(out, `"frame":{"index":3}`) {
			t.Fatalf("%s destination missing attrs: %q", name, out)
		}
	}
}

type failingHandler struct{ NoopHandler }

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestTeeKeepsWritingAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	h := Tee(failingHandler{}, slog.NewJSONHandler(&buf, nil))
	record := slog.NewRecord(time.Now(), slog.LevelInfo, "still here", 0)
	err := h.Handle(context.Background(), record)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !strings.Contains(buf.String(), "still here") {
		t.Fatalf("second destination skipped: %q", buf.String())
	}
}
