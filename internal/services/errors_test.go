package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"upscaler/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "merge", "concat", "ffmpeg exited", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"merge", "concat", "ffmpeg exited"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrInternal) {
		t.Fatalf("expected internal marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err)
	}
}

func TestStageOf(t *testing.T) {
	inner := services.Wrap(services.ErrExternalTool, "engine", "upscale", "exit 1", nil)
	outer := fmt.Errorf("partition 1: %w", services.Wrap(services.ErrExternalTool, "partition", "run", "", inner))
	cases := map[string]struct {
		err  error
		want string
	}{
		"nested reports outermost": {outer, "partition/run"},
		"stage only":               {services.Wrap(services.ErrValidation, "plan", "", "bad", nil), "plan"},
		"plain error":              {errors.New("boom"), ""},
	}
	for name, tc := range cases {
		if got := services.StageOf(tc.err); got != tc.want {
			t.Fatalf("%s: StageOf = %q, want %q", name, got, tc.want)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want services.FailureKind
	}{
		{nil, services.FailureNone},
		{services.Wrap(services.ErrValidation, "plan", "probe", "not a video", nil), services.FailureInvalidInput},
		{services.Wrap(services.ErrExternalTool, "split", "ffmpeg", "exit 1", nil), services.FailureExternalTool},
		{fmt.Errorf("partition 2: %w", context.Canceled), services.FailureCancelled},
		{errors.New("boom"), services.FailureInternal},
	}
	for _, tc := range cases {
		if got := services.Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
