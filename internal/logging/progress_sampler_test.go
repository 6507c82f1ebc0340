package logging

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestSampler(step float64) (*ProgressSampler, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewProgressSampler(step)
	s.now = clock.now
	return s, clock
}

func TestNewProgressSamplerDefaultsStep(t *testing.T) {
	for _, step := range []float64{0, -3} {
		if got := NewProgressSampler(step).step; got != 5 {
			t.Fatalf("step for %v = %v, want 5", step, got)
		}
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "clip.mkv") {
		t.Fatal("nil sampler should always log")
	}
	s.Forget("clip.mkv")
}

func TestProgressSamplerBuckets(t *testing.T) {
	s, _ := newTestSampler(10)
	steps := []struct {
		percent float64
		want    bool
	}{
		{1, true},
		{5, false},
		{10, true},
		{19.9, false},
		{35, true},
		{100, true},
		{100, false},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.percent, "clip.mkv"); got != step.want {
			t.Fatalf("step %d (%.1f%%): got %v want %v", i, step.percent, got, step.want)
		}
	}
}

func TestProgressSamplerTracksLabelsIndependently(t *testing.T) {
	s, _ := newTestSampler(5)
	if !s.ShouldLog(50, "part0") || !s.ShouldLog(10, "part1") {
		t.Fatal("first event per label should log")
	}
	if s.ShouldLog(51, "part0") || s.ShouldLog(11, "part1") {
		t.Fatal("same bucket should be suppressed per label")
	}
	s.Forget("part1")
	if !s.ShouldLog(11, "part1") {
		t.Fatal("forgotten label should log again")
	}
}

func TestProgressSamplerHeartbeat(t *testing.T) {
	s, clock := newTestSampler(5)
	s.ShouldLog(-1, "clip.mkv")
	clock.t = clock.t.Add(DefaultProgressHeartbeat - time.Second)
	if s.ShouldLog(-1, "clip.mkv") {
		t.Fatal("heartbeat fired early")
	}
	clock.t = clock.t.Add(time.Second)
	if !s.ShouldLog(-1, "clip.mkv") {
		t.Fatal("heartbeat should emit")
	}
}
