package reclaim_test

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"upscaler/internal/progress"
	"upscaler/internal/reclaim"
	"upscaler/internal/services"
)

type fakeExtractor struct {
	mu        sync.Mutex
	last      int
	failAt    int
	counter   *progress.Counter
	ahead     int
	violation string
	ready     chan int
	closed    atomic.Int32
}

func newFakeExtractor(total int) *fakeExtractor {
	return &fakeExtractor{ready: make(chan int, total+1)}
}

func (f *fakeExtractor) Next(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.last + 1
	if f.failAt == idx {
		return 0, errors.New("decoder: unexpected end of stream")
	}
	if f.counter != nil && f.violation == "" && idx-f.counter.Current() > f.ahead {
		f.violation = fmt.Sprintf("extracted frame %d with counter at %d", idx, f.counter.Current())
	}
	f.last = idx
	f.ready <- idx
	return idx, nil
}

func (f *fakeExtractor) Close() error {
	f.closed.Add(1)
	return nil
}

// consume advances the counter for every frame the extractor hands out, the
// way the engine consumer does.
func consume(t *testing.T, ctx context.Context, counter *progress.Counter, f *fakeExtractor, wg *sync.WaitGroup) {
	t.Helper()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for x := 1; x <= counter.Total(); x++ {
			select {
			case idx := <-f.ready:
				if err := counter.Advance(idx); err != nil {
					t.Errorf("advance %d: %v", idx, err)
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func TestReclaimIndexTrailsConfirmedFrame(t *testing.T) {
	if reclaim.ReclaimLag < 1 {
		t.Fatalf("ReclaimLag must be at least 1, got %d", reclaim.ReclaimLag)
	}
	for _, x := range []int{1, 2, 10, 500} {
		if got := reclaim.ReclaimIndex(x); got >= x {
			t.Fatalf("ReclaimIndex(%d) = %d, want strictly less", x, got)
		}
	}
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	layout := reclaim.NewLayout(t.TempDir())
	if _, err := reclaim.New(reclaim.Settings{FrameCount: 10, MaxFramesAhead: 0}, layout, newFakeExtractor(10)); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for zero look-ahead, got %v", err)
	}
	if _, err := reclaim.New(reclaim.Settings{FrameCount: 10, MaxFramesAhead: 2}, layout, nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for nil extractor, got %v", err)
	}
}

func TestPrimeExtractsMinOfLookAheadAndFrameCount(t *testing.T) {
	tests := []struct {
		name       string
		frames     int
		lookAhead  int
		wantFrames int
	}{
		{name: "short video", frames: 5, lookAhead: 10, wantFrames: 5},
		{name: "long video", frames: 100, lookAhead: 10, wantFrames: 10},
		{name: "empty video", frames: 0, lookAhead: 10, wantFrames: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeExtractor(tt.frames)
			r, err := reclaim.New(reclaim.Settings{FrameCount: tt.frames, MaxFramesAhead: tt.lookAhead}, reclaim.NewLayout(t.TempDir()), f)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if err := r.Prime(context.Background(), tt.lookAhead); err != nil {
				t.Fatalf("Prime: %v", err)
			}
			if got := r.Extracted(); got != tt.wantFrames {
				t.Fatalf("extracted %d frames, want %d", got, tt.wantFrames)
			}
		})
	}
}

func TestRunBoundsLookAheadAndReclaimsBehindConsumer(t *testing.T) {
	const (
		frames = 100
		ahead  = 10
	)
	layout := reclaim.NewLayout(t.TempDir())
	frameOf := make(map[string]int)
	for i := 1; i <= frames; i++ {
		for _, path := range layout.ArtifactSet(i) {
			frameOf[path] = i
		}
	}

	counter := progress.NewCounter(frames)
	f := newFakeExtractor(frames)
	f.counter = counter
	f.ahead = ahead

	var (
		mu        sync.Mutex
		early     []string
		reclaimed = make(map[int]bool)
	)
	remove := func(path string) error {
		frame := frameOf[path]
		mu.Lock()
		defer mu.Unlock()
		if counter.Current() < frame+1 {
			early = append(early, fmt.Sprintf("frame %d deleted with counter %d", frame, counter.Current()))
		}
		reclaimed[frame] = true
		return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrNotExist}
	}

	r, err := reclaim.New(reclaim.Settings{FrameCount: frames, MaxFramesAhead: ahead}, layout, f,
		reclaim.WithRemoveFunc(remove))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.Prime(ctx, ahead); err != nil {
		t.Fatalf("Prime: %v", err)
	}
	if got := r.Extracted(); got != ahead {
		t.Fatalf("primed %d frames, want %d", got, ahead)
	}

	var wg sync.WaitGroup
	consume(t, ctx, counter, f, &wg)
	if err := r.Run(ctx, counter); err != nil {
		t.Fatalf("Run: %v", err)
	}
	wg.Wait()

	if f.violation != "" {
		t.Fatalf("look-ahead bound violated: %s", f.violation)
	}
	if len(early) > 0 {
		t.Fatalf("frames reclaimed before the consumer moved past them: %v", early)
	}
	if got := r.Extracted(); got != frames {
		t.Fatalf("extracted %d frames, want %d", got, frames)
	}
	for frame := 1; frame <= frames-ahead-reclaim.ReclaimLag; frame++ {
		if !reclaimed[frame] {
			t.Fatalf("frame %d was never reclaimed", frame)
		}
	}
	if f.closed.Load() != 1 {
		t.Fatalf("extractor closed %d times, want 1", f.closed.Load())
	}
}

func TestRunReleasesExtractorOnCancel(t *testing.T) {
	counter := progress.NewCounter(20)
	f := newFakeExtractor(20)
	r, err := reclaim.New(reclaim.Settings{FrameCount: 20, MaxFramesAhead: 2}, reclaim.NewLayout(t.TempDir()), f)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := r.Prime(ctx, 2); err != nil {
		t.Fatalf("Prime: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, counter) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if f.closed.Load() != 1 {
		t.Fatalf("extractor closed %d times, want 1", f.closed.Load())
	}
}

func TestRunReleasesExtractorOnDecoderError(t *testing.T) {
	counter := progress.NewCounter(20)
	f := newFakeExtractor(20)
	f.failAt = 6
	r, err := reclaim.New(reclaim.Settings{FrameCount: 20, MaxFramesAhead: 3}, reclaim.NewLayout(t.TempDir()), f,
		reclaim.WithRemoveFunc(func(string) error { return nil }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Prime(ctx, 3); err != nil {
		t.Fatalf("Prime: %v", err)
	}

	var wg sync.WaitGroup
	consume(t, ctx, counter, f, &wg)
	err = r.Run(ctx, counter)
	cancel()
	wg.Wait()

	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if f.closed.Load() != 1 {
		t.Fatalf("extractor closed %d times, want 1", f.closed.Load())
	}
}

func TestRunWithNothingBeyondLookAheadStillReleases(t *testing.T) {
	f := newFakeExtractor(4)
	r, err := reclaim.New(reclaim.Settings{FrameCount: 4, MaxFramesAhead: 10}, reclaim.NewLayout(t.TempDir()), f)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Prime(context.Background(), 10); err != nil {
		t.Fatalf("Prime: %v", err)
	}
	if err := r.Run(context.Background(), progress.NewCounter(4)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if f.closed.Load() != 1 {
		t.Fatalf("extractor closed %d times, want 1", f.closed.Load())
	}
}

func TestDeletionRetriesThenContinues(t *testing.T) {
	layout := reclaim.NewLayout(t.TempDir())
	stuck := layout.InputFrame(1)
	missing := layout.FadeData(1)

	var (
		mu       sync.Mutex
		attempts = make(map[string]int)
		sleeps   []time.Duration
	)
	remove := func(path string) error {
		mu.Lock()
		defer mu.Unlock()
		attempts[path]++
		switch path {
		case stuck:
			return &fs.PathError{Op: "remove", Path: path, Err: errors.New("file in use")}
		case missing:
			return &fs.PathError{Op: "remove", Path: path, Err: os.ErrNotExist}
		}
		return nil
	}
	sleep := func(d time.Duration) {
		mu.Lock()
		sleeps = append(sleeps, d)
		mu.Unlock()
	}

	counter := progress.NewCounter(3)
	if err := counter.Advance(3); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	f := newFakeExtractor(3)
	r, err := reclaim.New(reclaim.Settings{FrameCount: 3, MaxFramesAhead: 1}, layout, f,
		reclaim.WithRemoveFunc(remove), reclaim.WithSleep(sleep))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Prime(context.Background(), 1); err != nil {
		t.Fatalf("Prime: %v", err)
	}
	if err := r.Run(context.Background(), counter); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if attempts[stuck] != reclaim.DefaultDeleteAttempts {
		t.Fatalf("stuck file attempted %d times, want %d", attempts[stuck], reclaim.DefaultDeleteAttempts)
	}
	if len(sleeps) != reclaim.DefaultDeleteAttempts-1 {
		t.Fatalf("slept %d times, want %d", len(sleeps), reclaim.DefaultDeleteAttempts-1)
	}
	for _, d := range sleeps {
		if d != reclaim.DefaultDeleteBackoff {
			t.Fatalf("backoff %v, want %v", d, reclaim.DefaultDeleteBackoff)
		}
	}
	for _, path := range layout.ArtifactSet(1) {
		if path == stuck {
			continue
		}
		if attempts[path] != 1 {
			t.Fatalf("%s attempted %d times, want 1", path, attempts[path])
		}
	}
	if attempts[layout.InputFrame(2)] != 0 {
		t.Fatal("frame 2 must not be reclaimed while it is the last confirmed look-ahead frame")
	}
	if r.Abandoned() != 1 {
		t.Fatalf("abandoned %d files, want 1", r.Abandoned())
	}
}

func TestInflightDeletesAreBounded(t *testing.T) {
	const frames = 30
	counter := progress.NewCounter(frames)
	if err := counter.Advance(frames); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	var active, peak atomic.Int32
	remove := func(string) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(200 * time.Microsecond)
		active.Add(-1)
		return nil
	}

	f := newFakeExtractor(frames)
	r, err := reclaim.New(reclaim.Settings{FrameCount: frames, MaxFramesAhead: 1}, reclaim.NewLayout(t.TempDir()), f,
		reclaim.WithRemoveFunc(remove), reclaim.WithMaxInflightDeletes(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Prime(context.Background(), 1); err != nil {
		t.Fatalf("Prime: %v", err)
	}
	if err := r.Run(context.Background(), counter); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := peak.Load(); got > 2 {
		t.Fatalf("peak concurrent deletions %d, want <= 2", got)
	}
	if active.Load() != 0 {
		t.Fatal("Run returned before deletions drained")
	}
}
