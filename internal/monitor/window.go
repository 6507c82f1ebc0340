package monitor

import "time"

// WindowSize is the number of frame intervals the rolling average covers.
const WindowSize = 10

// Window is a fixed-capacity ring of the most recent frame intervals.
type Window struct {
	samples [WindowSize]time.Duration
	start   int
	n       int
}

// Add records an interval, evicting the oldest once the ring is full.
func (w *Window) Add(d time.Duration) {
	if w.n < WindowSize {
		w.samples[(w.start+w.n)%WindowSize] = d
		w.n++
		return
	}
	w.samples[w.start] = d
	w.start = (w.start + 1) % WindowSize
}

// Len returns how many samples are held.
func (w *Window) Len() int {
	return w.n
}

// Samples returns the held intervals, oldest first.
func (w *Window) Samples() []time.Duration {
	out := make([]time.Duration, 0, w.n)
	for i := 0; i < w.n; i++ {
		out = append(out, w.samples[(w.start+i)%WindowSize])
	}
	return out
}

// Average returns the mean of the held intervals, or 0 when empty.
func (w *Window) Average() time.Duration {
	if w.n == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < w.n; i++ {
		sum += w.samples[(w.start+i)%WindowSize]
	}
	return sum / time.Duration(w.n)
}
