// Package progress holds the per-pipeline consumption counter.
//
// A Counter has exactly one writer (the frame consumer) and any number of
// readers (reclaimer, monitor). Reads are a single atomic load. Waiters park
// on a broadcast channel that the writer swaps and closes on every advance, so
// nobody spins and readers never hold a lock the writer needs.
package progress

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrRegression is returned when Advance is called with a value lower than the current one.
	ErrRegression = errors.New("progress counter regression")
	// ErrOverflow is returned when Advance would move past the frame count.
	ErrOverflow = errors.New("progress counter overflow")
)

// Counter tracks the highest frame index fully consumed downstream.
type Counter struct {
	total   int
	current atomic.Int64
	notify  atomic.Pointer[chan struct{}]
}

// NewCounter returns a counter for a pipeline of total frames, starting at 0.
func NewCounter(total int) *Counter {
	if total < 0 {
		total = 0
	}
	c := &Counter{total: total}
	ch := make(chan struct{})
	c.notify.Store(&ch)
	return c
}

// Total returns the frame count the counter was created with.
func (c *Counter) Total() int {
	return c.total
}

// Current returns the last frame index confirmed consumed.
func (c *Counter) Current() int {
	return int(c.current.Load())
}

// Advance records that every frame up to and including to has been consumed.
// Only the consumer may call it. Re-reporting the current value is a no-op.
func (c *Counter) Advance(to int) error {
	cur := c.Current()
	switch {
	case to < cur:
		return fmt.Errorf("%w: advance to %d below current %d", ErrRegression, to, cur)
	case to > c.total:
		return fmt.Errorf("%w: advance to %d beyond frame count %d", ErrOverflow, to, c.total)
	case to == cur:
		return nil
	}
	c.current.Store(int64(to))

	// Store the value before swapping so a waiter that grabbed the old channel
	// is woken, and one that grabs the new channel already sees the new value.
	next := make(chan struct{})
	prev := c.notify.Swap(&next)
	close(*prev)
	return nil
}

// WaitFor blocks until Current() >= x or ctx is done.
func (c *Counter) WaitFor(ctx context.Context, x int) error {
	for {
		ch := *c.notify.Load()
		if c.Current() >= x {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Changed returns a channel that is closed the next time the counter advances.
func (c *Counter) Changed() <-chan struct{} {
	return *c.notify.Load()
}
