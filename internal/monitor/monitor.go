// Package monitor reports per-instance upscaling throughput. It only reads the
// progress counter and never influences the pipeline.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"upscaler/internal/logging"
	"upscaler/internal/progress"
)

// Status is one progress snapshot published after a frame boundary.
type Status struct {
	Name      string
	Frame     int
	Total     int
	Percent   float64
	Average   time.Duration
	Remaining time.Duration
}

// Renderer presents status snapshots.
type Renderer interface {
	Render(Status)
	Finish()
}

// Monitor observes one counter and publishes a Status per consumed frame.
type Monitor struct {
	name     string
	renderer Renderer
	now      func() time.Time
	logger   *slog.Logger
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithRenderer replaces the default log renderer.
func WithRenderer(r Renderer) Option {
	return func(m *Monitor) {
		if r != nil {
			m.renderer = r
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger used by the default renderer.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logging.NewComponentLogger(logger, "monitor")
		}
	}
}

// New creates a monitor for the named job.
func New(name string, opts ...Option) *Monitor {
	m := &Monitor{
		name:   name,
		now:    time.Now,
		logger: logging.NewComponentLogger(nil, "monitor"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.renderer == nil {
		m.renderer = newLogRenderer(m.logger)
	}
	return m
}

// Run blocks until every frame has been consumed or ctx is cancelled. A
// cancelled context means the owning instance stopped; that is not an error.
func (m *Monitor) Run(ctx context.Context, counter *progress.Counter) error {
	defer m.renderer.Finish()

	var window Window
	total := counter.Total()
	prev := m.now()
	for x := 1; x <= total; x++ {
		if err := counter.WaitFor(ctx, x); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		now := m.now()
		window.Add(now.Sub(prev))
		prev = now

		avg := window.Average()
		m.renderer.Render(Status{
			Name:      m.name,
			Frame:     x,
			Total:     total,
			Percent:   float64(x) / float64(total) * 100,
			Average:   avg,
			Remaining: avg * time.Duration(total-x),
		})
	}
	return nil
}
