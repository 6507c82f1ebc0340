package logging

import (
	"strings"
	"sync"
	"time"
)

// DefaultProgressHeartbeat is how long a stream may stay inside one bucket
// before ShouldLog lets a record through anyway.
const DefaultProgressHeartbeat = 30 * time.Second

// ProgressSampler thins progress records. Each label is tracked on its own,
// so interleaved partitions sharing one logger do not suppress each other.
// A label emits when it first appears, when its percentage enters a new
// bucket, or when the heartbeat has elapsed since its last emission.
type ProgressSampler struct {
	step      float64
	heartbeat time.Duration
	now       func() time.Time

	mu      sync.Mutex
	streams map[string]*sampledStream
}

type sampledStream struct {
	bucket int
	at     time.Time
}

// NewProgressSampler builds a sampler with the given bucket width in percent
// (5 when not positive) and DefaultProgressHeartbeat.
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = 5
	}
	return &ProgressSampler{
		step:      step,
		heartbeat: DefaultProgressHeartbeat,
		now:       time.Now,
		streams:   make(map[string]*sampledStream),
	}
}

// ShouldLog reports whether a progress event for label should be logged.
// A negative percent means unknown and only the heartbeat applies.
func (s *ProgressSampler) ShouldLog(percent float64, label string) bool {
	if s == nil {
		return true
	}
	label = strings.TrimSpace(label)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.streams[label]
	if !ok {
		s.streams[label] = &sampledStream{bucket: s.bucketOf(percent), at: now}
		return true
	}
	if b := s.bucketOf(percent); b > st.bucket {
		st.bucket, st.at = b, now
		return true
	}
	if s.heartbeat > 0 && now.Sub(st.at) >= s.heartbeat {
		st.at = now
		return true
	}
	return false
}

// Forget drops the state kept for label.
func (s *ProgressSampler) Forget(label string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.streams, strings.TrimSpace(label))
	s.mu.Unlock()
}

func (s *ProgressSampler) bucketOf(percent float64) int {
	switch {
	case percent < 0:
		return -1
	case percent >= 100:
		return int(100 / s.step)
	}
	return int(percent / s.step)
}
