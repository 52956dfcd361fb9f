// Package ratelimit guards the submission endpoint with a per-caller
// sliding window. In-memory only; each instance enforces its own window.
package ratelimit

import (
	"sync"
	"time"
)

// Result reports the outcome of one admission check.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// window tracks request timestamps inside the sliding window. Timestamps
// older than the window length are pruned on every touch, so a burst at a
// window boundary cannot double the effective limit.
type window struct {
	timestamps []time.Time
}

// SlidingWindow admits up to limit requests per key per window length.
type SlidingWindow struct {
	mu      sync.Mutex
	limit   int
	length  time.Duration
	windows map[string]*window

	now func() time.Time
}

// NewSlidingWindow builds a limiter allowing limit requests per length.
func NewSlidingWindow(limit int, length time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:   limit,
		length:  length,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow checks and records one request for key.
func (l *SlidingWindow) Allow(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.windows[key]
	if w == nil {
		w = &window{}
		l.windows[key] = w
	}
	w.prune(now.Add(-l.length))

	if len(w.timestamps) >= l.limit {
		return Result{
			Allowed: false,
			Limit:   l.limit,
			ResetAt: w.timestamps[0].Add(l.length),
		}
	}

	w.timestamps = append(w.timestamps, now)
	return Result{
		Allowed:   true,
		Remaining: l.limit - len(w.timestamps),
		Limit:     l.limit,
		ResetAt:   w.timestamps[0].Add(l.length),
	}
}

// Reset clears the window for key.
func (l *SlidingWindow) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

func (w *window) prune(cutoff time.Time) {
	i := 0
	for ; i < len(w.timestamps); i++ {
		if w.timestamps[i].After(cutoff) {
			break
		}
	}
	w.timestamps = w.timestamps[i:]
}
