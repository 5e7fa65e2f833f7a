package guardrails

import (
	"sync"
	"time"
)

// SlidingWindowLimiter implements a per-client sliding window rate
// limiter. Each client key owns an ordered slice of request timestamps;
// on every admission check the timestamps older than the window are
// purged before counting. Rejected attempts are not recorded, so a
// client hammering the endpoint while limited does not push its own
// window forward.
//
// Thread safety: safe for concurrent use. A single mutex guards the
// whole map, which also serializes concurrent checks for the same key
// and prevents over-admission.
type SlidingWindowLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string][]time.Time
}

// LimiterOption represents an option for configuring the limiter
type LimiterOption func(*SlidingWindowLimiter)

// WithLimit sets the maximum number of requests per window
func WithLimit(limit int) LimiterOption {
	return func(l *SlidingWindowLimiter) {
		l.limit = limit
	}
}

// WithWindow sets the sliding window width
func WithWindow(window time.Duration) LimiterOption {
	return func(l *SlidingWindowLimiter) {
		l.window = window
	}
}

// NewSlidingWindowLimiter creates a limiter allowing 10 requests per
// 60 seconds by default
func NewSlidingWindowLimiter(options ...LimiterOption) *SlidingWindowLimiter {
	limiter := &SlidingWindowLimiter{
		limit:   10,
		window:  60 * time.Second,
		windows: make(map[string][]time.Time),
	}

	for _, option := range options {
		option(limiter)
	}

	return limiter
}

// Admit reports whether a request from the given client key at the given
// time is within the rate limit, recording the request when admitted.
// The first request for an unseen key is always admitted.
func (l *SlidingWindowLimiter) Admit(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	recent := l.windows[key][:0]
	for _, ts := range l.windows[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.limit {
		l.windows[key] = recent
		return false
	}

	l.windows[key] = append(recent, now)
	return true
}

// Sweep removes keys with no request newer than the cutoff. Without it
// the window map grows with every distinct client seen over the process
// lifetime. Intended to run periodically from a background goroutine.
func (l *SlidingWindowLimiter) Sweep(now time.Time, idleFor time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-idleFor)
	removed := 0
	for key, window := range l.windows {
		if len(window) == 0 || !window[len(window)-1].After(cutoff) {
			delete(l.windows, key)
			removed++
		}
	}

	return removed
}

// Keys returns the number of client keys currently tracked
func (l *SlidingWindowLimiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
