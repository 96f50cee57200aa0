// Package ratelimit provides a sliding-window rate limiter keyed by
// arbitrary strings. The sync orchestrator keys it by channel type, or by
// connection id when a channel enforces per-connection limits.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a key's window budget is exhausted.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limits are the window parameters for one key.
type Limits struct {
	Window time.Duration
	Budget int
}

type window struct {
	limits Limits
	// stamps holds the admission times still inside the window, oldest first.
	stamps []time.Time
}

// Limiter admits at most Budget acquisitions per Window per key. Acquire is
// non-blocking; callers requeue on ErrRateLimited rather than waiting.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewLimiter creates an empty limiter. Keys are configured via Configure
// before use; acquiring an unconfigured key is an error.
func NewLimiter() *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Configure sets the limits for a key, resetting its window.
func (l *Limiter) Configure(key string, limits Limits) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows[key] = &window{limits: limits}
}

// ConfigureIfAbsent sets the limits for a key only when none are set yet,
// keeping admissions already recorded. Workers configuring a key lazily
// race on its first task; the loser must not reset the winner's window.
func (l *Limiter) ConfigureIfAbsent(key string, limits Limits) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.windows[key]; ok {
		return
	}
	l.windows[key] = &window{limits: limits}
}

// Acquire consumes one slot for the key, or returns ErrRateLimited when the
// budget for the current window is spent.
func (l *Limiter) Acquire(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		return errors.New("rate limiter key not configured: " + key)
	}

	now := l.now()
	cutoff := now.Add(-w.limits.Window)

	// Drop admissions that slid out of the window.
	kept := w.stamps[:0]
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.stamps = kept

	if len(w.stamps) >= w.limits.Budget {
		return ErrRateLimited
	}
	w.stamps = append(w.stamps, now)
	return nil
}
