// Package ratelimit provides a fixed-window request counter keyed by an
// arbitrary string. The clock is injected so windows are testable without
// sleeping.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

// Limiter allows at most limit events per key per window.
type Limiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]window
}

// New creates a limiter. A limit of zero or less disables limiting.
func New(limit int, windowSize time.Duration, clock func() time.Time) *Limiter {
	if clock == nil {
		clock = time.Now
	}
	return &Limiter{
		limit:   limit,
		window:  windowSize,
		clock:   clock,
		windows: make(map[string]window),
	}
}

// Allow records one event for key and reports whether it fits the window.
func (l *Limiter) Allow(key string) bool {
	if l.limit <= 0 {
		return true
	}

	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.windows[key]
	if !ok || now.Sub(current.start) >= l.window {
		current = window{start: now}
	}
	if current.count >= l.limit {
		l.windows[key] = current
		return false
	}
	current.count++
	l.windows[key] = current
	return true
}

// Remaining reports how many events key can still record in its window.
func (l *Limiter) Remaining(key string) int {
	if l.limit <= 0 {
		return 1
	}

	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.windows[key]
	if !ok || now.Sub(current.start) >= l.window {
		return l.limit
	}
	remaining := l.limit - current.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PruneLoop runs Prune every interval until ctx is cancelled, keeping the
// key map bounded over the process lifetime.
func (l *Limiter) PruneLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune()
		}
	}
}

// Prune drops windows that ended before now. Callers run it periodically to
// keep the key map bounded.
func (l *Limiter) Prune() {
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, current := range l.windows {
		if now.Sub(current.start) >= l.window {
			delete(l.windows, key)
		}
	}
}
