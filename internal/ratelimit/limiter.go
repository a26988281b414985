// Package ratelimit implements a fixed-window request counter held in process
// memory. State is per-instance and resets on restart.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result reports the outcome of a single Allow call.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter throttles callers to max requests per window, keyed by an opaque
// identifier (normally the client IP). Construct once at startup and pass to
// handlers explicitly.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	max     int
	window  time.Duration
	now     func() time.Time
}

// New creates a limiter allowing max requests per window.
func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		max:     max,
		window:  window,
		now:     time.Now,
	}
}

// Allow records a request for id and reports whether it is within the window
// budget. Expired windows are replaced lazily on access.
func (l *Limiter) Allow(id string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[id]
	if !ok || now.After(e.resetAt) {
		e = &entry{count: 1, resetAt: now.Add(l.window)}
		l.entries[id] = e
		return Result{Allowed: true, Remaining: l.max - 1, ResetAt: e.resetAt}
	}

	e.count++
	if e.count > l.max {
		return Result{Allowed: false, Remaining: 0, ResetAt: e.resetAt}
	}
	return Result{Allowed: true, Remaining: l.max - e.count, ResetAt: e.resetAt}
}

// Sweep removes expired windows every interval until ctx is done.
// Run it in its own goroutine.
func (l *Limiter) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweepOnce()
		}
	}
}

func (l *Limiter) sweepOnce() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for id, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, id)
		}
	}
}

// Len returns the number of tracked identifiers.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
