// Package ratelimit provides per-client fixed-window admission control.
//
// A window starts on a key's first request and admits up to Limit requests
// until it expires. Windows are not aligned, so a client may be admitted up
// to 2×Limit times across a window boundary; this imprecision is accepted.
// State is process-wide and volatile.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of one admission check.
type Decision struct {
	// Allowed is true when the request was admitted.
	Allowed bool
	// Limit is the window capacity.
	Limit int
	// Remaining is the number of requests still admitted in the current window.
	Remaining int
	// ResetAt is when the current window expires.
	ResetAt time.Time
}

// RetryAfter returns the time left until the window resets, rounded up to whole seconds.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	left := d.ResetAt.Sub(now)
	if left <= 0 {
		return 0
	}

	return (left + time.Second - 1).Truncate(time.Second)
}

type window struct {
	count   int
	resetAt time.Time
}

// Options configures a FixedWindow limiter.
type Options struct {
	// Limit is the number of requests admitted per window.
	Limit int
	// Window is the window length.
	Window time.Duration
	// SweepInterval is how often expired windows are dropped. Defaults to Window.
	SweepInterval time.Duration
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// FixedWindow is a fixed-window limiter keyed by client identifier. It is safe for concurrent use.
type FixedWindow struct {
	opts Options

	mu        sync.Mutex
	windows   map[string]*window
	nextSweep time.Time
}

// New creates a FixedWindow limiter.
func New(opts Options) *FixedWindow {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = opts.Window
	}

	return &FixedWindow{
		opts:    opts,
		windows: make(map[string]*window),
	}
}

// Allow records a request for key and reports whether it is admitted.
func (l *FixedWindow) Allow(key string) Decision {
	now := l.opts.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(l.opts.Window)}
		l.windows[key] = w

		return Decision{Allowed: true, Limit: l.opts.Limit, Remaining: l.opts.Limit - 1, ResetAt: w.resetAt}
	}

	if w.count < l.opts.Limit {
		w.count++

		return Decision{Allowed: true, Limit: l.opts.Limit, Remaining: l.opts.Limit - w.count, ResetAt: w.resetAt}
	}

	return Decision{Allowed: false, Limit: l.opts.Limit, Remaining: 0, ResetAt: w.resetAt}
}

// Len returns the number of tracked windows.
func (l *FixedWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.windows)
}

// sweep drops expired windows at most once per SweepInterval. Callers hold mu.
func (l *FixedWindow) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	l.nextSweep = now.Add(l.opts.SweepInterval)

	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
}
