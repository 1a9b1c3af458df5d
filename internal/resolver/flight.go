package resolver

import (
	"context"
	"errors"
	"qrshield/pkg/domain"
	"sync"
)

// flight is one shared expansion. Snapshots are published after every
// confirmed redirect and result is set once done is closed.
type flight struct {
	mu        sync.Mutex
	snapshots []domain.RedirectExpansion
	changed   chan struct{}
	done      chan struct{}
	result    domain.RedirectExpansion
}

func newFlight() *flight {
	return &flight{changed: make(chan struct{}), done: make(chan struct{})}
}

func (f *flight) publish(exp domain.RedirectExpansion) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.snapshots = append(f.snapshots, exp.Clone())
	close(f.changed)
	f.changed = make(chan struct{})
}

func (f *flight) finish(exp domain.RedirectExpansion) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.result = exp
	close(f.done)
}

// since returns the snapshots after the first n and a channel that is
// closed by the next publish.
func (f *flight) since(n int) ([]domain.RedirectExpansion, <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.snapshots[n:], f.changed
}

// join returns the running expansion of key or starts one. The expansion
// outlives ctx so that other callers still get a result; it is cached and
// forgotten once complete.
func (r *Resolver) join(ctx context.Context, key, normalized string) *flight {
	r.flightsMu.Lock()
	defer r.flightsMu.Unlock()

	if f, ok := r.flights[key]; ok {
		return f
	}

	f := newFlight()
	r.flights[key] = f

	go func() {
		flightCtx := context.WithoutCancel(ctx)
		exp := r.expand(flightCtx, normalized, f.publish)
		r.store(flightCtx, key, exp)

		r.flightsMu.Lock()
		delete(r.flights, key)
		r.flightsMu.Unlock()

		f.finish(exp)
	}()

	return f
}

// abandoned is what a caller whose ctx ended gets: the chain seen so far
// marked as timeout or network_error.
func abandoned(ctx context.Context, seen domain.RedirectExpansion) domain.RedirectExpansion {
	exp := seen.Clone()
	exp.FailureReason = domain.FailureNetworkError
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		exp.FailureReason = domain.FailureTimeout
	}

	return exp
}
