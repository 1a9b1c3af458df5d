package resolver

import (
	"context"
	"qrshield/pkg/domain"
)

//go:generate mockgen -package mockresolver -source=interface.go -destination=mock/mockresolver.go *
type Expander interface {
	// Resolve returns the complete expansion of rawURL.
	Resolve(ctx context.Context, rawURL string, opts ...CallOption) domain.RedirectExpansion
	// Stream publishes growing snapshots of the expansion; the last one is complete.
	Stream(ctx context.Context, rawURL string, opts ...CallOption) <-chan domain.RedirectExpansion
}

type callOptions struct {
	bypassCache bool
}

// CallOption customizes a single Resolve or Stream call.
type CallOption func(*callOptions)

// WithBypassCache forces a fresh expansion. The result still refreshes the cache.
func WithBypassCache() CallOption {
	return func(o *callOptions) { o.bypassCache = true }
}
