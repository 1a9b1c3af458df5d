package analyzer

import (
	"context"
	"qrshield/pkg/domain"
)

//go:generate mockgen -package mockanalyzer -source=interface.go -destination=mock/mockanalyzer.go *
type Analyzer interface {
	// Inspect publishes the local report immediately and the resolved report
	// once redirects and reputation are known, then closes the channel.
	// With WithProgress a resolving report follows every confirmed redirect.
	// Input that cannot be resolved yields a single report.
	Inspect(ctx context.Context, raw string, opts ...Option) (<-chan domain.Report, error)
	// Analyze returns the final report of Inspect.
	Analyze(ctx context.Context, raw string, opts ...Option) (domain.Report, error)
	// Resolve expands the redirect chain of an absolute URL.
	Resolve(ctx context.Context, raw string, opts ...Option) (domain.RedirectExpansion, error)
}

type callOptions struct {
	force    bool
	progress bool
}

// Option customizes a single call.
type Option func(*callOptions)

// WithForce bypasses cached redirect expansions.
func WithForce(force bool) Option {
	return func(o *callOptions) { o.force = force }
}

// WithProgress asks Inspect for resolving reports while the redirect chain is walked.
func WithProgress(progress bool) Option {
	return func(o *callOptions) { o.progress = progress }
}

func applyOptions(opts []Option) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	return o
}
