// Package analyzer inspects QR payloads: it extracts local signals, expands
// the redirect chain, consults reputation collaborators and scores the result.
package analyzer

import (
	"context"
	"fmt"
	"net/url"
	"qrshield/internal/config"
	"qrshield/internal/resolver"
	"qrshield/pkg/domain"
	"qrshield/pkg/logger"
	"qrshield/pkg/risk"
	"qrshield/pkg/serrors"
	"qrshield/pkg/signals"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// DefaultMaxURLLength is the longest payload accepted.
const DefaultMaxURLLength = 2048

// Options configure payload validation.
// These settings are typically derived from application configuration.
type Options struct {
	// MaxURLLength is the longest payload accepted.
	MaxURLLength int
	// MeterProvider defaults to the global otel meter provider.
	MeterProvider metric.MeterProvider
}

// NewOptions constructs an Options value from the provided application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		MaxURLLength: cfg.HTTP.MaxURLLength,
	}
}

// Reputation answers what external collaborators know about a host.
// *reputation.Service satisfies it.
type Reputation interface {
	Lookup(ctx context.Context, host string) *domain.Reputation
}

// Deps are the collaborators of an analyzer. Reputation may be nil.
type Deps struct {
	Extractor  *signals.Extractor
	Resolver   resolver.Expander
	Reputation Reputation
}

// analyzer is the concrete implementation of the Analyzer interface.
type analyzer struct {
	options  Options
	deps     Deps
	verdicts metric.Int64Counter
}

// New creates a new Analyzer with the given collaborators.
func New(deps Deps, options Options) (Analyzer, error) {
	if options.MaxURLLength <= 0 {
		options.MaxURLLength = DefaultMaxURLLength
	}
	if options.MeterProvider == nil {
		options.MeterProvider = otel.GetMeterProvider()
	}
	if deps.Extractor == nil {
		deps.Extractor = signals.New(signals.Options{})
	}

	verdicts, err := options.MeterProvider.Meter("qrshield/internal/analyzer").Int64Counter(
		"qrshield_analyzer_verdicts",
		metric.WithDescription("Reports produced by stage and verdict"))
	if err != nil {
		return nil, fmt.Errorf("could not create verdicts counter: %w", err)
	}

	return &analyzer{options: options, deps: deps, verdicts: verdicts}, nil
}

func (a *analyzer) validate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", serrors.With(serrors.ErrBadRequest, "url is required")
	}
	if len(raw) > a.options.MaxURLLength {
		return "", serrors.With(serrors.ErrBadRequest, "url exceeds %d characters", a.options.MaxURLLength)
	}

	return raw, nil
}

// resolvable reports whether u can be probed over HTTP.
func resolvable(u *url.URL) bool {
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (a *analyzer) report(ctx context.Context, stage domain.Stage, raw string, res domain.RiskResult) domain.Report {
	a.verdicts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", string(stage)),
		attribute.String("verdict", string(res.Verdict)),
	))

	return domain.Report{Stage: stage, InputURL: raw, Risk: res}
}

// Inspect implements Analyzer.
func (a *analyzer) Inspect(ctx context.Context, raw string, opts ...Option) (<-chan domain.Report, error) {
	raw, err := a.validate(raw)
	if err != nil {
		return nil, err
	}
	o := applyOptions(opts)

	out := make(chan domain.Report, 2)

	u, err := signals.Parse(raw)
	if err != nil {
		logger.Debug(ctx, "payload is not a valid URL", zap.Error(err))
		out <- a.report(ctx, domain.StageResolved, raw, risk.Invalid(raw))
		close(out)

		return out, nil
	}

	set := a.deps.Extractor.Extract(u)
	if !resolvable(u) || a.deps.Resolver == nil {
		out <- a.report(ctx, domain.StageResolved, raw, risk.Score(risk.Input{Signals: set}))
		close(out)

		return out, nil
	}

	out <- a.report(ctx, domain.StageLocal, raw, risk.Score(risk.Input{Signals: set}))

	go func() {
		defer close(out)

		if !o.progress {
			exp := a.deps.Resolver.Resolve(ctx, u.String(), o.resolverOptions()...)
			out <- a.resolved(ctx, raw, u, set, exp)

			return
		}
		a.stream(ctx, out, raw, u, set, o)
	}()

	return out, nil
}

// stream publishes a resolving report for every snapshot that adds a
// confirmed redirect and the resolved report from the last snapshot.
func (a *analyzer) stream(ctx context.Context, out chan<- domain.Report, raw string, u *url.URL, set signals.Set, o callOptions) {
	var (
		last domain.RedirectExpansion
		hops int
	)
	for exp := range a.deps.Resolver.Stream(ctx, u.String(), o.resolverOptions()...) {
		if !exp.Failed() && exp.HopCount > hops {
			hops = exp.HopCount
			partial := exp
			in, _ := a.input(u, set, &partial)

			rep := a.report(ctx, domain.StageResolving, raw, risk.Score(in))
			rep.Expansion = &partial
			send(ctx, out, rep)
		}
		last = exp
	}

	send(ctx, out, a.resolved(ctx, raw, u, set, last))
}

// send gives up when nobody reads out anymore.
func send(ctx context.Context, out chan<- domain.Report, rep domain.Report) {
	select {
	case out <- rep:
	case <-ctx.Done():
	}
}

func (o callOptions) resolverOptions() []resolver.CallOption {
	if o.force {
		return []resolver.CallOption{resolver.WithBypassCache()}
	}

	return nil
}

// input combines the local signals with exp. Destination signals are added
// when the chain left the original host; host is the one to look up.
func (a *analyzer) input(u *url.URL, set signals.Set, exp *domain.RedirectExpansion) (in risk.Input, host string) {
	in = risk.Input{Signals: set, Expansion: exp}
	host = set.Host
	if final, err := url.Parse(exp.FinalURL); err == nil && resolvable(final) {
		if final.Hostname() != normalizedHost(u, set.Host) {
			dest := a.deps.Extractor.Extract(final)
			in.Destination = &dest
		}
		host = final.Hostname()
	}

	return in, host
}

func (a *analyzer) resolved(ctx context.Context, raw string, u *url.URL, set signals.Set, exp domain.RedirectExpansion) domain.Report {
	in, host := a.input(u, set, &exp)
	if a.deps.Reputation != nil {
		in.Reputation = a.deps.Reputation.Lookup(ctx, host)
	}

	res := risk.Score(in)
	logger.Info(ctx, "payload analyzed",
		zap.String("final_url", exp.FinalURL),
		zap.Int("hop_count", exp.HopCount),
		zap.String("failure_reason", string(exp.FailureReason)),
		zap.Int("score", res.Score),
		zap.String("verdict", string(res.Verdict)))

	rep := a.report(ctx, domain.StageResolved, raw, res)
	rep.Expansion = &exp
	rep.Reputation = in.Reputation

	return rep
}

// normalizedHost returns the host of u in the form the resolver reports hops.
func normalizedHost(u *url.URL, fallback string) string {
	normalized, err := resolver.NormalizeURL(u.String())
	if err != nil {
		return fallback
	}
	nu, err := url.Parse(normalized)
	if err != nil {
		return fallback
	}

	return nu.Hostname()
}

// Analyze implements Analyzer.
func (a *analyzer) Analyze(ctx context.Context, raw string, opts ...Option) (domain.Report, error) {
	ch, err := a.Inspect(ctx, raw, opts...)
	if err != nil {
		return domain.Report{}, err
	}

	var last domain.Report
	for rep := range ch {
		last = rep
	}

	return last, nil
}

// Resolve implements Analyzer.
func (a *analyzer) Resolve(ctx context.Context, raw string, opts ...Option) (domain.RedirectExpansion, error) {
	raw, err := a.validate(raw)
	if err != nil {
		return domain.RedirectExpansion{}, err
	}
	if _, err := resolver.NormalizeURL(raw); err != nil {
		return domain.RedirectExpansion{}, serrors.Wrap(serrors.ErrBadRequest, err, "invalid URL")
	}
	if a.deps.Resolver == nil {
		return domain.RedirectExpansion{}, serrors.With(serrors.ErrUnavailable, "resolver is not configured")
	}

	return a.deps.Resolver.Resolve(ctx, raw, applyOptions(opts).resolverOptions()...), nil
}
