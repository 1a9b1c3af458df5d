// Package resolver expands a URL's HTTP redirect chain hop by hop under
// SSRF, loop, hop-count and deadline bounds.
//
// Each hop is probed with HEAD (falling back once to a one-byte ranged GET)
// and never followed automatically by the transport. Failures are reported
// as a FailureReason on the returned expansion, never as errors: the chain
// walked so far is always returned. Completed expansions are memoized in a
// TTL cache keyed by the SHA-256 of the normalized start URL.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"qrshield/pkg/cache"
	"qrshield/pkg/domain"
	"qrshield/pkg/logger"
	"qrshield/pkg/metrics"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultMaxHops is the number of confirmed redirects after which expansion stops.
	DefaultMaxHops = 10
	// DefaultDeadline bounds a whole expansion.
	DefaultDeadline = 10 * time.Second
	// DefaultHopTimeout bounds a single probe.
	DefaultHopTimeout = time.Second
	// DefaultUserAgent is sent with every probe.
	DefaultUserAgent = "qrshield-resolver/1.0"

	// maxDrain is how much of a response body is read before closing it.
	maxDrain = 4 << 10
)

// Options configures a Resolver.
type Options struct {
	// Transport issues probes. Defaults to NewHTTPClient with default options.
	Transport Transport
	// HostResolver resolves host names for the SSRF guard. Defaults to net.DefaultResolver.
	HostResolver HostResolver
	// Cache memoizes completed expansions. Nil disables caching.
	Cache *cache.TTL[domain.RedirectExpansion]
	// MaxHops defaults to DefaultMaxHops.
	MaxHops int
	// Deadline defaults to DefaultDeadline.
	Deadline time.Duration
	// HopTimeout defaults to DefaultHopTimeout.
	HopTimeout time.Duration
	// UserAgent defaults to DefaultUserAgent.
	UserAgent string
	// MeterProvider defaults to the global otel meter provider.
	MeterProvider metric.MeterProvider
}

// Resolver follows redirect chains. It is safe for concurrent use.
type Resolver struct {
	opts   Options
	guard  *Guard
	tracer trace.Tracer

	flightsMu sync.Mutex
	flights   map[string]*flight

	expansions metric.Int64Counter
	hops       metric.Float64Histogram
	duration   metric.Float64Histogram
}

var _ Expander = (*Resolver)(nil)

// New creates a Resolver.
func New(opts Options) (*Resolver, error) {
	if opts.Transport == nil {
		opts.Transport = NewHTTPClient(ClientOptions{DialTimeout: DefaultHopTimeout, TLSHandshakeTimeout: DefaultHopTimeout})
	}
	if opts.MaxHops <= 0 {
		opts.MaxHops = DefaultMaxHops
	}
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultDeadline
	}
	if opts.HopTimeout <= 0 {
		opts.HopTimeout = DefaultHopTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = otel.GetMeterProvider()
	}

	meter := opts.MeterProvider.Meter("qrshield/internal/resolver")
	expansions, err := meter.Int64Counter("qrshield_resolver_expansions",
		metric.WithDescription("Completed redirect expansions by failure reason"))
	if err != nil {
		return nil, fmt.Errorf("could not create expansions counter: %w", err)
	}
	hops, err := meter.Float64Histogram("qrshield_resolver_hops",
		metric.WithDescription("Confirmed redirects per expansion"),
		metric.WithExplicitBucketBoundaries(metrics.HopBuckets...))
	if err != nil {
		return nil, fmt.Errorf("could not create hops histogram: %w", err)
	}
	duration, err := meter.Float64Histogram("qrshield_resolver_duration_seconds",
		metric.WithDescription("Wall-clock time of an expansion"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(metrics.DefaultBuckets...))
	if err != nil {
		return nil, fmt.Errorf("could not create duration histogram: %w", err)
	}

	return &Resolver{
		opts:       opts,
		guard:      NewGuard(opts.HostResolver),
		tracer:     otel.Tracer("qrshield/internal/resolver"),
		flights:    make(map[string]*flight),
		expansions: expansions,
		hops:       hops,
		duration:   duration,
	}, nil
}

func applyCallOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// unsupported is the expansion of input that cannot be probed at all.
func unsupported(raw string) domain.RedirectExpansion {
	exp := domain.NewExpansion(raw)
	exp.FailureReason = domain.FailureUnsupportedScheme

	return exp
}

// start normalizes rawURL and reports whether it can be probed.
func start(rawURL string) (string, bool) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return "", false
	}
	u, err := url.Parse(normalized)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return normalized, false
	}

	return normalized, true
}

// Resolve implements Expander. Concurrent Resolve and Stream calls for the
// same URL share one expansion. When ctx ends first the caller gets the start
// URL with timeout or network_error while the shared expansion completes in
// the background.
func (r *Resolver) Resolve(ctx context.Context, rawURL string, opts ...CallOption) domain.RedirectExpansion {
	o := applyCallOptions(opts)

	normalized, ok := start(rawURL)
	if !ok {
		if normalized == "" {
			return unsupported(rawURL)
		}

		return unsupported(normalized)
	}

	key := cache.Key(normalized)
	if !o.bypassCache {
		if exp, hit := r.cached(ctx, key); hit {
			return exp
		}
	}

	f := r.join(ctx, key, normalized)
	select {
	case <-f.done:
		return f.result.Clone()
	case <-ctx.Done():
		return abandoned(ctx, domain.NewExpansion(normalized))
	}
}

// Stream implements Expander. Every value extends the previous one and the
// channel is closed after the complete expansion was sent. A cached
// expansion is sent alone. When ctx ends first the last value is the chain
// seen so far with timeout or network_error.
func (r *Resolver) Stream(ctx context.Context, rawURL string, opts ...CallOption) <-chan domain.RedirectExpansion {
	o := applyCallOptions(opts)
	// at most MaxHops snapshots and the final value
	out := make(chan domain.RedirectExpansion, r.opts.MaxHops+1)

	go func() {
		defer close(out)

		normalized, ok := start(rawURL)
		if !ok {
			if normalized == "" {
				normalized = rawURL
			}
			out <- unsupported(normalized)

			return
		}

		key := cache.Key(normalized)
		if !o.bypassCache {
			if exp, hit := r.cached(ctx, key); hit {
				out <- exp

				return
			}
		}

		f := r.join(ctx, key, normalized)
		seen := domain.NewExpansion(normalized)
		sent := 0
		for {
			snapshots, changed := f.since(sent)
			for _, snapshot := range snapshots {
				out <- snapshot.Clone()
				seen = snapshot
				sent++
			}

			select {
			case <-f.done:
				// snapshots published before finish are sent first
				snapshots, _ := f.since(sent)
				for _, snapshot := range snapshots {
					out <- snapshot.Clone()
				}
				out <- f.result.Clone()

				return
			case <-changed:
			case <-ctx.Done():
				out <- abandoned(ctx, seen)

				return
			}
		}
	}()

	return out
}

func (r *Resolver) cached(ctx context.Context, key string) (domain.RedirectExpansion, bool) {
	if r.opts.Cache == nil {
		return domain.RedirectExpansion{}, false
	}

	exp, ok := r.opts.Cache.Get(ctx, key)
	if ok {
		logger.Debug(ctx, "redirect expansion served from cache", zap.String("url", exp.Chain[0]))
	}

	return exp, ok
}

// cacheable reports whether exp describes the destination rather than a transient condition.
func cacheable(exp domain.RedirectExpansion) bool {
	return exp.FailureReason != domain.FailureNetworkError && exp.FailureReason != domain.FailureTimeout
}

func (r *Resolver) store(ctx context.Context, key string, exp domain.RedirectExpansion) {
	if r.opts.Cache == nil || !cacheable(exp) {
		return
	}

	if err := r.opts.Cache.Set(ctx, key, exp); err != nil {
		logger.Warn(ctx, "could not cache redirect expansion", zap.Error(err))
	}
}

// expand walks the chain from start. emit, when set, receives the expansion
// after every confirmed redirect.
func (r *Resolver) expand(ctx context.Context, startURL string, emit func(domain.RedirectExpansion)) domain.RedirectExpansion {
	began := time.Now()
	ctx, span := r.tracer.Start(ctx, "resolver.expand", trace.WithAttributes(attribute.String("url", startURL)))
	defer span.End()

	deadlineCtx, cancel := context.WithTimeout(ctx, r.opts.Deadline)
	defer cancel()

	exp := domain.NewExpansion(startURL)
	visited := map[string]struct{}{startURL: {}}
	current := startURL

	for {
		u, err := url.Parse(current)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			exp.FailureReason = domain.FailureUnsupportedScheme

			break
		}

		if err := r.guard.Check(deadlineCtx, u.Hostname()); err != nil {
			logger.Debug(ctx, "redirect hop rejected by ssrf guard", zap.String("url", current), zap.Error(err))
			exp.FailureReason = r.classify(ctx, deadlineCtx, err)

			break
		}

		next, err := r.probe(deadlineCtx, u)
		if err != nil {
			logger.Debug(ctx, "redirect hop failed", zap.String("url", current), zap.Error(err))
			exp.FailureReason = r.classify(ctx, deadlineCtx, err)

			break
		}
		if next == "" {
			break
		}

		normalized, err := NormalizeURL(next)
		if err != nil {
			exp.FailureReason = domain.FailureUnsupportedScheme

			break
		}
		if _, seen := visited[normalized]; seen {
			exp.FailureReason = domain.FailureRedirectLoop

			break
		}
		visited[normalized] = struct{}{}

		exp.Append(normalized)
		if emit != nil {
			emit(exp)
		}

		if exp.HopCount >= r.opts.MaxHops {
			exp.FailureReason = domain.FailureTooManyRedirects

			break
		}
		current = normalized
	}

	reason := string(exp.FailureReason)
	if reason == "" {
		reason = "none"
	}
	attrs := metric.WithAttributes(attribute.String("failure_reason", reason))
	r.expansions.Add(ctx, 1, attrs)
	r.hops.Record(ctx, float64(exp.HopCount), attrs)
	r.duration.Record(ctx, time.Since(began).Seconds(), attrs)

	span.SetAttributes(
		attribute.Int("hop_count", exp.HopCount),
		attribute.String("final_url", exp.FinalURL),
		attribute.String("failure_reason", reason),
	)
	if exp.Failed() {
		span.SetStatus(codes.Error, reason)
	}

	return exp
}

// classify maps a hop error to a failure reason. Expiry of the expansion
// deadline or of the hop timeout is a timeout; a cancelled parent is a
// network error like every other transport failure.
func (r *Resolver) classify(parent, deadlineCtx context.Context, err error) domain.FailureReason {
	if parent.Err() != nil {
		if errors.Is(parent.Err(), context.DeadlineExceeded) {
			return domain.FailureTimeout
		}

		return domain.FailureNetworkError
	}
	if deadlineCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return domain.FailureTimeout
	}

	return domain.FailureNetworkError
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }

	return errors.As(err, &t) && t.Timeout()
}

// probe issues HEAD for u, retrying once with a ranged GET when HEAD is
// rejected, answers a redirect without a Location, or fails for a reason
// other than a timeout. It returns the
// absolute redirect target, or "" for a terminal response.
func (r *Resolver) probe(ctx context.Context, u *url.URL) (string, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.probe", trace.WithAttributes(attribute.String("url", u.String())))
	defer span.End()

	resp, err := r.do(ctx, http.MethodHead, u)
	if err == nil && resp.StatusCode < http.StatusBadRequest && !redirectWithoutTarget(resp) {
		return location(ctx, span, u, http.MethodHead, resp), nil
	}
	if err != nil && (ctx.Err() != nil || isTimeout(err) || errors.Is(err, context.DeadlineExceeded)) {
		span.RecordError(err)

		return "", err
	}
	if resp != nil {
		closeBody(resp)
	}

	resp, err = r.do(ctx, http.MethodGet, u)
	if err != nil {
		span.RecordError(err)

		return "", err
	}

	return location(ctx, span, u, http.MethodGet, resp), nil
}

func redirectWithoutTarget(resp *http.Response) bool {
	return resp.StatusCode >= http.StatusMultipleChoices && resp.Header.Get("Location") == ""
}

func location(ctx context.Context, span trace.Span, u *url.URL, method string, resp *http.Response) string {
	defer closeBody(resp)

	span.SetAttributes(
		attribute.String("method", method),
		attribute.Int("status", resp.StatusCode),
	)
	logger.Debug(ctx, "probed redirect hop",
		zap.String("url", u.String()),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode < http.StatusMultipleChoices || resp.StatusCode >= http.StatusBadRequest {
		return ""
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return ""
	}
	target, err := url.Parse(loc)
	if err != nil {
		// handed back verbatim, normalization rejects it
		return loc
	}

	return u.ResolveReference(target).String()
}

func (r *Resolver) do(ctx context.Context, method string, u *url.URL) (*http.Response, error) {
	hopCtx, cancel := context.WithTimeout(ctx, r.opts.HopTimeout)

	req, err := http.NewRequestWithContext(hopCtx, method, u.String(), nil)
	if err != nil {
		cancel()

		return nil, fmt.Errorf("could not create %s request: %w", method, err)
	}
	req.Header.Set("User-Agent", r.opts.UserAgent)
	req.Header.Set("Accept", "*/*")
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}

	resp, err := r.opts.Transport.Do(req)
	if err != nil {
		cancel()

		return nil, fmt.Errorf("%s %s: %w", method, u.Redacted(), err)
	}
	if resp.Body == nil {
		resp.Body = http.NoBody
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}

	return resp, nil
}

// cancelBody releases the hop context once the body is closed.
type cancelBody struct {
	io.ReadCloser

	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	defer b.cancel()

	return b.ReadCloser.Close()
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	_ = resp.Body.Close()
}
