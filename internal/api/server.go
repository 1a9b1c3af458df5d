// Package api configures and exposes the HTTP server, routes,
// metrics, docs and related middleware for the qrshield service.
package api

import (
	_ "embed"
	"fmt"
	"mime"
	"net/http"
	"qrshield/internal/api/handler/v1handler"
	"qrshield/internal/config"
	"qrshield/pkg/controller"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggest/swgui/v5emb"
)

// v1Spec contains the embedded OpenAPI specification for version 1 of the API.
//
//go:embed specs/v1.yaml
var v1Spec []byte

const timeoutBody = `{"ok":false,"error":{"code":"TIMEOUT","message":"request timed out"}}`

// Options holds configuration for the HTTP server and its dependencies.
// It is typically created from a config.Config via NewOptions.
type Options struct {
	// SecHandlerOptions configures bearer authentication for v1 endpoints.
	SecHandlerOptions *v1handler.SecHandlerOptions

	// Addr is the TCP address the server listens on, e.g. ":8080".
	Addr string
	// ReadTimeout is the maximum duration for reading the entire request, including the body.
	ReadTimeout time.Duration
	// ReadHeaderTimeout is the amount of time allowed to read request headers.
	ReadHeaderTimeout time.Duration
	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration
	// IdleTimeout is the maximum amount of time to wait for the next request when keep-alives are enabled.
	IdleTimeout time.Duration
	// RequestTimeout is applied via http.TimeoutHandler to every buffered response.
	// Streamed responses are bounded by the resolver deadline instead.
	RequestTimeout time.Duration
	// MaxHeaderBytes controls the maximum number of bytes the server
	// will read parsing the request header's keys and values, including the request line.
	MaxHeaderBytes int
	// MetricsPath is the HTTP path at which Prometheus metrics are served.
	MetricsPath string
	// Gatherer is the registry served at MetricsPath. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// NewOptions constructs an Options value from the provided application configuration.
func NewOptions(cfg *config.Config) Options {
	return Options{
		SecHandlerOptions: v1handler.NewSecHandlerOptions(cfg),

		Addr:              cfg.HTTP.Addr,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		RequestTimeout:    cfg.HTTP.RequestTimeout,
		MaxHeaderBytes:    cfg.HTTP.MaxHeaderBytes,
		MetricsPath:       cfg.HTTP.MetricsPath,
	}
}

// Deps are the collaborators served by the API.
type Deps struct {
	v1handler.Deps
}

// NewHandler builds the root handler:
// - Prometheus metrics endpoint (MetricsPath) and /healthz
// - Embedded OpenAPI v1 spec and Swagger UI
// - v1 API routes
// - pprof endpoints for profiling
// wrapped with panic recovery, CORS, access logging and a request timeout.
func NewHandler(deps Deps, opts Options) (http.Handler, error) {
	mux := http.NewServeMux()

	// prometheus metrics
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if opts.MetricsPath != "" {
		mux.Handle(opts.MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	// v1 specs file
	mux.HandleFunc("/specs/v1.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(v1Spec)
	})
	// v1 api swagger playground
	mux.Handle("/v1/docs/", v5emb.New(
		"QR Shield",
		"/specs/v1.yaml",
		"/v1/docs/",
	))
	// v1 api
	secHandler, err := v1handler.NewSecHandler(opts.SecHandlerOptions)
	if err != nil {
		return nil, fmt.Errorf("could not create sec handler: %w", err)
	}
	mux.Handle("/v1/", v1handler.New(deps.Deps, secHandler))

	// pprof
	mux.Handle(controller.PprofPrefix, controller.PprofMux(controller.PprofPrefix))

	handler := withTimeout(mux, opts.RequestTimeout)

	// cors
	handler = controller.WithCORS(handler)

	// logger
	handler = controller.WithLogger(handler)

	return controller.WithRecover(handler), nil
}

// NewServer wires up and returns a configured *http.Server using the provided Options.
func NewServer(deps Deps, opts Options) (*http.Server, error) {
	handler, err := NewHandler(deps, opts)
	if err != nil {
		return nil, err
	}

	return &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
		MaxHeaderBytes:    opts.MaxHeaderBytes,
	}, nil
}

// withTimeout applies http.TimeoutHandler to buffered responses. The timeout
// writer cannot flush, so NDJSON requests bypass it.
func withTimeout(next http.Handler, timeout time.Duration) http.Handler {
	if timeout <= 0 {
		return next
	}

	buffered := http.TimeoutHandler(next, timeout, timeoutBody)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Accept")); err == nil &&
			mediaType == "application/x-ndjson" {
			next.ServeHTTP(w, r)

			return
		}

		buffered.ServeHTTP(w, r)
	})
}
