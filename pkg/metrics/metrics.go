// Package metrics wires the OpenTelemetry meter provider to the Prometheus
// registry and holds histogram buckets shared by instrumented packages.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// DefaultBuckets provides a common set of histogram buckets in seconds that can
// be reused across the application for latency metrics.
var DefaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10} //nolint: gochecknoglobals

// HopBuckets are histogram buckets for redirect hop counts.
var HopBuckets = []float64{0, 1, 2, 3, 4, 5, 6, 8, 10} //nolint: gochecknoglobals

// NewMeterProvider creates a meter provider that exports through the given
// Prometheus registerer and installs it as the global otel meter provider.
func NewMeterProvider(registerer prometheus.Registerer) (*sdkmetric.MeterProvider, error) {
	exp, err := otelprom.New(otelprom.WithRegisterer(registerer))
	if err != nil {
		return nil, fmt.Errorf("could not create otel exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	otel.SetMeterProvider(mp)

	return mp, nil
}
