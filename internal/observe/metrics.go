// Package observe provides application-wide observability primitives for
// radioclean: OpenTelemetry metrics, tracing, trace-aware structured logging,
// and the HTTP middleware wrapped around the metrics endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so the instruments can be
// scraped from /metrics. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all radioclean metrics.
const meterName = "github.com/MrWong99/radioclean"

// Stage names used as the "stage" attribute of [Metrics.StageDuration].
const (
	StageFilter   = "filter"
	StageGate     = "gate"
	StageLoudness = "loudness"
	StageResample = "resample"
	StageMetrics  = "metrics"
)

// File outcome values used as the "status" attribute of [Metrics.Files].
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// StageDuration tracks processing time per pipeline stage. Use with
	// attribute:
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// Files counts processed files. Use with attribute:
	//   attribute.String("status", ...)
	Files metric.Int64Counter

	// Segments counts speech segments found by the gate.
	Segments metric.Int64Counter

	// GainDB tracks the loudness-targeting gain applied per buffer.
	GainDB metric.Float64Histogram

	// LimiterEngaged counts buffers the peak limiter had to rescale.
	LimiterEngaged metric.Int64Counter

	// HTTPRequestDuration tracks telemetry endpoint latency. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...),
	//   attribute.Int("status", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// whole-buffer processing stages.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30,
}

// gainBuckets spans attenuation through strong boost of quiet recordings.
var gainBuckets = []float64{
	-20, -10, -6, -3, 0, 3, 6, 10, 20, 30, 40,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.StageDuration, err = m.Float64Histogram("radioclean.stage.duration",
		metric.WithDescription("Processing time of a pipeline stage per buffer."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GainDB, err = m.Float64Histogram("radioclean.gain.db",
		metric.WithDescription("Loudness-targeting gain applied per buffer."),
		metric.WithUnit("dB"),
		metric.WithExplicitBucketBoundaries(gainBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Files, err = m.Int64Counter("radioclean.files",
		metric.WithDescription("Total processed files by status."),
	); err != nil {
		return nil, err
	}
	if met.Segments, err = m.Int64Counter("radioclean.segments",
		metric.WithDescription("Total speech segments detected by the gate."),
	); err != nil {
		return nil, err
	}
	if met.LimiterEngaged, err = m.Int64Counter("radioclean.limiter.engaged",
		metric.WithDescription("Total buffers rescaled by the peak limiter."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("radioclean.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordStage records the duration of one pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordFile counts one processed file with the given status.
func (m *Metrics) RecordFile(ctx context.Context, status string) {
	m.Files.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordSegments adds n detected speech segments.
func (m *Metrics) RecordSegments(ctx context.Context, n int) {
	m.Segments.Add(ctx, int64(n))
}

// RecordGain records the normaliser gain and whether the limiter engaged.
func (m *Metrics) RecordGain(ctx context.Context, gainDB float64, limited bool) {
	m.GainDB.Record(ctx, gainDB)
	if limited {
		m.LimiterEngaged.Add(ctx, 1)
	}
}
