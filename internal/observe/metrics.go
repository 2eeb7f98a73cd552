// Package observe provides application-wide observability primitives for
// formantpad: OpenTelemetry metrics, tracing helpers, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all formantpad metrics.
const meterName = "github.com/dlev-tools/formantpad"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// SendDuration tracks single knob transmission latency.
	SendDuration metric.Float64Histogram

	// InvokeDuration tracks whole-state operation latency (dump/pump).
	InvokeDuration metric.Float64Histogram

	// AnalyzeDuration tracks WAV decode plus spectral analysis latency.
	AnalyzeDuration metric.Float64Histogram

	// --- Counters ---

	// KnobSends counts throttled sends that were accepted. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	KnobSends metric.Int64Counter

	// KnobDrops counts throttled sends rejected by the rate limit.
	KnobDrops metric.Int64Counter

	// StateOps counts immediate whole-state operations. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	StateOps metric.Int64Counter

	// Evaluations counts mapping-engine evaluations. Use with attribute:
	//   attribute.String("trigger", "pad"|"control"|"archetype"|"analysis")
	Evaluations metric.Int64Counter

	// --- Gauges ---

	// ActivePadSessions tracks the number of connected remote pad clients.
	ActivePadSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for serial-link round trips: a librarian invocation spans process spawn
// plus device I/O, typically tens to hundreds of milliseconds.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SendDuration, err = m.Float64Histogram("formantpad.device.send.duration",
		metric.WithDescription("Latency of a single knob transmission."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.InvokeDuration, err = m.Float64Histogram("formantpad.device.invoke.duration",
		metric.WithDescription("Latency of a whole-state device operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalyzeDuration, err = m.Float64Histogram("formantpad.analyze.duration",
		metric.WithDescription("Latency of WAV decode and spectral analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.KnobSends, err = m.Int64Counter("formantpad.dispatch.sends",
		metric.WithDescription("Accepted throttled knob sends by status."),
	); err != nil {
		return nil, err
	}
	if met.KnobDrops, err = m.Int64Counter("formantpad.dispatch.drops",
		metric.WithDescription("Throttled knob sends dropped by the rate limit."),
	); err != nil {
		return nil, err
	}
	if met.StateOps, err = m.Int64Counter("formantpad.device.state_ops",
		metric.WithDescription("Whole-state device operations by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.Evaluations, err = m.Int64Counter("formantpad.mapping.evaluations",
		metric.WithDescription("Mapping-engine evaluations by trigger."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActivePadSessions, err = m.Int64UpDownCounter("formantpad.pad.sessions",
		metric.WithDescription("Number of connected remote pad clients."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("formantpad.http.request.duration",
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordKnobSend records one accepted throttled send: a counter increment
// with the given status plus a latency observation.
func (m *Metrics) RecordKnobSend(ctx context.Context, status string, seconds float64) {
	m.KnobSends.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.SendDuration.Record(ctx, seconds)
}

// RecordKnobDrop records one throttled send rejected by the rate limit.
func (m *Metrics) RecordKnobDrop(ctx context.Context) {
	m.KnobDrops.Add(ctx, 1)
}

// RecordStateOp records one whole-state operation with its latency.
func (m *Metrics) RecordStateOp(ctx context.Context, kind, status string, seconds float64) {
	m.StateOps.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
	m.InvokeDuration.Record(ctx, seconds)
}

// RecordEvaluation records one mapping-engine evaluation.
func (m *Metrics) RecordEvaluation(ctx context.Context, trigger string) {
	m.Evaluations.Add(ctx, 1,
		metric.WithAttributes(attribute.String("trigger", trigger)),
	)
}

// RecordAnalysis records one WAV analysis with its latency.
func (m *Metrics) RecordAnalysis(ctx context.Context, status string, seconds float64) {
	m.AnalyzeDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
