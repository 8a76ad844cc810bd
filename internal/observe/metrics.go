// Package observe provides the observability primitives of Songbird:
// OpenTelemetry metrics and tracing, trace-aware structured logging, and
// HTTP middleware for the health/metrics listener.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed in
// Prometheus text format by [InitProvider]. A package-level default
// [Metrics] instance ([DefaultMetrics]) is available for convenience; tests
// should use [NewMetrics] with their own [metric.MeterProvider].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Songbird metrics.
const meterName = "github.com/DrTrintignant/Songbird"

// Metrics holds all OpenTelemetry instruments of the application. The
// underlying OTel types are safe for concurrent use.
type Metrics struct {
	// OperationDuration tracks how long each exposed operation takes.
	// Attributes: operation, outcome.
	OperationDuration metric.Float64Histogram

	// Operations counts exposed operation calls.
	// Attributes: operation, outcome.
	Operations metric.Int64Counter

	// ProviderDuration tracks remote provider call latency.
	// Attributes: provider, kind.
	ProviderDuration metric.Float64Histogram

	// ProviderRequests counts remote provider calls.
	// Attributes: provider, kind, status.
	ProviderRequests metric.Int64Counter

	// MatchTier counts local lookups by the matcher tier that resolved them
	// ("exact", "subset", "overlap", "filename" or "miss").
	MatchTier metric.Int64Counter

	// PolicyDecisions counts fetch/cache decisions. Attributes: verdict, cue.
	PolicyDecisions metric.Int64Counter

	// Plays counts sounds handed to the audio engine. Attribute: source
	// ("cache", "remote" or "bound").
	Plays metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes.
	// Attributes: breaker, state.
	BreakerTransitions metric.Int64Counter

	// HTTPRequestDuration tracks request latency on the HTTP listener.
	// Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram bucket boundaries in seconds. Remote sweeps can
// take several page timeouts, so the range extends to a minute.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates all instruments on the given [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.OperationDuration, err = m.Float64Histogram("songbird.operation.duration",
		metric.WithDescription("Latency of exposed Songbird operations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Operations, err = m.Int64Counter("songbird.operations",
		metric.WithDescription("Total operation calls by operation and outcome."),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("songbird.provider.duration",
		metric.WithDescription("Latency of remote provider calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("songbird.provider.requests",
		metric.WithDescription("Total remote provider calls by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.MatchTier, err = m.Int64Counter("songbird.match.tier",
		metric.WithDescription("Local catalog lookups by resolving matcher tier."),
	); err != nil {
		return nil, err
	}
	if met.PolicyDecisions, err = m.Int64Counter("songbird.policy.decisions",
		metric.WithDescription("Fetch/cache policy decisions by verdict and cue."),
	); err != nil {
		return nil, err
	}
	if met.Plays, err = m.Int64Counter("songbird.plays",
		metric.WithDescription("Sounds started by source."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("songbird.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("songbird.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call from [otel.GetMeterProvider]. Call it after [InitProvider] so the
// instruments bind to the exporting provider.
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

// RecordOperation records one call of an exposed operation.
func (m *Metrics) RecordOperation(ctx context.Context, op, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	)
	m.Operations.Add(ctx, 1, attrs)
	m.OperationDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordProviderRequest records one remote provider call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string, d time.Duration) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
	m.ProviderDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}

// RecordMatch records which matcher tier resolved a local lookup.
func (m *Metrics) RecordMatch(ctx context.Context, tier string) {
	m.MatchTier.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
}

// RecordPolicy records a fetch/cache decision. cue is empty when no lexical
// cue fired.
func (m *Metrics) RecordPolicy(ctx context.Context, verdict, cue string) {
	m.PolicyDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("verdict", verdict),
		attribute.String("cue", cue),
	))
}

// RecordPlay records a sound handed to the audio engine.
func (m *Metrics) RecordPlay(ctx context.Context, source string) {
	m.Plays.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordBreakerTransition records a circuit breaker moving to state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, state string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker", breaker),
		attribute.String("state", state),
	))
}
