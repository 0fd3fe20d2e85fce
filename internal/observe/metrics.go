// Package observe provides application-wide observability primitives for
// Lexibot: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all Lexibot metrics.
const meterName = "github.com/MrWong99/lexibot"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per turn stage ---

	// TurnDuration tracks full turn latency from utterance to end of speech.
	TurnDuration metric.Float64Histogram

	// SnapshotDuration tracks the board snapshot round trip.
	SnapshotDuration metric.Float64Histogram

	// GenerationDuration tracks reply generation latency.
	GenerationDuration metric.Float64Histogram

	// SpeechDuration tracks synthesis plus playback latency.
	SpeechDuration metric.Float64Histogram

	// --- Counters ---

	// Turns counts completed turns. Use with attribute:
	//   attribute.String("kind", "user"|"idle")
	Turns metric.Int64Counter

	// SnapshotTimeouts counts snapshot requests answered from the stale
	// cache or not at all.
	SnapshotTimeouts metric.Int64Counter

	// ClassifierFaults counts emotion classifier failures.
	ClassifierFaults metric.Int64Counter

	// ProducerRestarts counts transcription producer restarts.
	ProducerRestarts metric.Int64Counter

	// UnknownClueRefs counts clue keys in board snapshots that matched no
	// definition.
	UnknownClueRefs metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live assistant sessions.
	ActiveSessions metric.Int64UpDownCounter

	// BoardConnections tracks the number of connected board publishers.
	BoardConnections metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-turn latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TurnDuration, err = m.Float64Histogram("lexibot.turn.duration",
		metric.WithDescription("Latency of a full turn, utterance to end of speech."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SnapshotDuration, err = m.Float64Histogram("lexibot.snapshot.duration",
		metric.WithDescription("Latency of the board snapshot round trip."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GenerationDuration, err = m.Float64Histogram("lexibot.generation.duration",
		metric.WithDescription("Latency of reply generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SpeechDuration, err = m.Float64Histogram("lexibot.speech.duration",
		metric.WithDescription("Latency of speech synthesis and playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Turns, err = m.Int64Counter("lexibot.turns",
		metric.WithDescription("Total completed turns by kind (user or idle)."),
	); err != nil {
		return nil, err
	}
	if met.SnapshotTimeouts, err = m.Int64Counter("lexibot.snapshot.timeouts",
		metric.WithDescription("Total snapshot requests that fell back to stale state or failed."),
	); err != nil {
		return nil, err
	}
	if met.ClassifierFaults, err = m.Int64Counter("lexibot.classifier.faults",
		metric.WithDescription("Total emotion classifier failures."),
	); err != nil {
		return nil, err
	}
	if met.ProducerRestarts, err = m.Int64Counter("lexibot.producer.restarts",
		metric.WithDescription("Total transcription producer restarts."),
	); err != nil {
		return nil, err
	}
	if met.UnknownClueRefs, err = m.Int64Counter("lexibot.clue.unknown_refs",
		metric.WithDescription("Total snapshot clue keys that matched no definition."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("lexibot.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("lexibot.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("lexibot.active_sessions",
		metric.WithDescription("Number of live assistant sessions."),
	); err != nil {
		return nil, err
	}
	if met.BoardConnections, err = m.Int64UpDownCounter("lexibot.board.connections",
		metric.WithDescription("Number of connected board publishers."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("lexibot.http.request.duration",
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

// RecordTurn records a completed turn of the given kind ("user" or "idle").
func (m *Metrics) RecordTurn(ctx context.Context, kind string) {
	m.Turns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
