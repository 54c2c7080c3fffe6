// Package observe provides observability primitives for the Talking Actors
// server: OpenTelemetry metrics with a Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/acdevs/talking-actors"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation. All record methods are no-ops on a nil
// receiver so instrumentation can stay optional in tests.
type Metrics struct {
	// CommandsHandled counts chat commands the processor accepted. Use with
	// attribute: attribute.String("command", ...)
	CommandsHandled metric.Int64Counter

	// ResolutionFallbacks counts degradations in voice/speaker resolution.
	// Use with attribute: attribute.String("reason", ...)
	ResolutionFallbacks metric.Int64Counter

	// SynthesisFailures counts TTS requests that returned no playback item.
	SynthesisFailures metric.Int64Counter

	// ChatSinkErrors counts failed chat post/update operations.
	ChatSinkErrors metric.Int64Counter

	// SynthesisDuration tracks text-to-speech synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// ActiveConnections tracks the number of connected host clients.
	ActiveConnections metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// streamed synthesis calls.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CommandsHandled, err = m.Int64Counter("talkingactors.commands.handled",
		metric.WithDescription("Total chat commands handled, by command."),
	); err != nil {
		return nil, err
	}
	if met.ResolutionFallbacks, err = m.Int64Counter("talkingactors.resolution.fallbacks",
		metric.WithDescription("Total voice/speaker resolution fallbacks, by reason."),
	); err != nil {
		return nil, err
	}
	if met.SynthesisFailures, err = m.Int64Counter("talkingactors.synthesis.failures",
		metric.WithDescription("Total synthesis requests that yielded no playback item."),
	); err != nil {
		return nil, err
	}
	if met.ChatSinkErrors, err = m.Int64Counter("talkingactors.chat.sink_errors",
		metric.WithDescription("Total failed chat post/update operations."),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("talkingactors.synthesis.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveConnections, err = m.Int64UpDownCounter("talkingactors.connections.active",
		metric.WithDescription("Number of connected host clients."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
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

// RecordCommand records a handled chat command.
func (m *Metrics) RecordCommand(ctx context.Context, command string) {
	if m == nil {
		return
	}
	m.CommandsHandled.Add(ctx, 1,
		metric.WithAttributes(attribute.String("command", command)),
	)
}

// RecordFallback records a resolution fallback with the given reason.
func (m *Metrics) RecordFallback(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.ResolutionFallbacks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordSynthesis records one synthesis attempt: its latency in seconds and
// whether it failed.
func (m *Metrics) RecordSynthesis(ctx context.Context, seconds float64, failed bool) {
	if m == nil {
		return
	}
	m.SynthesisDuration.Record(ctx, seconds)
	if failed {
		m.SynthesisFailures.Add(ctx, 1)
	}
}

// RecordSinkError records a failed chat sink operation.
func (m *Metrics) RecordSinkError(ctx context.Context) {
	if m == nil {
		return
	}
	m.ChatSinkErrors.Add(ctx, 1)
}

// ConnectionOpened increments the active connection gauge.
func (m *Metrics) ConnectionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveConnections.Add(ctx, 1)
}

// ConnectionClosed decrements the active connection gauge.
func (m *Metrics) ConnectionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveConnections.Add(ctx, -1)
}
