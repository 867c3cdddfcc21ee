// Package observe provides application-wide observability primitives for
// Voxwire: OpenTelemetry metrics, distributed tracing, structured logging,
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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Voxwire metrics.
const meterName = "github.com/MrWong99/voxwire"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Histograms ---

	// ConnectDuration tracks socket connection establishment latency.
	ConnectDuration metric.Float64Histogram

	// ScheduledLead tracks how far ahead of the output clock each audio
	// chunk is scheduled. Zero means the scheduler is in catch-up.
	ScheduledLead metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time on the debug
	// listener. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Outbound counters ---

	// FramesSent counts encoded microphone frames written to the socket.
	FramesSent metric.Int64Counter

	// FramesDropped counts outbound frames discarded instead of sent. Use
	// with attribute:
	//   attribute.String("reason", ...) with values like "not_connected"
	FramesDropped metric.Int64Counter

	// --- Inbound counters ---

	// MessagesReceived counts inbound socket messages. The "tag" attribute is
	// "audio", "text", "unknown" or "empty".
	MessagesReceived metric.Int64Counter

	// TextFragments counts inbound text fragments fed to the assembler.
	TextFragments metric.Int64Counter

	// SentencesCompleted counts sentences promoted by the assembler.
	SentencesCompleted metric.Int64Counter

	// --- Playback counters ---

	// ChunksScheduled counts audio chunks placed on the output timeline.
	ChunksScheduled metric.Int64Counter

	// ChunksDropped counts inbound audio chunks discarded because the
	// scheduler queue was full.
	ChunksDropped metric.Int64Counter

	// DecodeFailures counts malformed audio payloads dropped by the decoder.
	DecodeFailures metric.Int64Counter

	// CatchUps counts chunks that started at the output clock because the
	// previous scheduled end had already passed.
	CatchUps metric.Int64Counter

	// --- Session counters ---

	// StateChanges counts session state transitions. Use with attribute:
	//   attribute.String("state", ...)
	StateChanges metric.Int64Counter

	// --- Gauges ---

	// CaptureLevel is the coarse microphone amplitude in [0, 1], for the
	// level meter.
	CaptureLevel metric.Float64Gauge
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// connection and scheduling latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// leadBuckets defines bucket boundaries (in seconds) for the scheduled-lead
// histogram. Leads beyond a second mean the far end is bursting.
var leadBuckets = []float64{
	0, 0.02, 0.04, 0.08, 0.16, 0.32, 0.64, 1.28, 2.56,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ConnectDuration, err = m.Float64Histogram("voxwire.connect.duration",
		metric.WithDescription("Latency of socket connection establishment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ScheduledLead, err = m.Float64Histogram("voxwire.audio.scheduled_lead",
		metric.WithDescription("Distance between each chunk's scheduled start and the output clock."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(leadBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxwire.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Outbound counters.
	if met.FramesSent, err = m.Int64Counter("voxwire.frames.sent",
		metric.WithDescription("Total encoded microphone frames sent."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("voxwire.frames.dropped",
		metric.WithDescription("Total outbound frames dropped instead of sent, by reason."),
	); err != nil {
		return nil, err
	}

	// Inbound counters.
	if met.MessagesReceived, err = m.Int64Counter("voxwire.messages.received",
		metric.WithDescription("Total inbound socket messages by tag."),
	); err != nil {
		return nil, err
	}
	if met.TextFragments, err = m.Int64Counter("voxwire.text.fragments",
		metric.WithDescription("Total text fragments fed to the sentence assembler."),
	); err != nil {
		return nil, err
	}
	if met.SentencesCompleted, err = m.Int64Counter("voxwire.sentences.completed",
		metric.WithDescription("Total sentences promoted by the assembler."),
	); err != nil {
		return nil, err
	}

	// Playback counters.
	if met.ChunksScheduled, err = m.Int64Counter("voxwire.audio.chunks.scheduled",
		metric.WithDescription("Total audio chunks placed on the output timeline."),
	); err != nil {
		return nil, err
	}
	if met.ChunksDropped, err = m.Int64Counter("voxwire.audio.chunks.dropped",
		metric.WithDescription("Total inbound audio chunks dropped by a full scheduler queue."),
	); err != nil {
		return nil, err
	}
	if met.DecodeFailures, err = m.Int64Counter("voxwire.audio.decode.failures",
		metric.WithDescription("Total malformed audio payloads dropped."),
	); err != nil {
		return nil, err
	}
	if met.CatchUps, err = m.Int64Counter("voxwire.audio.catchups",
		metric.WithDescription("Total chunks that started late at the output clock instead of the scheduled end."),
	); err != nil {
		return nil, err
	}

	// Session counters.
	if met.StateChanges, err = m.Int64Counter("voxwire.session.transitions",
		metric.WithDescription("Total session state transitions by target state."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.CaptureLevel, err = m.Float64Gauge("voxwire.capture.level",
		metric.WithDescription("Coarse microphone amplitude in [0, 1]."),
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

// RecordFrameSent records one outbound frame written to the socket.
func (m *Metrics) RecordFrameSent(ctx context.Context) {
	m.FramesSent.Add(ctx, 1)
}

// RecordFrameDropped records one outbound frame discarded for the given
// reason.
func (m *Metrics) RecordFrameDropped(ctx context.Context, reason string) {
	m.FramesDropped.Add(ctx, 1,
		metric.WithAttributes(Attr("reason", reason)),
	)
}

// RecordMessage records one inbound message with its dispatch tag
// ("audio", "text", "unknown" or "empty").
func (m *Metrics) RecordMessage(ctx context.Context, tag string) {
	m.MessagesReceived.Add(ctx, 1,
		metric.WithAttributes(Attr("tag", tag)),
	)
}

// RecordChunkScheduled records one chunk placed on the timeline and its lead
// over the output clock.
func (m *Metrics) RecordChunkScheduled(ctx context.Context, lead time.Duration) {
	m.ChunksScheduled.Add(ctx, 1)
	m.ScheduledLead.Record(ctx, lead.Seconds())
}

// RecordStateChange records a session transition into state.
func (m *Metrics) RecordStateChange(ctx context.Context, state string) {
	m.StateChanges.Add(ctx, 1,
		metric.WithAttributes(Attr("state", state)),
	)
}

// RecordCaptureLevel publishes the current microphone level.
func (m *Metrics) RecordCaptureLevel(ctx context.Context, level float64) {
	m.CaptureLevel.Record(ctx, level)
}
