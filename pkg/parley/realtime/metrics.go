package realtime

import (
	"context"
	"strconv"
	"time"

	"github.com/tsarna/parley/pkg/parley/o11y"
)

// Metrics holds the instruments recorded by the listener and its
// connections. A nil *Metrics records nothing.
type Metrics struct {
	activeConnections  o11y.Gauge
	totalConnections   o11y.Counter
	connectionDuration o11y.Histogram
	authRejections     o11y.Counter

	framesReceived o11y.Counter
	framesSent     o11y.Counter
	decodeErrors   o11y.Counter
	frameSize      o11y.Histogram

	requestsTotal   o11y.Counter
	requestDuration o11y.Histogram
	requestErrors   o11y.Counter

	pingsSent     o11y.Counter
	writeTimeouts o11y.Counter
}

// NewMetrics returns nil when provider is nil.
func NewMetrics(provider o11y.MetricsProvider) *Metrics {
	if provider == nil {
		return nil
	}

	return &Metrics{
		activeConnections:  provider.Gauge("parley_ws_active_connections"),
		totalConnections:   provider.Counter("parley_ws_connections_total"),
		connectionDuration: provider.Histogram("parley_ws_connection_duration_seconds"),
		authRejections:     provider.Counter("parley_ws_auth_rejections_total"),

		framesReceived: provider.Counter("parley_ws_frames_received_total"),
		framesSent:     provider.Counter("parley_ws_frames_sent_total"),
		decodeErrors:   provider.Counter("parley_ws_decode_errors_total"),
		frameSize:      provider.Histogram("parley_ws_frame_size_bytes"),

		requestsTotal:   provider.Counter("parley_ws_requests_total"),
		requestDuration: provider.Histogram("parley_ws_request_duration_seconds"),
		requestErrors:   provider.Counter("parley_ws_request_errors_total"),

		pingsSent:     provider.Counter("parley_ws_pings_sent_total"),
		writeTimeouts: provider.Counter("parley_ws_write_timeouts_total"),
	}
}

func channelLabel(channel Channel) o11y.Label {
	return o11y.Label{Key: "channel", Value: string(channel)}
}

func (m *Metrics) RecordConnectionStart(ctx context.Context, channel Channel) {
	if m == nil {
		return
	}
	m.totalConnections.Add(ctx, 1, channelLabel(channel))
}

func (m *Metrics) RecordConnectionActive(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.activeConnections.Set(ctx, float64(count))
}

func (m *Metrics) RecordConnectionEnd(ctx context.Context, channel Channel, duration time.Duration) {
	if m == nil {
		return
	}
	m.connectionDuration.Record(ctx, duration.Seconds(), channelLabel(channel))
}

// RecordAuthRejected counts connections closed before a session existed.
func (m *Metrics) RecordAuthRejected(ctx context.Context, channel Channel, reason string) {
	if m == nil {
		return
	}
	m.authRejections.Add(ctx, 1, channelLabel(channel), o11y.Label{Key: "reason", Value: reason})
}

func (m *Metrics) RecordFrameReceived(ctx context.Context, channel Channel, sizeBytes int) {
	if m == nil {
		return
	}
	m.framesReceived.Add(ctx, 1, channelLabel(channel))
	m.frameSize.Record(ctx, float64(sizeBytes), o11y.Label{Key: "direction", Value: "received"})
}

func (m *Metrics) RecordFrameSent(ctx context.Context, channel Channel, sizeBytes int) {
	if m == nil {
		return
	}
	m.framesSent.Add(ctx, 1, channelLabel(channel))
	m.frameSize.Record(ctx, float64(sizeBytes), o11y.Label{Key: "direction", Value: "sent"})
}

func (m *Metrics) RecordDecodeError(ctx context.Context, channel Channel) {
	if m == nil {
		return
	}
	m.decodeErrors.Add(ctx, 1, channelLabel(channel))
}

// RecordRequest counts a command and returns a function that records its
// duration and, for a non-200 status, an error.
//
//	done := metrics.RecordRequest(ctx, channel, "new_message")
//	defer done(r.Status)
func (m *Metrics) RecordRequest(ctx context.Context, channel Channel, kind string) func(status int) {
	if m == nil {
		return func(int) {}
	}

	start := time.Now()
	labels := []o11y.Label{channelLabel(channel), {Key: "type", Value: kind}}
	m.requestsTotal.Add(ctx, 1, labels...)

	return func(status int) {
		m.requestDuration.Record(ctx, time.Since(start).Seconds(), labels...)
		if status != 200 {
			m.requestErrors.Add(ctx, 1, append(labels, o11y.Label{Key: "status", Value: strconv.Itoa(status)})...)
		}
	}
}

func (m *Metrics) RecordPingSent(ctx context.Context) {
	if m == nil {
		return
	}
	m.pingsSent.Add(ctx, 1)
}

func (m *Metrics) RecordWriteTimeout(ctx context.Context) {
	if m == nil {
		return
	}
	m.writeTimeouts.Add(ctx, 1)
}
