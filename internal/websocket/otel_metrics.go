package websocket

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "tabviz.websocket"

// OTelMetrics holds the hub instruments. Every method is safe on a nil
// receiver so the hub runs unchanged before InitOTelMetrics.
type OTelMetrics struct {
	connections        metric.Int64Counter
	active             metric.Int64UpDownCounter
	connectionDuration metric.Float64Histogram
	connectionErrors   metric.Int64Counter
	messages           metric.Int64Counter
	messageBytes       metric.Int64Counter
	queueDepth         metric.Int64Gauge
	dropped            metric.Int64Counter
	broadcasts         metric.Int64Counter
	clients            metric.Int64Gauge
}

// NewOTelMetrics registers the hub instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter(meterName)
	var errs []error
	keep := func(err error) { errs = append(errs, err) }

	counter := func(name, desc string, opts ...metric.Int64CounterOption) metric.Int64Counter {
		c, err := meter.Int64Counter(name, append(opts, metric.WithDescription(desc))...)
		keep(err)
		return c
	}
	gauge := func(name, desc string) metric.Int64Gauge {
		g, err := meter.Int64Gauge(name, metric.WithDescription(desc))
		keep(err)
		return g
	}

	m := &OTelMetrics{
		connections:      counter("websocket_connections_total", "WebSocket connections accepted"),
		connectionErrors: counter("websocket_connection_errors_total", "WebSocket read and write failures"),
		messages:         counter("websocket_messages_total", "WebSocket frames by direction"),
		messageBytes:     counter("websocket_message_bytes_total", "WebSocket payload bytes by direction", metric.WithUnit("By")),
		dropped:          counter("websocket_dropped_messages_total", "Events dropped before reaching a client"),
		broadcasts:       counter("websocket_broadcast_operations_total", "Broadcast fan-outs by outcome"),
		queueDepth:       gauge("websocket_queue_depth", "Events waiting in the broadcast queue"),
		clients:          gauge("websocket_client_count", "Connected WebSocket clients"),
	}

	var err error
	m.active, err = meter.Int64UpDownCounter("websocket_connections_active",
		metric.WithDescription("Open WebSocket connections"))
	keep(err)
	m.connectionDuration, err = meter.Float64Histogram("websocket_connection_duration_seconds",
		metric.WithDescription("Lifetime of closed WebSocket connections"), metric.WithUnit("s"))
	keep(err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *OTelMetrics) RecordConnection(ctx context.Context, clients int) {
	if m == nil {
		return
	}
	m.connections.Add(ctx, 1)
	m.active.Add(ctx, 1)
	m.clients.Record(ctx, int64(clients))
}

func (m *OTelMetrics) RecordDisconnection(ctx context.Context, lifetime time.Duration, reason string, clients int) {
	if m == nil {
		return
	}
	m.active.Add(ctx, -1)
	m.connectionDuration.Record(ctx, lifetime.Seconds(),
		metric.WithAttributes(attribute.String("disconnect_reason", reason)))
	m.clients.Record(ctx, int64(clients))
}

func (m *OTelMetrics) RecordConnectionError(ctx context.Context, errorType string) {
	if m == nil {
		return
	}
	m.connectionErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("error_type", errorType)))
}

// RecordMessage counts one frame; direction is "inbound" or "outbound"
func (m *OTelMetrics) RecordMessage(ctx context.Context, direction string, size int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("direction", direction))
	m.messages.Add(ctx, 1, attrs)
	m.messageBytes.Add(ctx, int64(size), attrs)
}

func (m *OTelMetrics) RecordQueueDepth(ctx context.Context, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Record(ctx, int64(depth))
}

func (m *OTelMetrics) RecordDroppedMessage(ctx context.Context, eventType, reason string) {
	if m == nil {
		return
	}
	m.dropped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("drop_reason", reason),
	))
}

// RecordBroadcast counts one fan-out as delivered, partial (some clients
// were too slow and got disconnected) or no_clients.
func (m *OTelMetrics) RecordBroadcast(ctx context.Context, clients, slow int) {
	if m == nil {
		return
	}
	outcome := "delivered"
	switch {
	case clients == 0:
		outcome = "no_clients"
	case slow > 0:
		outcome = "partial"
	}
	m.broadcasts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

var globalOTelMetrics atomic.Pointer[OTelMetrics]

// InitOTelMetrics registers the hub instruments. Call it after the meter
// provider is installed.
func InitOTelMetrics() error {
	m, err := NewOTelMetrics()
	if err != nil {
		return err
	}
	globalOTelMetrics.Store(m)
	return nil
}

// GetOTelMetrics returns the hub instruments, nil before InitOTelMetrics
func GetOTelMetrics() *OTelMetrics {
	return globalOTelMetrics.Load()
}
