package mcp

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Request outcomes recorded on toolcatalog.rpc.requests
const (
	OutcomeOK           = "ok"
	OutcomeError        = "error"
	OutcomeNotification = "notification"
)

// unknownMethod is the method attribute of requests for methods the server
// does not implement
const unknownMethod = "unknown"

func methodLabel(method string) string {
	switch method {
	case MethodInitialize, MethodPing, MethodToolsList, MethodToolsCall,
		NotificationInitialized, NotificationCancelled, NotificationToolsListChanged:
		return method
	default:
		return unknownMethod
	}
}

// Metrics records protocol activity as OpenTelemetry instruments.
// A nil *Metrics records nothing.
type Metrics struct {
	requests       metric.Int64Counter
	duration       metric.Float64Histogram
	dispatched     metric.Int64Counter
	activeSessions metric.Int64UpDownCounter
}

// NewMetrics creates the protocol instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	requests, err := meter.Int64Counter("toolcatalog.rpc.requests",
		metric.WithDescription("Number of JSON-RPC messages handled"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("toolcatalog.rpc.duration",
		metric.WithDescription("Time spent handling a JSON-RPC message in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	dispatched, err := meter.Int64Counter("toolcatalog.tools.dispatched",
		metric.WithDescription("Number of acknowledged tools/call requests"),
	)
	if err != nil {
		return nil, err
	}

	active, err := meter.Int64UpDownCounter("toolcatalog.sessions.active",
		metric.WithDescription("Number of open protocol sessions"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requests:       requests,
		duration:       duration,
		dispatched:     dispatched,
		activeSessions: active,
	}, nil
}

func (m *Metrics) recordRequest(ctx context.Context, method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	method = methodLabel(method)
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("method", method)))
}

func (m *Metrics) recordDispatch(ctx context.Context, tool string) {
	if m == nil {
		return
	}
	m.dispatched.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
}

func (m *Metrics) sessionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

func (m *Metrics) sessionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
}
