package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/hopstack/toolcatalog/jsonrpc"
)

func newTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, mp
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

func sumWhere(t *testing.T, m *metricdata.Metrics, key, value string) int64 {
	t.Helper()

	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", m.Data)

	var total int64
	for _, dp := range sum.DataPoints {
		if key == "" {
			total += dp.Value
			continue
		}
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestMetrics(t *testing.T) {
	reader, mp := newTestMeter()
	metrics, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)

	s := newTestServer(t, WithMetrics(metrics))
	ctx := context.Background()

	session := s.NewSession(ctx)
	other := s.NewSession(ctx)

	call(t, s, session, MethodToolsList, "", 1)
	call(t, s, session, MethodInitialize, initializeParams, 2)
	s.Handle(ctx, session, jsonrpc.NewRequest(NotificationInitialized, nil, nil))
	call(t, s, session, MethodToolsCall, `{"name": "chaos.create_field"}`, 3)
	call(t, s, session, MethodToolsCall, `{"name": "chaos.create_field", "arguments": {}}`, 4)
	call(t, s, session, MethodToolsCall, `{"name": "level_save"}`, 5)
	call(t, s, session, MethodToolsCall, `{"name": "missing.tool"}`, 6)

	s.CloseSession(ctx, other)
	s.CloseSession(ctx, other)

	rm := collectMetrics(t, reader)

	requests := findMetric(rm, "toolcatalog.rpc.requests")
	assert.Equal(t, int64(7), sumWhere(t, requests, "", ""))
	assert.Equal(t, int64(2), sumWhere(t, requests, "outcome", OutcomeError))
	assert.Equal(t, int64(1), sumWhere(t, requests, "outcome", OutcomeNotification))
	assert.Equal(t, int64(4), sumWhere(t, requests, "method", MethodToolsCall))

	dispatched := findMetric(rm, "toolcatalog.tools.dispatched")
	assert.Equal(t, int64(2), sumWhere(t, dispatched, "tool", "chaos.create_field"))
	assert.Equal(t, int64(1), sumWhere(t, dispatched, "tool", "level_save"))
	assert.Equal(t, int64(0), sumWhere(t, dispatched, "tool", "missing.tool"))

	active := findMetric(rm, "toolcatalog.sessions.active")
	assert.Equal(t, int64(1), sumWhere(t, active, "", ""))

	duration := findMetric(rm, "toolcatalog.rpc.duration")
	require.NotNil(t, duration)
	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(7), count)
}

func TestMetrics_HTTPSessions(t *testing.T) {
	reader, mp := newTestMeter()
	metrics, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)

	h := NewHTTPHandler(newTestServer(t, WithMetrics(metrics)))
	initializeOverHTTP(t, h)
	initializeOverHTTP(t, h)
	post(t, h, "", `{"jsonrpc": "2.0", "method": "initialize", "params": [], "id": 1}`)

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(2), sumWhere(t, findMetric(rm, "toolcatalog.sessions.active"), "", ""))

	h.Close()
	rm = collectMetrics(t, reader)
	assert.Equal(t, int64(0), sumWhere(t, findMetric(rm, "toolcatalog.sessions.active"), "", ""))
}

func TestMetrics_UnknownMethodsShareALabel(t *testing.T) {
	reader, mp := newTestMeter()
	metrics, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)

	s := newTestServer(t, WithMetrics(metrics))
	session := initialized(t, s)
	call(t, s, session, "resources/list", "", 1)
	call(t, s, session, "x-custom/1f3a", "", 2)
	s.Handle(context.Background(), session, jsonrpc.NewRequest("notifications/progress", nil, nil))

	requests := findMetric(collectMetrics(t, reader), "toolcatalog.rpc.requests")
	assert.Equal(t, int64(3), sumWhere(t, requests, "method", unknownMethod))
	assert.Equal(t, int64(0), sumWhere(t, requests, "method", "resources/list"))
	assert.Equal(t, int64(0), sumWhere(t, requests, "method", "x-custom/1f3a"))
	assert.Equal(t, int64(1), sumWhere(t, requests, "method", MethodInitialize))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.recordRequest(ctx, MethodPing, OutcomeOK, 0)
	m.recordDispatch(ctx, "level_save")
	m.sessionOpened(ctx)
	m.sessionClosed(ctx)

	data, err := json.Marshal(PingResult{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}
