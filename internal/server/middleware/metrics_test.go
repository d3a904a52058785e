package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/giantswarm/mcp-k8s-guard/internal/instrumentation"
)

func TestStatusRecorder(t *testing.T) {
	t.Run("captures first status", func(t *testing.T) {
		rec := newStatusRecorder(httptest.NewRecorder())
		rec.WriteHeader(http.StatusAccepted)
		rec.WriteHeader(http.StatusBadRequest)
		assert.Equal(t, http.StatusAccepted, rec.status)
	})

	t.Run("defaults to 200 on write", func(t *testing.T) {
		rec := newStatusRecorder(httptest.NewRecorder())
		_, err := rec.Write([]byte("hello"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.status)
		assert.True(t, rec.wroteHeader)
	})

	t.Run("flush and unwrap", func(t *testing.T) {
		inner := httptest.NewRecorder()
		rec := newStatusRecorder(inner)
		rec.Flush()
		assert.True(t, inner.Flushed)
		assert.Equal(t, inner, rec.Unwrap())
	})
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/mcp", "/mcp"},
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/healthz/detailed", "/healthz/detailed"},
		{"/sse", "/sse"},
		{"/message", "/message"},
		{"/mcp/abc123xyz890def456", "/mcp/:session"},
		{"/mcp/session-id-12345", "/mcp/:session"},
		{"/message/session_id_12345", "/message/:session"},
		{"/mcp/short", "/mcp/short"},
		{"/api/resources/550e8400-e29b-41d4-a716-446655440000", "/api/resources/:uuid"},
		{"/api/items/12345", "/api/items/:id"},
		{"/api/items/12345/details", "/api/items/:id/details"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizePath(tt.input))
		})
	}
}

func TestHTTPMetrics_NilProvider(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	})

	rec := httptest.NewRecorder()
	HTTPMetrics(nil)(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
}

func TestHTTPMetrics_RecordsRequests(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{
		Enabled:         true,
		TracingExporter: instrumentation.ExporterNone,
	}, instrumentation.WithMetricReader(reader))
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "not found", http.StatusNotFound)
	})
	wrapped := HTTPMetrics(provider)(handler)

	for _, path := range []string{"/healthz", "/mcp/abc123xyz890def456", "/mcp/zyx987abc654fed321"} {
		wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "http_requests_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				path, _ := dp.Attributes.Value("path")
				status, _ := dp.Attributes.Value("status")
				counts[path.AsString()+" "+status.AsString()] += dp.Value
			}
		}
	}

	assert.Equal(t, map[string]int64{
		"/healthz 200":      1,
		"/mcp/:session 404": 2,
	}, counts)
}
