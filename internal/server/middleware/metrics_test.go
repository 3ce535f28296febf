package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photofx/photofx/internal/observability"
)

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: collector,
	})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })

	return collector
}

func serveWithMetrics(status int, body string, req *http.Request) *httptest.ResponseRecorder {
	handler := RequestID(RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRequestMetricsEmitsRequestSeries(t *testing.T) {
	collector := setupTelemetry(t)

	req := httptest.NewRequest(http.MethodPost, "/generate-background", strings.NewReader(`{"prompt":"a beach"}`))
	rec := serveWithMetrics(http.StatusOK, `{"imageUrl":"data:image/png;base64,AA=="}`, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	for _, name := range []string{HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestSizeBytes, HTTPResponseSizeBytes} {
		assert.Greater(t, collector.CountMetricsByName(name), 0, "expected %s", name)
	}
	assert.Zero(t, collector.CountMetricsByName(HTTPErrorsTotal))
}

func TestRequestMetricsCountsErrors(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusBadGateway} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			collector := setupTelemetry(t)

			req := httptest.NewRequest(http.MethodPost, "/generate-background", nil)
			rec := serveWithMetrics(status, `{"error":"nope"}`, req)

			assert.Equal(t, status, rec.Code)
			assert.Greater(t, collector.CountMetricsByName(HTTPErrorsTotal), 0)
		})
	}
}

func TestRequestMetricsPassesThroughWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := serveWithMetrics(http.StatusOK, "ok", req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestStatusRecorderKeepsFirstStatus(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}

	_, _ = rec.Write([]byte("body"))
	rec.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusOK, rec.status)
	assert.Equal(t, int64(4), rec.bytesWritten)
}

func TestGetEndpointPattern(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/health", "/health/*"},
		{"/health/live", "/health/*"},
		{"/health/ready", "/health/*"},
		{"/health/startup", "/health/*"},
		{"/version", "/version"},
		{"/metrics", "/metrics"},
		{"/generate-background", "/generate-background"},
		{"/functions/v1/generate-background", "/generate-background"},
		{"/functions/v1/other", unknownEndpoint},
		{"/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.expected, getEndpointPattern(req))
		})
	}
}

func TestErrorClass(t *testing.T) {
	assert.Equal(t, "client_error", errorClass(http.StatusBadRequest))
	assert.Equal(t, "rate_limited", errorClass(http.StatusTooManyRequests))
	assert.Equal(t, "server_error", errorClass(http.StatusServiceUnavailable))
}
