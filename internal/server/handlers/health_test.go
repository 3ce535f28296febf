package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/photofx/photofx/internal/errors"
)

func failing(msg string) HealthChecker {
	return CheckerFunc(func(context.Context) error { return errors.New(msg) })
}

func passing() HealthChecker {
	return CheckerFunc(func(context.Context) error { return nil })
}

func TestHealthHandlerHealthy(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("gateway", passing())
	manager.RegisterChecker("ratelimit_store", passing())

	rec := httptest.NewRecorder()
	manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, map[string]string{"gateway": "healthy", "ratelimit_store": "healthy"}, resp.Checks)
}

func TestHealthHandlerUnhealthyStoreReturnsEnvelope(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("gateway", passing())
	manager.RegisterChecker("ratelimit_store", failing("dial tcp 127.0.0.1:6379: connection refused"))

	rec := httptest.NewRecorder()
	manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, apperrors.CodeServiceUnavailable, resp.Error.Code)

	checks, ok := resp.Error.Details["checks"].(map[string]interface{})
	require.True(t, ok, "expected checks in error details: %v", resp.Error.Details)
	assert.Equal(t, "unhealthy", checks["ratelimit_store"])
	assert.Equal(t, "healthy", checks["gateway"])
}

func TestDetermineOverallStatus(t *testing.T) {
	manager := NewHealthManager("dev")

	assert.Equal(t, "healthy", manager.determineOverallStatus(nil))
	assert.Equal(t, "degraded", manager.determineOverallStatus(map[string]string{"gateway": "healthy", "ratelimit_store": "timeout"}))
	assert.Equal(t, "unhealthy", manager.determineOverallStatus(map[string]string{"gateway": "unhealthy", "ratelimit_store": "timeout"}))
}

func TestRunHealthChecksMarksTimeoutAfterDeadline(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("gateway", passing())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, map[string]string{"gateway": "timeout"}, manager.runHealthChecks(ctx))
}

func TestProbes(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("gateway", failing("api key not configured"))

	probes := map[string]struct {
		handler http.HandlerFunc
		status  int
	}{
		"live":    {manager.LivenessHandler, http.StatusOK},
		"ready":   {manager.ReadinessHandler, http.StatusServiceUnavailable},
		"startup": {manager.StartupHandler, http.StatusServiceUnavailable},
	}
	for name, probe := range probes {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			probe.handler(rec, httptest.NewRequest(http.MethodGet, "/health/"+name, nil))
			assert.Equal(t, probe.status, rec.Code)

			if probe.status == http.StatusOK {
				var resp ProbeResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, "healthy", resp.Status)
			}
		})
	}
}

func TestGlobalHandlersWithoutManager(t *testing.T) {
	original := globalHealthManager
	globalHealthManager = nil
	t.Cleanup(func() { globalHealthManager = original })

	rec := httptest.NewRecorder()
	ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
