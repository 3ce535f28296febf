package metrics

import (
	"testing"
	"time"

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

func TestRecordGenerationEmitsCounterAndHistogram(t *testing.T) {
	collector := setupTelemetry(t)

	RecordGeneration("success", 25*time.Millisecond)

	assert.Greater(t, collector.CountMetricsByName(GenerationsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(GenerationDuration), 0)
}

func TestRecordRateLimitDecision(t *testing.T) {
	collector := setupTelemetry(t)

	RecordRateLimitDecision("rejected")

	assert.Greater(t, collector.CountMetricsByName(RateLimitDecisionsTotal), 0)
}

func TestRecordErrorAndPanic(t *testing.T) {
	collector := setupTelemetry(t)

	RecordError("RATE_LIMITED", 429)
	RecordErrorByEndpoint("/generate-background", "RATE_LIMITED")
	RecordPanic()

	assert.Greater(t, collector.CountMetricsByName(ErrorsTotalName), 0)
	assert.Greater(t, collector.CountMetricsByName(ErrorsByEndpointName), 0)
	assert.Greater(t, collector.CountMetricsByName(PanicsTotalName), 0)
}

func TestEmittersAreNoopsWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	RecordGeneration("success", time.Millisecond)
	RecordRateLimitDecision("allowed")
	RecordScratchReveal()
	RecordHealthCheck("redis", true, time.Millisecond)
}

func TestEndpointLabel(t *testing.T) {
	tests := map[string]string{
		"/generate-background":               "/generate-background",
		"/functions/v1/generate-background/": "/generate-background",
		"/health/ready":                      "/health/*",
		"/health":                            "/health/*",
		"/version":                           "/version",
		"/":                                  "/",
		"/wp-admin/login.php":                "other",
	}
	for path, want := range tests {
		assert.Equal(t, want, EndpointLabel(path), path)
	}
}
