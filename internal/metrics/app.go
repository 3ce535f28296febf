package metrics

import (
	"time"

	"github.com/photofx/photofx/internal/observability"
)

// Application-level metrics following Prometheus conventions
var (
	// Generation proxy metrics
	GenerationsTotal   = "app_generations_total"
	GenerationDuration = "app_generation_duration_ms"

	// Rate limiter metrics
	RateLimitDecisionsTotal = "app_ratelimit_decisions_total"

	// Scratch reveal metrics
	ScratchRevealsTotal = "app_scratch_reveals_total"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
)

// RecordGeneration records the outcome of one generation proxy request.
// outcome is "success" or the error code that ended the request.
func RecordGeneration(outcome string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		GenerationsTotal,
		1,
		map[string]string{
			"outcome": outcome,
		},
	)

	_ = observability.TelemetrySystem.Histogram(
		GenerationDuration,
		duration,
		map[string]string{
			"outcome": outcome,
		},
	)
}

// RecordRateLimitDecision records an allowed/rejected/error rate limit decision.
func RecordRateLimitDecision(result string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitDecisionsTotal,
			1,
			map[string]string{
				"result": result,
			},
		)
	}
}

// RecordScratchReveal records a scratch card crossing its reveal threshold.
func RecordScratchReveal() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ScratchRevealsTotal,
			1,
			nil,
		)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}
