package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/photofx/photofx/internal/observability"
)

// HTTP metric names.
const (
	HTTPRequestsTotal     = "http_requests_total"
	HTTPRequestDuration   = "http_request_duration_ms"
	HTTPRequestSizeBytes  = "http_request_size_bytes"
	HTTPResponseSizeBytes = "http_response_size_bytes"
	HTTPErrorsTotal       = "http_errors_total"
)

const unknownEndpoint = "/unknown"

// knownEndpoints folds concrete paths into the label used for metrics.
var knownEndpoints = map[string]string{
	"/":                                 "/",
	"/health":                           "/health/*",
	"/health/live":                      "/health/*",
	"/health/ready":                     "/health/*",
	"/health/startup":                   "/health/*",
	"/version":                          "/version",
	"/metrics":                          "/metrics",
	"/admin/signal":                     "/admin/signal",
	"/generate-background":              "/generate-background",
	"/functions/v1/generate-background": "/generate-background",
}

type statusRecorder struct {
	http.ResponseWriter
	status       int
	wroteHeader  bool
	bytesWritten int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// getEndpointPattern maps a request onto a bounded set of endpoint labels.
// Both generation paths share one label.
func getEndpointPattern(r *http.Request) string {
	if endpoint, ok := knownEndpoints[r.URL.Path]; ok {
		return endpoint
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unknownEndpoint
}

func errorClass(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status >= 500:
		return "server_error"
	default:
		return "client_error"
	}
}

// RequestMetrics emits per-request counters, durations and sizes, then logs
// the completed request. Probe and scrape traffic is logged at debug.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		requestSize := r.ContentLength
		if requestSize < 0 {
			requestSize = 0
		}

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		endpoint := getEndpointPattern(r)
		status := strconv.Itoa(rec.status)
		labels := map[string]string{
			"method":   r.Method,
			"endpoint": endpoint,
			"status":   status,
		}
		sizeLabels := map[string]string{
			"method":   r.Method,
			"endpoint": endpoint,
		}

		telemetry := observability.TelemetrySystem
		_ = telemetry.Counter(HTTPRequestsTotal, 1, labels)
		_ = telemetry.Histogram(HTTPRequestDuration, duration, labels)
		_ = telemetry.Gauge(HTTPRequestSizeBytes, float64(requestSize), sizeLabels)
		_ = telemetry.Gauge(HTTPResponseSizeBytes, float64(rec.bytesWritten), sizeLabels)

		if rec.status >= 400 {
			_ = telemetry.Counter(HTTPErrorsTotal, 1, map[string]string{
				"method":     r.Method,
				"endpoint":   endpoint,
				"status":     status,
				"error_type": errorClass(rec.status),
			})
		}

		logger := observability.ServerLogger
		if logger == nil {
			return
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("endpoint", endpoint),
			zap.Int("status", rec.status),
			zap.Duration("duration", duration),
			zap.Int64("request_size", requestSize),
			zap.Int64("response_size", rec.bytesWritten),
			zap.String("request_id", GetRequestID(r.Context())),
		}
		switch endpoint {
		case "/health/*", "/metrics":
			logger.Debug("HTTP request completed", fields...)
		default:
			logger.Info("HTTP request completed", fields...)
		}
	})
}
