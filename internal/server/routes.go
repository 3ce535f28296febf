package server

import (
	"context"
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/photofx/photofx/internal/appid"
	"github.com/photofx/photofx/internal/observability"
	"github.com/photofx/photofx/internal/server/handlers"
	servermw "github.com/photofx/photofx/internal/server/middleware"
)

// Paths of the generation endpoint. The second mirrors the hosted functions layout.
var generatePaths = []string{
	"/generate-background",
	"/functions/v1/generate-background",
}

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.registerGenerateRoutes()

	// Standard health endpoints
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	// Version endpoint
	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)

	// Admin signal endpoint (optional, requires PHOTOFX_ADMIN_TOKEN)
	s.registerAdminEndpoint()
}

// registerGenerateRoutes mounts the generation endpoint behind the CORS policy.
func (s *Server) registerGenerateRoutes() {
	if s.generate == nil {
		return
	}

	s.router.Group(func(r chi.Router) {
		r.Use(servermw.CORS(s.cors))
		for _, path := range generatePaths {
			r.Post(path, s.generate.ServeHTTP)
			r.Options(path, s.generate.ServeHTTP)
		}
	})
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	envPrefix := appid.EnvPrefix(context.Background())

	adminToken := os.Getenv(envPrefix + "ADMIN_TOKEN")
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + envPrefix + "ADMIN_TOKEN set)")
		}
		return
	}

	// Create HTTP signal handler with bearer token auth and rate limiting
	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})

	// Register admin endpoint
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
