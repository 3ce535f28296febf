package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	errwrap "github.com/photofx/photofx/internal/errors"
	"github.com/photofx/photofx/internal/gateway"
	"github.com/photofx/photofx/internal/observability"
	"github.com/photofx/photofx/internal/server"
	"github.com/photofx/photofx/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// identityHealthChecker validates app identity metadata
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (i identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case i.binaryName == "":
		return errwrap.NewConfigInvalidError("app identity missing binary name")
	case i.envPrefix == "":
		return errwrap.NewConfigInvalidError("app identity missing env prefix")
	case i.configName == "":
		return errwrap.NewConfigInvalidError("app identity missing config name")
	}
	return nil
}

// gatewayHealthChecker reports whether generation can reach the AI gateway.
type gatewayHealthChecker struct {
	client *gateway.Client
}

func (g gatewayHealthChecker) CheckHealth(ctx context.Context) error {
	if g.client == nil || !g.client.Configured() {
		return errwrap.NewConfigInvalidError("AI gateway api key not configured")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-read and validate the config file (restart to apply)

Serves POST /generate-background (also under /functions/v1/) behind session
checks and a per-client rate limit, plus health, version and metrics routes.
The server will cleanly shut down the HTTP server and flush logs on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get app identity for telemetry namespace
		identity := GetAppIdentity()
		namespace := identity.TelemetryNamespace()

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			observability.CLILogger.Error("Invalid configuration", zap.Error(err))
			return err
		}

		// Initialize server logger with namespace
		logLevel := cfg.Logging.Level
		if verbose {
			logLevel = "debug"
		}
		observability.InitServerLoggerWithOptions(identity.BinaryName, observability.ServerLoggerOptions{
			Level:     logLevel,
			Profile:   cfg.Logging.Profile,
			Namespace: namespace,
		})

		metricsPort := cfg.Metrics.Port
		if metricsPort == 0 {
			metricsPort = 9090
		}

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(identity.BinaryName, metricsPort, namespace); err != nil {
				observability.ServerLogger.Error("Failed to initialize metrics",
					zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
			metricsPort = observability.GetMetricsPort()
		} else {
			_ = observability.DisableMetrics()
			observability.ServerLogger.Info("Metrics disabled by configuration")
		}

		observability.ServerLogger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Int("metrics_port", metricsPort))

		// Rate limit store lives for the whole server run
		storeCtx, stopStore := context.WithCancel(context.Background())
		backend, err := openRateLimitBackend(storeCtx, cfg)
		if err != nil {
			stopStore()
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "rate limit store initialization failed")
		}

		verifier, verifierKind, err := newVerifier(cfg)
		if err != nil {
			stopStore()
			_ = backend.close()
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "session verifier initialization failed")
		}
		gw := newGatewayClient(cfg)
		limiter := newLimiter(backend.store, cfg)

		observability.ServerLogger.Info("Generation proxy configured",
			zap.String("ratelimit_backend", cfg.RateLimit.Backend),
			zap.Int("ratelimit_max_requests", limiter.MaxRequests),
			zap.Duration("ratelimit_window", limiter.Window),
			zap.String("session_verifier", verifierKind),
			zap.String("gateway_model", gw.Model),
			zap.Bool("gateway_configured", gw.Configured()))

		// Initialize health manager
		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		}
		hm.RegisterChecker("app_identity", identityHealthChecker{
			binaryName: identity.BinaryName,
			envPrefix:  identity.EnvPrefix,
			configName: identity.ConfigName,
		})
		hm.RegisterChecker("gateway", gatewayHealthChecker{client: gw})
		if backend.redis != nil {
			hm.RegisterChecker("ratelimit_store", backend.redis)
		}

		// Create server
		srv := server.New(cfg.Server.Host, cfg.Server.Port,
			server.WithGenerateHandler(handlers.NewGenerateHandler(verifier, limiter, gw)),
			server.WithCORS(corsConfig(cfg)),
			server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
		)

		// Set app identity for handlers
		handlers.SetAppIdentity(identity)
		handlers.SetServiceInfo(handlers.ServiceInfo{
			Model:             gw.Model,
			GatewayConfigured: gw.Configured(),
			SessionVerifier:   verifierKind,
			RateLimitBackend:  cfg.RateLimit.Backend,
			RateLimitMax:      limiter.MaxRequests,
			RateLimitWindow:   limiter.Window.String(),
		})

		// Get shutdown timeout from config
		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			if err := observability.ShutdownMetrics(); err != nil {
				observability.ServerLogger.Warn("Metrics exporter stop returned error", zap.Error(err))
			}
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
					zap.Error(err))
			}
			return nil
		})

		// Handler 2: Release the rate limit store
		signals.OnShutdown(func(ctx context.Context) error {
			stopStore()
			if err := backend.close(); err != nil {
				observability.ServerLogger.Warn("Rate limit store close returned error", zap.Error(err))
			}
			return nil
		})

		// Handler 3: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Register config reload handler (SIGHUP)
		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: attempting config reload")

			// Attempt to reload configuration
			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); ok {
					observability.ServerLogger.Info("No config file found - using defaults and environment variables")
					return nil
				}
				observability.ServerLogger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			// Running components keep their settings; the new file is only validated.
			if _, err := loadConfig(ctx); err != nil {
				observability.ServerLogger.Error("Reloaded configuration is invalid", zap.Error(err))
				return err
			}

			observability.ServerLogger.Info("Configuration reloaded successfully; restart to apply rate limit and gateway changes",
				zap.String("file", viper.ConfigFileUsed()))
			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit",
				zap.Error(err))
		}

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			observability.ServerLogger.Info("Starting HTTP server...",
				zap.String("host", cfg.Server.Host),
				zap.Int("port", cfg.Server.Port))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
