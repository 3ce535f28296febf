package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/photofx/photofx/internal/config"
	errwrap "github.com/photofx/photofx/internal/errors"
	"github.com/photofx/photofx/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Run a self-health check to verify the application can start successfully.",
	Run: func(cmd *cobra.Command, args []string) {
		observability.CLILogger.Info("Running health check...")

		// Check 1: Version info available
		if versionInfo.Version == "" {
			observability.CLILogger.Error("❌ FAIL: Version information missing")
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		observability.CLILogger.Debug("Version check passed", zap.String("version", versionInfo.Version))
		observability.CLILogger.Info("✅ Version information available")

		// Check 2: Logger initialized
		if observability.CLILogger == nil {
			// Can't log if logger is nil, so use stderr
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		observability.CLILogger.Info("✅ Logger initialized")

		// Check 3: Configuration loads and validates
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			observability.CLILogger.Error("❌ FAIL: Configuration invalid", zap.Error(err))
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		observability.CLILogger.Info("✅ Configuration valid",
			zap.String("ratelimit_backend", cfg.RateLimit.Backend))

		// Check 4: Generation dependencies. Missing credentials only warn since
		// the server still starts and answers with configuration errors.
		if cfg.Gateway.APIKey == "" {
			observability.CLILogger.Warn("⚠️  AI gateway api key not set; generation requests will fail")
		} else {
			observability.CLILogger.Info("✅ AI gateway api key set")
		}
		if cfg.Backend.JWTSecret == "" && (cfg.Backend.URL == "" || cfg.Backend.AnonKey == "") {
			observability.CLILogger.Warn("⚠️  Session backend not configured; generation requests will be rejected")
		} else {
			observability.CLILogger.Info("✅ Session verification configured")
		}

		// Check 5: Shared rate limit store reachable
		if cfg.RateLimit.Backend == config.BackendRedis {
			backend, err := openSharedRateLimitStore(cmd.Context(), cfg)
			if err != nil {
				observability.CLILogger.Error("❌ FAIL: Rate limit store unreachable", zap.Error(err))
				ExitWithCode(observability.CLILogger, foundry.ExitExternalServiceUnavailable, "Rate limit store unreachable", err)
				return
			}
			_ = backend.close()
			observability.CLILogger.Info("✅ Redis rate limit store reachable")
		}

		// Overall status
		observability.CLILogger.Info("")
		observability.CLILogger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
