package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/photofx/photofx/internal/config"
	"github.com/photofx/photofx/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display comprehensive environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()

		observability.CLILogger.Info("=== Environment Information ===")
		observability.CLILogger.Info("")

		// Application Info
		identity := GetAppIdentity()
		observability.CLILogger.Info("Application:")
		observability.CLILogger.Info("  Name:       " + identity.BinaryName)
		observability.CLILogger.Info("  Version:    " + versionInfo.Version)
		observability.CLILogger.Info("  Commit:     " + versionInfo.Commit)
		observability.CLILogger.Info("  Built:      " + versionInfo.BuildDate)
		observability.CLILogger.Info("")

		// SSOT Info
		observability.CLILogger.Info("SSOT:")
		observability.CLILogger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		observability.CLILogger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		observability.CLILogger.Info("")

		// Runtime Info
		observability.CLILogger.Info("Runtime:")
		observability.CLILogger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		observability.CLILogger.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		observability.CLILogger.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		observability.CLILogger.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		observability.CLILogger.Info("")

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			observability.CLILogger.Warn("Config load failed", zap.Error(err))
			return
		}

		// Configuration
		observability.CLILogger.Info("Configuration:")
		observability.CLILogger.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		observability.CLILogger.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		observability.CLILogger.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		observability.CLILogger.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		observability.CLILogger.Info(fmt.Sprintf("  Metrics Port:   %d", cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			configFile = "(none)"
		}
		observability.CLILogger.Info("  Config File:    "+configFile, zap.String("config_file", configFile))
		observability.CLILogger.Info("")

		// Session verification
		observability.CLILogger.Info("Sessions:")
		observability.CLILogger.Info("  Backend URL:    "+valueOrUnset(cfg.Backend.URL), zap.String("backend_url", cfg.Backend.URL))
		observability.CLILogger.Info("  Anon Key:       " + secretState(cfg.Backend.AnonKey))
		observability.CLILogger.Info("  JWT Secret:     " + secretState(cfg.Backend.JWTSecret))
		observability.CLILogger.Info("")

		// AI gateway
		observability.CLILogger.Info("Gateway:")
		observability.CLILogger.Info("  Base URL:       " + cfg.Gateway.BaseURL)
		observability.CLILogger.Info("  Model:          " + cfg.Gateway.Model)
		observability.CLILogger.Info("  API Key:        " + secretState(cfg.Gateway.APIKey))
		if cfg.Gateway.RequestsPerSecond > 0 {
			observability.CLILogger.Info(fmt.Sprintf("  Pacing:         %.2f req/s (burst %d)", cfg.Gateway.RequestsPerSecond, cfg.Gateway.Burst))
		} else {
			observability.CLILogger.Info("  Pacing:         off")
		}
		observability.CLILogger.Info("")

		// Rate limiting
		observability.CLILogger.Info("Rate Limit:")
		observability.CLILogger.Info("  Backend:        "+cfg.RateLimit.Backend, zap.String("ratelimit_backend", cfg.RateLimit.Backend))
		observability.CLILogger.Info(fmt.Sprintf("  Budget:         %d per %s", cfg.RateLimit.MaxRequests, cfg.RateLimit.Window))
		if cfg.RateLimit.Backend == config.BackendRedis {
			addr := cfg.Redis.Addr
			if strings.TrimSpace(cfg.Redis.URL) != "" {
				addr = "(from redis.url)"
			}
			observability.CLILogger.Info("  Redis:          " + addr)
			observability.CLILogger.Info("  Key Prefix:     " + cfg.RateLimit.KeyPrefix)
		}
		observability.CLILogger.Info("")

		observability.CLILogger.Info("=== End Environment Information ===")
	},
}

func valueOrUnset(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(not set)"
	}
	return value
}

func secretState(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(not set)"
	}
	return "(set)"
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
