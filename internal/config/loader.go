// Package config loads photofx configuration with viper. Values come from
// built-in defaults, an optional YAML file, an optional .env file and the
// environment, decoded into Config with mapstructure.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// Rate limit backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// envAliases are the unprefixed variable names accepted alongside the
// prefixed ones, matching the hosted functions runtime.
var envAliases = map[string][]string{
	"backend.url":        {"SUPABASE_URL"},
	"backend.anon_key":   {"SUPABASE_ANON_KEY"},
	"backend.jwt_secret": {"SUPABASE_JWT_SECRET"},
	"gateway.api_key":    {"LOVABLE_API_KEY"},
	"redis.url":          {"REDIS_URL"},
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)

	// Managed backend
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.anon_key", "")
	v.SetDefault("backend.jwt_secret", "")
	v.SetDefault("backend.timeout", "10s")

	// AI gateway
	v.SetDefault("gateway.base_url", "https://ai.gateway.lovable.dev/v1")
	v.SetDefault("gateway.api_key", "")
	v.SetDefault("gateway.model", "google/gemini-2.5-flash-image-preview")
	v.SetDefault("gateway.timeout", "0s")
	v.SetDefault("gateway.requests_per_second", 0)
	v.SetDefault("gateway.burst", 1)

	// Rate limiting
	v.SetDefault("ratelimit.backend", BackendMemory)
	v.SetDefault("ratelimit.max_requests", 10)
	v.SetDefault("ratelimit.window", "60s")
	v.SetDefault("ratelimit.key_prefix", "photofx:ratelimit")
	v.SetDefault("ratelimit.janitor_interval", "5m")

	// Redis
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", "5s")

	// CORS
	v.SetDefault("cors.allow_origin", "*")
	v.SetDefault("cors.allow_headers", []string{"authorization", "x-client-info", "apikey", "content-type"})
	v.SetDefault("cors.allow_methods", []string{"POST", "OPTIONS"})
}

// BindEnv maps {PREFIX}_{SECTION}_{KEY} variables onto config keys and
// registers the unprefixed aliases.
func BindEnv(v *viper.Viper, prefix string) error {
	prefix = strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(prefix)), "_")
	if prefix != "" {
		v.SetEnvPrefix(prefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, aliases := range envAliases {
		names := make([]string, 0, len(aliases)+1)
		if prefix != "" {
			names = append(names, prefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
		}
		names = append(names, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// Load decodes v (the global viper when nil) into a Config, applying any
// runtime overrides on top, validates it and stores it for GetConfig.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, v *viper.Viper, runtimeOverrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if v == nil {
		v = viper.GetViper()
	}

	merged := v.AllSettings()
	for _, override := range runtimeOverrides {
		mergeMaps(merged, override)
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(merged); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

func (c *Config) normalize() {
	c.RateLimit.Backend = strings.ToLower(strings.TrimSpace(c.RateLimit.Backend))
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = BackendMemory
	}
	c.Backend.URL = strings.TrimRight(strings.TrimSpace(c.Backend.URL), "/")
	c.Backend.AnonKey = strings.TrimSpace(c.Backend.AnonKey)
	c.Gateway.APIKey = strings.TrimSpace(c.Gateway.APIKey)
	c.Gateway.BaseURL = strings.TrimSpace(c.Gateway.BaseURL)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.RateLimit.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("ratelimit.backend must be %q or %q, got %q", BackendMemory, BackendRedis, c.RateLimit.Backend)
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("ratelimit.max_requests must be positive, got %d", c.RateLimit.MaxRequests)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("ratelimit.window must be positive, got %s", c.RateLimit.Window)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port out of range: %d", c.Metrics.Port)
	}
	if c.Gateway.RequestsPerSecond < 0 {
		return fmt.Errorf("gateway.requests_per_second must not be negative")
	}
	return nil
}

// Options builds go-redis options, preferring URL over the discrete fields.
func (r RedisConfig) Options() (*redis.Options, error) {
	if url := strings.TrimSpace(r.URL); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return opts, nil
	}

	addr := strings.TrimSpace(r.Addr)
	if addr == "" {
		return nil, errors.New("redis.addr or redis.url is required")
	}
	return &redis.Options{
		Addr:        addr,
		Username:    r.Username,
		Password:    r.Password,
		DB:          r.DB,
		DialTimeout: r.DialTimeout,
	}, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// mergeMaps deep-merges src into dst. Keys are lower-cased to match viper.
func mergeMaps(dst, src map[string]any) {
	for key, value := range src {
		key = strings.ToLower(key)
		if srcMap, ok := value.(map[string]any); ok {
			if dstMap, ok := dst[key].(map[string]any); ok {
				mergeMaps(dstMap, srcMap)
				continue
			}
			copied := map[string]any{}
			mergeMaps(copied, srcMap)
			dst[key] = copied
			continue
		}
		dst[key] = value
	}
}
