package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/photofx/photofx/internal/config"
	"github.com/photofx/photofx/internal/gateway"
	"github.com/photofx/photofx/internal/observability"
	"github.com/photofx/photofx/internal/ratelimit"
	servermw "github.com/photofx/photofx/internal/server/middleware"
	"github.com/photofx/photofx/internal/session"
)

// errInProcessState is returned by rate limit commands when state lives in
// the serving process only.
var errInProcessState = errors.New("rate limit state is held in-process by the memory backend; set ratelimit.backend=redis to inspect it")

// rateLimitBackend is a constructed store plus its optional Redis handle.
type rateLimitBackend struct {
	store  ratelimit.Store
	redis  *ratelimit.RedisStore
	memory *ratelimit.MemoryStore
	close  func() error
}

// openRateLimitBackend builds the configured store. The memory janitor runs
// until ctx is done.
func openRateLimitBackend(ctx context.Context, cfg *config.Config) (*rateLimitBackend, error) {
	switch cfg.RateLimit.Backend {
	case config.BackendRedis:
		opts, err := cfg.Redis.Options()
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(opts)
		store := ratelimit.NewRedisStore(client, ratelimit.WithKeyPrefix(cfg.RateLimit.KeyPrefix))
		return &rateLimitBackend{store: store, redis: store, close: client.Close}, nil
	default:
		store := ratelimit.NewMemoryStore()
		store.StartJanitor(ctx, cfg.RateLimit.JanitorInterval)
		return &rateLimitBackend{store: store, memory: store, close: func() error { return nil }}, nil
	}
}

// openSharedRateLimitStore is used by offline commands that need state shared
// with running servers.
func openSharedRateLimitStore(ctx context.Context, cfg *config.Config) (*rateLimitBackend, error) {
	if cfg.RateLimit.Backend != config.BackendRedis {
		return nil, errInProcessState
	}
	backend, err := openRateLimitBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := backend.redis.Ping(ctx); err != nil {
		_ = backend.close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return backend, nil
}

func newLimiter(store ratelimit.Store, cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(store, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
}

// newVerifier prefers local JWT verification when a signing secret is set.
func newVerifier(cfg *config.Config) (session.Verifier, string, error) {
	if secret := strings.TrimSpace(cfg.Backend.JWTSecret); secret != "" {
		v, err := session.NewJWTVerifier(secret)
		if err != nil {
			return nil, "", err
		}
		return v, "jwt", nil
	}

	if cfg.Backend.URL == "" || cfg.Backend.AnonKey == "" {
		if observability.ServerLogger != nil {
			observability.ServerLogger.Warn("Session backend not configured; every generation request will be rejected",
				zap.Bool("url_set", cfg.Backend.URL != ""),
				zap.Bool("anon_key_set", cfg.Backend.AnonKey != ""))
		}
	}

	v := session.NewBackendVerifier(cfg.Backend.URL, cfg.Backend.AnonKey)
	if cfg.Backend.Timeout > 0 {
		v.Timeout = cfg.Backend.Timeout
	}
	return v, "backend", nil
}

func newGatewayClient(cfg *config.Config) *gateway.Client {
	return gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.APIKey,
		gateway.WithModel(cfg.Gateway.Model),
		gateway.WithTimeout(cfg.Gateway.Timeout),
		gateway.WithRateLimit(cfg.Gateway.RequestsPerSecond, cfg.Gateway.Burst),
	)
}

func corsConfig(cfg *config.Config) servermw.CORSConfig {
	cors := servermw.DefaultCORSConfig()
	if origin := strings.TrimSpace(cfg.CORS.AllowOrigin); origin != "" {
		cors.AllowOrigin = origin
	}
	if len(cfg.CORS.AllowHeaders) > 0 {
		cors.AllowHeaders = cfg.CORS.AllowHeaders
	}
	if len(cfg.CORS.AllowMethods) > 0 {
		cors.AllowMethods = cfg.CORS.AllowMethods
	}
	return cors
}
