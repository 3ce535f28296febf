package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photofx/photofx/internal/config"
	"github.com/photofx/photofx/internal/output"
	"github.com/photofx/photofx/internal/ratelimit"
	"github.com/photofx/photofx/internal/session"
)

func testConfig() *config.Config {
	return &config.Config{
		RateLimit: config.RateLimitConfig{
			Backend:     config.BackendMemory,
			MaxRequests: 2,
			Window:      time.Minute,
			KeyPrefix:   "test:rl",
		},
		Gateway: config.GatewayConfig{
			BaseURL: "https://gateway.example.com/v1",
			APIKey:  "key",
			Model:   "test/model",
			Timeout: 5 * time.Second,
		},
	}
}

func TestOpenSharedRateLimitStoreRequiresRedis(t *testing.T) {
	_, err := openSharedRateLimitStore(context.Background(), testConfig())
	require.ErrorIs(t, err, errInProcessState)
}

func TestOpenSharedRateLimitStoreRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RateLimit.Backend = config.BackendRedis
	cfg.Redis.Addr = mr.Addr()

	ctx := context.Background()
	backend, err := openSharedRateLimitStore(ctx, cfg)
	require.NoError(t, err)
	defer backend.close() // nolint:errcheck

	limiter := newLimiter(backend.store, cfg)
	for i := 0; i < 2; i++ {
		decision, err := limiter.Check(ctx, "203.0.113.9")
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	}
	decision, err := limiter.Check(ctx, "203.0.113.9")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	records, err := limiter.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].Count)
}

func TestOpenSharedRateLimitStoreUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RateLimit.Backend = config.BackendRedis
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.DialTimeout = 200 * time.Millisecond
	mr.Close()

	_, err := openSharedRateLimitStore(context.Background(), cfg)
	require.Error(t, err)
}

func TestOpenRateLimitBackendMemory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := openRateLimitBackend(ctx, testConfig())
	require.NoError(t, err)
	assert.NotNil(t, backend.memory)
	assert.Nil(t, backend.redis)
	require.NoError(t, backend.close())
}

func TestNewVerifier(t *testing.T) {
	cfg := testConfig()
	cfg.Backend.URL = "https://project.example.co"
	cfg.Backend.AnonKey = "anon"
	cfg.Backend.Timeout = 3 * time.Second

	v, kind, err := newVerifier(cfg)
	require.NoError(t, err)
	assert.Equal(t, "backend", kind)
	backend, ok := v.(*session.BackendVerifier)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, backend.Timeout)

	cfg.Backend.JWTSecret = "signing-secret"
	v, kind, err = newVerifier(cfg)
	require.NoError(t, err)
	assert.Equal(t, "jwt", kind)
	_, ok = v.(*session.JWTVerifier)
	assert.True(t, ok)
}

func TestNewGatewayClient(t *testing.T) {
	cfg := testConfig()
	cfg.Gateway.RequestsPerSecond = 2
	cfg.Gateway.Burst = 0

	client := newGatewayClient(cfg)
	assert.True(t, client.Configured())
	assert.Equal(t, "test/model", client.Model)
	assert.Equal(t, 5*time.Second, client.Timeout)
	require.NotNil(t, client.Limiter)
	assert.Equal(t, 1, client.Limiter.Burst())
}

func TestCORSConfigFromConfig(t *testing.T) {
	cfg := testConfig()
	cors := corsConfig(cfg)
	assert.Equal(t, "*", cors.AllowOrigin)
	assert.Contains(t, cors.AllowHeaders, "authorization")

	cfg.CORS.AllowOrigin = "https://app.example.com"
	cfg.CORS.AllowMethods = []string{"POST"}
	cors = corsConfig(cfg)
	assert.Equal(t, "https://app.example.com", cors.AllowOrigin)
	assert.Equal(t, []string{"POST"}, cors.AllowMethods)
}

func TestFilterRecords(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []ratelimit.Record{
		{Identifier: "10.0.0.2", Count: 1, ResetAt: now.Add(time.Minute)},
		{Identifier: "192.168.1.1", Count: 4, ResetAt: now.Add(time.Minute)},
		{Identifier: "10.0.0.1", Count: 9, ResetAt: now.Add(-time.Minute)},
	}

	all := filterRecords(records, "", false, now)
	require.Len(t, all, 3)
	assert.Equal(t, "10.0.0.1", all[0].Identifier)

	prefixed := filterRecords(records, "10.", false, now)
	assert.Len(t, prefixed, 2)

	active := filterRecords(records, "10.", true, now)
	require.Len(t, active, 1)
	assert.Equal(t, "10.0.0.2", active[0].Identifier)
}

func TestWriteRateLimitResetResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRateLimitResetResult(output.FormatTable, &buf, []string{"a", "b"}, 0, true))
	assert.Equal(t, "Would reset 2 client(s)\n", buf.String())

	buf.Reset()
	require.NoError(t, writeRateLimitResetResult(output.FormatTable, &buf, []string{"a", "b"}, 2, false))
	assert.Equal(t, "Reset 2/2 client(s)\n", buf.String())

	buf.Reset()
	require.NoError(t, writeRateLimitResetResult(output.FormatJSON, &buf, []string{"a"}, 1, false))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.EqualValues(t, 1, decoded["deleted"])
	assert.Equal(t, false, decoded["dry_run"])
}

func TestWriteVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeVersion(&buf, versionReport{Name: "photofx", Version: "1.2.3"}, false, false))
	assert.Equal(t, "photofx 1.2.3\n", buf.String())

	buf.Reset()
	require.NoError(t, writeVersion(&buf, versionReport{Name: "photofx", Version: "1.2.3", Go: "go1.24"}, false, true))
	assert.Contains(t, buf.String(), `"go": "go1.24"`)
}
