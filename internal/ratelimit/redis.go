package ratelimit

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed fixed_window.lua
var fixedWindowScript string

// DefaultKeyPrefix namespaces rate limit hashes in Redis.
const DefaultKeyPrefix = "photofx:ratelimit"

// RedisStore shares rate limit records between instances through Redis.
//
// Each identifier is a hash {count, reset} whose TTL is one window. The window transition runs
// in a Lua script so concurrent instances never double count.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	script *redis.Script
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix overrides the key namespace.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if p := strings.Trim(strings.TrimSpace(prefix), ":"); p != "" {
			s.prefix = p
		}
	}
}

// NewRedisStore returns a store backed by client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: DefaultKeyPrefix,
		script: redis.NewScript(fixedWindowScript),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping verifies the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return errors.New("redis store is not initialized")
	}
	return s.client.Ping(ctx).Err()
}

// CheckHealth satisfies the server health checker interface.
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	return s.Ping(ctx)
}

// Take implements Store.
func (s *RedisStore) Take(ctx context.Context, identifier string, max int, window time.Duration, now time.Time) (Record, bool, error) {
	if s == nil || s.client == nil {
		return Record{}, false, errors.New("redis store is not initialized")
	}
	if identifier == "" {
		return Record{}, false, ErrIdentifierRequired
	}

	result, err := s.script.Run(ctx, s.client, []string{s.key(identifier)},
		max,
		window.Milliseconds(),
		now.UnixMilli(),
	).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("run rate limit script: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return Record{}, false, errors.New("invalid rate limit script response")
	}

	counted := toInt64(values[0]) == 1
	rec := Record{
		Identifier: identifier,
		Count:      int(toInt64(values[1])),
		ResetAt:    time.UnixMilli(toInt64(values[2])).UTC(),
	}
	return rec, counted, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, identifier string) (*Record, error) {
	if identifier == "" {
		return nil, ErrIdentifierRequired
	}

	fields, err := s.client.HGetAll(ctx, s.key(identifier)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch rate limit: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	rec := recordFromHash(identifier, fields)
	return &rec, nil
}

// List implements Store. It scans the key namespace, so it is meant for admin use.
func (s *RedisStore) List(ctx context.Context) ([]Record, error) {
	var (
		cursor uint64
		out    []Record
	)
	match := s.prefix + ":*"

	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan rate limits: %w", err)
		}

		for _, key := range keys {
			fields, err := s.client.HGetAll(ctx, key).Result()
			if err != nil {
				return nil, fmt.Errorf("fetch rate limit: %w", err)
			}
			if len(fields) == 0 {
				continue
			}
			out = append(out, recordFromHash(strings.TrimPrefix(key, s.prefix+":"), fields))
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out, nil
}

// Reset implements Store.
func (s *RedisStore) Reset(ctx context.Context, identifier string) error {
	if identifier == "" {
		return ErrIdentifierRequired
	}
	if err := s.client.Del(ctx, s.key(identifier)).Err(); err != nil {
		return fmt.Errorf("reset rate limit: %w", err)
	}
	return nil
}

func (s *RedisStore) key(identifier string) string {
	return s.prefix + ":" + identifier
}

func recordFromHash(identifier string, fields map[string]string) Record {
	count, _ := strconv.Atoi(fields["count"])
	reset, _ := strconv.ParseFloat(fields["reset"], 64)
	return Record{
		Identifier: identifier,
		Count:      count,
		ResetAt:    time.UnixMilli(int64(reset)).UTC(),
	}
}

func toInt64(val interface{}) int64 {
	switch v := val.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseFloat(v, 64)
		return int64(n)
	default:
		return 0
	}
}
