package ratelimit

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/photofx/photofx/internal/metrics"
	"github.com/photofx/photofx/internal/observability"
)

const (
	// DefaultMaxRequests is the number of requests accepted per identifier per window.
	DefaultMaxRequests = 10
	// DefaultWindow is the length of a rate limit window.
	DefaultWindow = 60 * time.Second
)

// ErrIdentifierRequired is returned by stores when the identifier is blank.
var ErrIdentifierRequired = errors.New("identifier is required")

// Record is the stored counter for one identifier.
type Record struct {
	Identifier string    `json:"identifier"`
	Count      int       `json:"count"`
	ResetAt    time.Time `json:"reset_at"`
}

// Expired reports whether the record's window has elapsed at now.
func (r Record) Expired(now time.Time) bool {
	return now.After(r.ResetAt)
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed bool
	// RetryAfter is the number of whole seconds until the window resets. Zero when allowed.
	RetryAfter int
	Count      int
	ResetAt    time.Time
}

// Store persists rate limit records.
//
// Take applies one request to the identifier's window: it starts a new window when none exists
// or the stored one has expired, increments the count while it is below max, and otherwise
// leaves the record untouched. The boolean result reports whether the request was counted.
type Store interface {
	Take(ctx context.Context, identifier string, max int, window time.Duration, now time.Time) (Record, bool, error)
	Get(ctx context.Context, identifier string) (*Record, error)
	List(ctx context.Context) ([]Record, error)
	Reset(ctx context.Context, identifier string) error
}

// Limiter enforces a fixed window request budget per client identifier.
type Limiter struct {
	Store       Store
	MaxRequests int
	Window      time.Duration
	Clock       func() time.Time
}

// New returns a limiter with defaults applied for non-positive values.
func New(store Store, maxRequests int, window time.Duration) *Limiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		Store:       store,
		MaxRequests: maxRequests,
		Window:      window,
	}
}

// Check counts a request for identifier and reports whether it is allowed.
//
// Store failures fail open: the request is allowed and the error is returned for logging.
func (l *Limiter) Check(ctx context.Context, identifier string) (Decision, error) {
	if l == nil || l.Store == nil {
		return Decision{Allowed: true}, nil
	}

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		identifier = "unknown"
	}

	now := l.now()
	record, counted, err := l.Store.Take(ctx, identifier, l.maxRequests(), l.window(), now)
	if err != nil {
		metrics.RecordRateLimitDecision("error")
		if observability.ServerLogger != nil {
			observability.ServerLogger.Warn("Rate limit store unavailable, allowing request",
				zap.String("identifier", identifier),
				zap.Error(err))
		}
		return Decision{Allowed: true}, err
	}

	if counted {
		metrics.RecordRateLimitDecision("allowed")
		return Decision{Allowed: true, Count: record.Count, ResetAt: record.ResetAt}, nil
	}

	metrics.RecordRateLimitDecision("rejected")
	return Decision{
		Allowed:    false,
		RetryAfter: retryAfterSeconds(record.ResetAt.Sub(now)),
		Count:      record.Count,
		ResetAt:    record.ResetAt,
	}, nil
}

// Get returns the stored record for identifier, or nil when none exists.
func (l *Limiter) Get(ctx context.Context, identifier string) (*Record, error) {
	if l == nil || l.Store == nil {
		return nil, nil
	}
	return l.Store.Get(ctx, strings.TrimSpace(identifier))
}

// List returns every stored record.
func (l *Limiter) List(ctx context.Context) ([]Record, error) {
	if l == nil || l.Store == nil {
		return nil, nil
	}
	return l.Store.List(ctx)
}

// Reset clears the record for identifier.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	if l == nil || l.Store == nil {
		return nil
	}
	return l.Store.Reset(ctx, strings.TrimSpace(identifier))
}

func (l *Limiter) now() time.Time {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}

func (l *Limiter) maxRequests() int {
	if l.MaxRequests <= 0 {
		return DefaultMaxRequests
	}
	return l.MaxRequests
}

func (l *Limiter) window() time.Duration {
	if l.Window <= 0 {
		return DefaultWindow
	}
	return l.Window
}

func retryAfterSeconds(wait time.Duration) int {
	if wait <= 0 {
		return 1
	}
	return int(math.Ceil(wait.Seconds()))
}
