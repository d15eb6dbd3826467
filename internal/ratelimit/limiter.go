// Package ratelimit provides fixed-window rate limiting for HTTP requests,
// counted in the shared key-value store so quotas hold across service
// instances. Requests are bucketed by a configurable scope (global, client IP,
// authenticated user, or API key), optionally isolated per endpoint, and every
// evaluated response carries standard rate limit headers.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"grantdesk/internal/kvstore"
	"grantdesk/internal/models"
)

// Scope selects the dimension a request is counted under.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeIP     Scope = "ip"
	ScopeUser   Scope = "user"
	ScopeAPIKey Scope = "api-key"
)

// Policy is the quota attached to a route tag.
type Policy struct {
	Limit           int           // Maximum requests per window
	Window          time.Duration // Fixed counting window
	Scope           Scope         // Counting dimension
	IncludeEndpoint bool          // Isolate per method + route template
}

// Info contains rate limit state for populating response headers.
type Info struct {
	Limit      int           // Maximum requests per window
	Remaining  int           // Requests left in the current window
	ResetAt    time.Time     // When the window ends
	RetryAfter time.Duration // How long to wait (meaningful only when denied)
}

// Limiter evaluates requests against policies using the shared store.
// When the store is unreachable it fails open by default: the request is
// admitted after consulting a local token bucket, and a warning is logged.
// An unmetered burst is a capacity risk, not a correctness violation.
type Limiter struct {
	store        kvstore.Store
	apiKeyHeader string
	failOpen     bool
	overrides    map[string]models.RatePolicy
	fallback     *localFallback
}

// Option configures optional Limiter behavior.
type Option func(*Limiter)

// WithOverrides replaces built-in presets for the named route tags.
func WithOverrides(overrides map[string]models.RatePolicy) Option {
	return func(l *Limiter) { l.overrides = overrides }
}

// WithFailClosed rejects requests when the store is unreachable instead of
// admitting them through the local fallback.
func WithFailClosed() Option {
	return func(l *Limiter) { l.failOpen = false }
}

// NewLimiter creates a Limiter counting in the given store. apiKeyHeader names
// the request header consulted for the api-key scope.
func NewLimiter(store kvstore.Store, apiKeyHeader string, opts ...Option) *Limiter {
	l := &Limiter{
		store:        store,
		apiKeyHeader: apiKeyHeader,
		failOpen:     true,
		fallback:     newLocalFallback(5 * time.Minute),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check counts the request under its policy key and decides admission.
// The post-increment count admits iff count <= limit; the increment is a
// single atomic store operation, so concurrent requests for the same key
// never under-count.
func (l *Limiter) Check(ctx context.Context, key string, policy Policy) (bool, Info) {
	count, resetAt, err := l.store.Increment(ctx, key, policy.Window)
	if err != nil {
		return l.checkFallback(ctx, key, policy, err)
	}

	info := Info{
		Limit:     policy.Limit,
		Remaining: remaining(policy.Limit, count),
		ResetAt:   resetAt,
	}

	if count > int64(policy.Limit) {
		info.RetryAfter = time.Until(resetAt)
		return false, info
	}

	return true, info
}

// checkFallback applies the failure policy when the shared store is down.
// Fail-open still consults a per-key local token bucket so a store outage
// does not turn into a fully unmetered burst on this instance.
func (l *Limiter) checkFallback(ctx context.Context, key string, policy Policy, cause error) (bool, Info) {
	info := Info{
		Limit:     policy.Limit,
		Remaining: 0,
		ResetAt:   time.Now().Add(policy.Window),
	}

	if !l.failOpen {
		slog.Warn("rate limit store unreachable, failing closed",
			"key", key,
			"error", cause)
		info.RetryAfter = policy.Window
		return false, info
	}

	allowed := l.fallback.allow(key, policy)
	slog.Warn("rate limit store unreachable, using local fallback",
		"key", key,
		"allowed", allowed,
		"error", cause)

	if allowed {
		info.Remaining = remaining(policy.Limit, 1)
		return true, info
	}
	info.RetryAfter = policy.Window
	return false, info
}

// Close releases fallback resources.
func (l *Limiter) Close() {
	l.fallback.close()
}

func remaining(limit int, count int64) int {
	r := int64(limit) - count
	if r < 0 {
		return 0
	}
	return int(r)
}
