// Package ratelimit throttles write traffic to the script API.
//
// Limiter is the contract; MemoryLimiter is the in-process token bucket
// used by a single kantoku instance and NoopLimiter disables limiting.
package ratelimit

import "context"

// Limiter decides whether a request identified by key should be allowed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow returns true if the request should proceed. An error means the
	// limiter itself failed; the middleware lets such requests through.
	Allow(ctx context.Context, key string) (bool, error)

	// Close releases resources such as cleanup goroutines.
	Close() error
}

// NoopLimiter permits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Allow always returns true.
func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
