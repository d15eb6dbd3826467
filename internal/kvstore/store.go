// Package kvstore provides the shared key-value store backing the request
// admission layer: rate-limit counters and idempotency records. Every stateful
// operation is a single atomic primitive; callers never compose a
// read-compute-write sequence across round trips.
//
// The Redis implementation is correct across service instances. The memory
// implementation is for single-instance deployments and tests only.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the contract both admission components depend on.
// Implementations must be safe for concurrent use.
type Store interface {
	// Increment atomically increments the counter for key, creating it with
	// count=1 and a lifetime of window when absent or expired. It returns the
	// post-increment count and the time at which the counter expires.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)

	// SetIfAbsent atomically stores value under key with the given TTL if and
	// only if the key does not already exist. Returns whether the value was set.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set unconditionally stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close stops background goroutines and releases resources.
	Close() error
}
