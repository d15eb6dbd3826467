// Package idempotency guards non-idempotent HTTP endpoints against duplicate
// execution. Requests carrying an Idempotency-Key header execute the handler
// at most once per (user, path, token): the first request takes a short-lived
// lock in the shared store, its response is persisted, and duplicates either
// replay the stored response or are rejected with 409 while the original is
// still in flight.
//
// Unlike rate limiting, store failures here fail closed: double execution of
// a mutating action is a correctness violation, so a request that cannot be
// deduplicated is rejected with 503 rather than passed through.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"grantdesk/internal/kvstore"
	"grantdesk/internal/models"
)

// Record states stored under a cache key. A key holds either an in-flight
// lock or a completed response; the transition is a plain overwrite, so no
// second key is needed.
const (
	stateLocked = "locked"
	stateCached = "cached"
)

// record is the JSON document stored per idempotency key.
type record struct {
	State     string              `json:"state"`
	Status    int                 `json:"status,omitempty"`
	Headers   map[string][]string `json:"headers,omitempty"`
	Body      []byte              `json:"body,omitempty"`
	BodyHash  string              `json:"body_hash,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// Coordinator implements the locking and replay protocol on the shared store.
type Coordinator struct {
	store       kvstore.Store
	lockTTL     time.Duration
	responseTTL time.Duration
}

// NewCoordinator creates a Coordinator using the configured TTLs. The lock
// TTL bounds how long a crashed handler can block retries; the response TTL
// bounds how long a completed response is replayed.
func NewCoordinator(store kvstore.Store, cfg models.IdempotencyConfig) *Coordinator {
	return &Coordinator{
		store:       store,
		lockTTL:     cfg.LockTTL,
		responseTTL: cfg.ResponseTTL,
	}
}

// computeKey derives the store key for a (user, path, token) triple. The
// inputs are hashed so tokens never appear verbatim in the store and key
// length stays bounded.
func computeKey(user, path, token string) string {
	h := sha256.New()
	h.Write([]byte(user))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(token))
	return "idempotency:" + hex.EncodeToString(h.Sum(nil))
}

func hashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// lookup fetches and decodes the record for key. A missing or expired key
// returns (nil, nil).
func (c *Coordinator) lookup(ctx context.Context, key string) (*record, error) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", key, err)
	}
	return &rec, nil
}

// tryAcquireLock attempts the single atomic set-if-absent that guarantees
// at-most-one in-flight execution per key.
func (c *Coordinator) tryAcquireLock(ctx context.Context, key, bodyHash string) (bool, error) {
	data, err := json.Marshal(record{
		State:     stateLocked,
		BodyHash:  bodyHash,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return false, err
	}
	return c.store.SetIfAbsent(ctx, key, data, c.lockTTL)
}

// cacheResponse overwrites the lock with the completed response, which also
// extends the key lifetime to the response TTL.
func (c *Coordinator) cacheResponse(ctx context.Context, key, bodyHash string, status int, headers map[string][]string, body []byte) error {
	data, err := json.Marshal(record{
		State:     stateCached,
		Status:    status,
		Headers:   headers,
		Body:      body,
		BodyHash:  bodyHash,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return c.store.Set(ctx, key, data, c.responseTTL)
}

// release deletes the lock so a legitimate retry can re-execute. Used when
// the handler fails before producing a cacheable response.
func (c *Coordinator) release(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}
