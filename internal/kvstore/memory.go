package kvstore

import (
	"context"
	"sync"
	"time"
)

// counterEntry holds one fixed-window counter.
type counterEntry struct {
	count   int64
	resetAt time.Time
}

// valueEntry holds one opaque value with its expiry.
type valueEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store. A background goroutine periodically
// evicts expired entries. Counts and locks held here are invisible to other
// service instances, so this backend is only correct for single-instance
// deployments.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counterEntry
	values   map[string]valueEntry
	done     chan struct{}
	closed   bool
}

// NewMemoryStore creates a memory store and starts its eviction goroutine.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	m := &MemoryStore{
		counters: make(map[string]*counterEntry),
		values:   make(map[string]valueEntry),
		done:     make(chan struct{}),
	}
	go m.cleanup(cleanupInterval)
	return m
}

func (m *MemoryStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.counters[key]
	if !ok || !now.Before(e.resetAt) {
		e = &counterEntry{count: 0, resetAt: now.Add(window)}
		m.counters[key] = e
	}
	e.count++

	return e.count, e.resetAt, nil
}

func (m *MemoryStore) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.values[key]; ok && now.Before(e.expiresAt) {
		return false, nil
	}

	m.values[key] = valueEntry{data: append([]byte(nil), value...), expiresAt: now.Add(ttl)}
	return true, nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.values[key]
	if !ok || !now.Before(e.expiresAt) {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.data...), nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = valueEntry{data: append([]byte(nil), value...), expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	delete(m.counters, key)
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops the background eviction goroutine.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// cleanup periodically evicts expired counters and values.
func (m *MemoryStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictExpired()
		}
	}
}

func (m *MemoryStore) evictExpired() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.counters {
		if !now.Before(e.resetAt) {
			delete(m.counters, key)
		}
	}
	for key, e := range m.values {
		if !now.Before(e.expiresAt) {
			delete(m.values, key)
		}
	}
}
