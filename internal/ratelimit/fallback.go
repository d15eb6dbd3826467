package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// fallbackEntry tracks one local token bucket and when it was last used.
type fallbackEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localFallback meters requests on this instance alone while the shared store
// is unreachable. Buckets are approximate stand-ins for the fixed-window
// counters: refill rate limit/window, burst of limit.
type localFallback struct {
	mu      sync.Mutex
	entries map[string]*fallbackEntry
	done    chan struct{}
	closed  bool
}

func newLocalFallback(cleanupInterval time.Duration) *localFallback {
	f := &localFallback{
		entries: make(map[string]*fallbackEntry),
		done:    make(chan struct{}),
	}
	go f.cleanup(cleanupInterval)
	return f
}

func (f *localFallback) allow(key string, policy Policy) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[key]
	if !ok {
		perSecond := float64(policy.Limit) / policy.Window.Seconds()
		e = &fallbackEntry{limiter: rate.NewLimiter(rate.Limit(perSecond), policy.Limit)}
		f.entries[key] = e
	}
	e.lastSeen = time.Now()

	return e.limiter.Allow()
}

func (f *localFallback) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
}

// cleanup evicts buckets idle for more than two cleanup intervals.
func (f *localFallback) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-2 * interval)
			f.mu.Lock()
			for key, e := range f.entries {
				if e.lastSeen.Before(cutoff) {
					delete(f.entries, key)
				}
			}
			f.mu.Unlock()
		}
	}
}
