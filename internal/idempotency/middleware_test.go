package idempotency

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantdesk/internal/kvstore"
	"grantdesk/internal/models"
)

// failingStore simulates an unreachable shared store.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, errStoreDown
}
func (failingStore) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return false, errStoreDown
}
func (failingStore) Get(ctx context.Context, key string) ([]byte, error) { return nil, errStoreDown }
func (failingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errStoreDown
}
func (failingStore) Delete(ctx context.Context, key string) error { return errStoreDown }
func (failingStore) Ping(ctx context.Context) error               { return errStoreDown }
func (failingStore) Close() error                                 { return nil }

func testConfig() models.IdempotencyConfig {
	return models.IdempotencyConfig{
		Enabled:     true,
		LockTTL:     30 * time.Second,
		ResponseTTL: 24 * time.Hour,
	}
}

func newTestHandler(t *testing.T, store kvstore.Store, handler http.Handler) (http.Handler, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	counted := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler.ServeHTTP(w, r)
	})
	c := NewCoordinator(store, testConfig())
	return c.Middleware()(counted), &calls
}

func createdHandler() http.Handler {
	var seq atomic.Int64
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Location", "/api/v1/applications/app-1")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":"app-%d"}`, seq.Add(1))
	})
}

func post(h http.Handler, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/applications", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Idempotency-Key", token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBypassWithoutToken(t *testing.T) {
	store := kvstore.NewMemoryStore(time.Minute)
	defer store.Close()
	h, calls := newTestHandler(t, store, createdHandler())

	first := post(h, "", `{"a":1}`)
	second := post(h, "", `{"a":1}`)

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, int64(2), calls.Load(), "untokened requests are never deduplicated")
	assert.NotEqual(t, first.Body.String(), second.Body.String())
}

func TestBypassSafeMethods(t *testing.T) {
	store := kvstore.NewMemoryStore(time.Minute)
	defer store.Close()
	h, calls := newTestHandler(t, store, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/programs", nil)
		req.Header.Set("Idempotency-Key", "abcd1234")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, int64(2), calls.Load(), "GET bypasses even with a token")
}

func TestInvalidTokenRejectedWithoutState(t *testing.T) {
	store := kvstore.NewMemoryStore(time.Minute)
	defer store.Close()
	h, calls := newTestHandler(t, store, createdHandler())

	for _, token := range []string{"short", "has space in it", strings.Repeat("x", 129), "bad!char"} {
		rec := post(h, token, `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "token %q", token)
		assert.Contains(t, rec.Body.String(), models.ErrorCodeIdempotencyKeyInvalid)
	}
	assert.Equal(t, int64(0), calls.Load())

	// No store state was created for a malformed token.
	_, err := store.Get(context.Background(), computeKey("anonymous", "/api/v1/applications", "short"))
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestReplaySameResponse(t *testing.T) {
	store := kvstore.NewMemoryStore(time.Minute)
	defer store.Close()
	h, calls := newTestHandler(t, store, createdHandler())

	first := post(h, "token-abc-123", `{"company":"aoyama"}`)
	require.Equal(t, http.StatusCreated, first.Code)

	second := post(h, "token-abc-123", `{"company":"aoyama"}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String(), "replay is byte-for-byte")
	assert.Equal(t, first.Header().Get("Location"), second.Header().Get("Location"))
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Replay"))
	assert.Equal(t, int64(1), calls.Load(), "handler runs exactly once")
}

func TestReplayIncludesClientErrors(t *testing.T) {
	store := kvstore.NewMemoryStore(time.Minute)
	defer store.Close()
	h, calls := newTestHandler(t, store, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error":"validation"}`)
	}))

	first := post(h, "token-abc-123", `{}`)
	second := post(h, "token-abc-123", `{}`)

	assert.Equal(t, http.StatusUnprocessableEntity, first.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int64(1), calls.Load(), "a 4xx is a final answer and is cached")
}

func TestServerErrorReleasesLock(t *testing.T) {
	store := kvstore.NewMemoryStore(time.Minute)
	defer store.Close()

	var fail atomic.Bool
	fail.Store(true)
	h, calls := newTestHandler(t, store, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := post(h, "token-abc-123", `{}`)
	require.Equal(t, http.StatusInternalServerError, first.Code)

	fail.Store(false)
	second := post(h, "token-abc-123", `{}`)
	assert.Equal(t, http.StatusCreated, second.Code, "retry after a 5xx re-executes")
	assert.Equal(t, int64(2), calls.Load())
}

func TestPanicReleasesLock(t *testing.T) {
	store := kvstore.NewMemoryStore(time.Minute)
	defer store.Close()

	var boom atomic.Bool
	boom.Store(true)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if boom.Load() {
			panic("handler exploded")
		}
		w.WriteHeader(http.StatusCreated)
	})
	h, calls := newTestHandler(t, store, handler)

	require.Panics(t, func() { post(h, "token-abc-123", `{}`) })

	boom.Store(false)
	rec := post(h, "token-abc-123", `{}`)
	assert.Equal(t, http.StatusCreated, rec.Code, "a crashed attempt must not poison retries")
	assert.Equal(t, int64(2), calls.Load())
}

func TestConcurrentDuplicatesExecuteOnce(t *testing.T) {
	store := kvstore.NewMemoryStore(time.Minute)
	defer store.Close()

	release := make(chan struct{})
	h, calls := newTestHandler(t, store, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"app-1"}`)
	}))

	const n = 8
	codes := make([]int, n)
	var started, done sync.WaitGroup
	started.Add(n)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			codes[i] = post(h, "abc12345", `{"company":"aoyama"}`).Code
		}(i)
	}

	started.Wait()
	time.Sleep(50 * time.Millisecond) // let every request hit the lock
	close(release)
	done.Wait()

	var created, conflict int
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflict++
		}
	}
	assert.Equal(t, 1, created, "exactly one request executes")
	assert.Equal(t, n-1, conflict, "the rest are rejected while the original is in flight")
	assert.Equal(t, int64(1), calls.Load())
}

func TestConflictResponseShape(t *testing.T) {
	store := kvstore.NewMemoryStore(time.Minute)
	defer store.Close()

	// Seed a lock directly so the request observes the LOCKED state.
	key := computeKey("anonymous", "/api/v1/applications", "abcd1234")
	c := NewCoordinator(store, testConfig())
	acquired, err := c.tryAcquireLock(context.Background(), key, hashBody([]byte(`{}`)))
	require.NoError(t, err)
	require.True(t, acquired)

	h, calls := newTestHandler(t, store, createdHandler())
	rec := post(h, "abcd1234", `{}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), models.ErrorCodeIdempotencyConflict)
	assert.Equal(t, int64(0), calls.Load())
}

func TestLockExpiryAllowsRetry(t *testing.T) {
	store := kvstore.NewMemoryStore(time.Minute)
	defer store.Close()

	cfg := testConfig()
	cfg.LockTTL = 30 * time.Millisecond
	c := NewCoordinator(store, cfg)

	var calls atomic.Int64
	h := c.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))

	key := computeKey("anonymous", "/api/v1/applications", "abcd1234")
	acquired, err := c.tryAcquireLock(context.Background(), key, hashBody([]byte(`{}`)))
	require.NoError(t, err)
	require.True(t, acquired)

	require.Equal(t, http.StatusConflict, post(h, "abcd1234", `{}`).Code)

	time.Sleep(40 * time.Millisecond)

	assert.Equal(t, http.StatusCreated, post(h, "abcd1234", `{}`).Code,
		"an expired lock is crash recovery, not a permanent block")
	assert.Equal(t, int64(1), calls.Load())
}

func TestTokenReuseWithDifferentBody(t *testing.T) {
	store := kvstore.NewMemoryStore(time.Minute)
	defer store.Close()
	h, calls := newTestHandler(t, store, createdHandler())

	first := post(h, "token-abc-123", `{"company":"aoyama"}`)
	require.Equal(t, http.StatusCreated, first.Code)

	second := post(h, "token-abc-123", `{"company":"shibaura"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, second.Code)
	assert.Contains(t, second.Body.String(), models.ErrorCodeIdempotencyKeyReused)
	assert.Equal(t, int64(1), calls.Load())
}

func TestKeysAreScopedPerUserAndPath(t *testing.T) {
	store := kvstore.NewMemoryStore(time.Minute)
	defer store.Close()
	h, calls := newTestHandler(t, store, createdHandler())

	send := func(path, token string, key *models.APIKey) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", token)
		if key != nil {
			req = req.WithContext(context.WithValue(req.Context(), "api_key", key))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send("/api/v1/applications", "abcd1234", nil)
	sameKey := send("/api/v1/applications", "abcd1234", nil)
	otherUser := send("/api/v1/applications", "abcd1234", &models.APIKey{ID: "key-2"})
	otherPath := send("/api/v1/programs", "abcd1234", nil)

	assert.Equal(t, first.Body.String(), sameKey.Body.String())
	assert.NotEqual(t, first.Body.String(), otherUser.Body.String(), "users do not share records")
	assert.NotEqual(t, first.Body.String(), otherPath.Body.String(), "paths do not share records")
	assert.Equal(t, int64(3), calls.Load())
}

func TestStoreFailureFailsClosed(t *testing.T) {
	h, calls := newTestHandler(t, failingStore{}, createdHandler())

	rec := post(h, "abcd1234", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), models.ErrorCodeServiceUnavailable)
	assert.Equal(t, int64(0), calls.Load(), "a request that cannot be deduplicated never executes")
}

func TestKeygenStrategiesMatchAcceptedFormat(t *testing.T) {
	tokens := []string{
		RandomToken(),
		ContentToken([]byte(`{"company":"aoyama"}`)),
		TimestampToken(),
	}
	for _, token := range tokens {
		assert.Regexp(t, tokenPattern, token)
	}

	assert.Equal(t, ContentToken([]byte("same")), ContentToken([]byte("same")))
	assert.NotEqual(t, ContentToken([]byte("a")), ContentToken([]byte("b")))
	assert.NotEqual(t, RandomToken(), RandomToken())
}
