package idempotency

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"grantdesk/internal/models"
)

// tokenPattern is the accepted idempotency token format. Anything else is a
// client error rejected before any store state is created.
var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)

// extractToken reads the client token, preferring Idempotency-Key over the
// X- prefixed variant. Empty means the request opted out of deduplication.
func extractToken(r *http.Request) string {
	if token := r.Header.Get("Idempotency-Key"); token != "" {
		return token
	}
	return r.Header.Get("X-Idempotency-Key")
}

// userIdentity namespaces keys per caller so one user's token can never
// replay another user's response.
func userIdentity(r *http.Request) string {
	if apiKey, ok := r.Context().Value("api_key").(*models.APIKey); ok && apiKey != nil {
		return apiKey.ID
	}
	return "anonymous"
}

// captureWriter buffers the handler's response so it can be persisted before
// delivery. Nothing reaches the client until the middleware decides whether
// to cache.
type captureWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{header: make(http.Header), status: http.StatusOK}
}

func (cw *captureWriter) Header() http.Header { return cw.header }

func (cw *captureWriter) WriteHeader(status int) { cw.status = status }

func (cw *captureWriter) Write(b []byte) (int, error) { return cw.body.Write(b) }

// Middleware returns route middleware applying the idempotency protocol to
// mutating methods. Safe methods and requests without a token bypass it
// entirely.
func (c *Coordinator) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !tokenPattern.MatchString(token) {
				writeError(w, http.StatusBadRequest,
					"idempotency key must match [A-Za-z0-9_-]{8,128}",
					models.ErrorCodeIdempotencyKeyInvalid, 0)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, http.StatusBadRequest, "failed to read request body",
					models.ErrorCodeBadRequest, 0)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			bodyHash := hashBody(body)
			key := computeKey(userIdentity(r), r.URL.Path, token)
			ctx := r.Context()

			rec, err := c.lookup(ctx, key)
			if err != nil {
				c.failClosed(w, err)
				return
			}
			if rec != nil {
				c.serveExisting(w, rec, bodyHash)
				return
			}

			acquired, err := c.tryAcquireLock(ctx, key, bodyHash)
			if err != nil {
				c.failClosed(w, err)
				return
			}
			if !acquired {
				// Lost the race. The winner is either still running or has
				// already cached its response.
				rec, err := c.lookup(ctx, key)
				if err != nil {
					c.failClosed(w, err)
					return
				}
				if rec != nil && rec.State == stateCached {
					c.serveExisting(w, rec, bodyHash)
					return
				}
				c.rejectInFlight(w)
				return
			}

			c.execute(w, r, next, key, bodyHash)
		})
	}
}

// execute runs the handler while holding the lock, then either caches the
// response or releases the lock so a retry can run.
func (c *Coordinator) execute(w http.ResponseWriter, r *http.Request, next http.Handler, key, bodyHash string) {
	cw := newCaptureWriter()

	panicked := true
	defer func() {
		if panicked {
			if err := c.release(r.Context(), key); err != nil {
				slog.Error("failed to release idempotency lock after panic",
					"key", key, "error", err)
			}
		}
	}()

	next.ServeHTTP(cw, r)
	panicked = false

	ctx := r.Context()
	if cw.status >= http.StatusInternalServerError {
		// Server-side failure is not a final answer for this token; let a
		// retry re-execute.
		if err := c.release(ctx, key); err != nil {
			slog.Error("failed to release idempotency lock", "key", key, "error", err)
		}
	} else {
		if err := c.cacheResponse(ctx, key, bodyHash, cw.status, cw.header, cw.body.Bytes()); err != nil {
			// The response still goes to the client; duplicates will see the
			// lock until it expires.
			slog.Error("failed to cache idempotent response", "key", key, "error", err)
		}
	}

	copyHeaders(w.Header(), cw.header)
	w.WriteHeader(cw.status)
	if _, err := w.Write(cw.body.Bytes()); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// serveExisting handles a key that already has state: 409 while locked,
// replay when cached, 422 when the cached response was produced by a
// different request body.
func (c *Coordinator) serveExisting(w http.ResponseWriter, rec *record, bodyHash string) {
	switch rec.State {
	case stateLocked:
		c.rejectInFlight(w)
	case stateCached:
		if rec.BodyHash != bodyHash {
			writeError(w, http.StatusUnprocessableEntity,
				"idempotency key was already used with a different request body",
				models.ErrorCodeIdempotencyKeyReused, 0)
			return
		}
		copyHeaders(w.Header(), rec.Headers)
		w.Header().Set("X-Idempotency-Replay", "true")
		w.WriteHeader(rec.Status)
		if _, err := w.Write(rec.Body); err != nil {
			slog.Error("failed to write replayed response", "error", err)
		}
	default:
		writeError(w, http.StatusServiceUnavailable, "idempotency record is corrupt",
			models.ErrorCodeServiceUnavailable, 0)
	}
}

func (c *Coordinator) rejectInFlight(w http.ResponseWriter) {
	retryAfter := int(c.lockTTL.Round(time.Second).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeError(w, http.StatusConflict,
		"a request with this idempotency key is being processed",
		models.ErrorCodeIdempotencyConflict, retryAfter)
}

func (c *Coordinator) failClosed(w http.ResponseWriter, cause error) {
	slog.Warn("idempotency store unreachable, rejecting request", "error", cause)
	writeError(w, http.StatusServiceUnavailable,
		"request deduplication is temporarily unavailable, retry later",
		models.ErrorCodeServiceUnavailable, 0)
}

func copyHeaders(dst http.Header, src map[string][]string) {
	for name, values := range src {
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func writeError(w http.ResponseWriter, status int, message, code string, retryAfter int) {
	resp := models.NewErrorResponse(message, code)
	resp.RetryAfter = retryAfter

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
