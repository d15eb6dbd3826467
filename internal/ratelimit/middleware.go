package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"grantdesk/internal/models"
)

// Middleware returns route middleware enforcing the quota for the given route
// tag. Every evaluated response carries the rate limit headers; rejected
// requests get a 429 with the retry delay in both the Retry-After header and
// the JSON body.
func (l *Limiter) Middleware(tag string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			policy := l.PolicyFor(tag)
			key := l.buildKey(r, policy)

			allowed, info := l.Check(r.Context(), key, policy)
			setHeaders(w, info)

			if !allowed {
				writeRejection(w, info)
				slog.Info("rate limit exceeded",
					"tag", tag,
					"key", key,
					"limit", info.Limit,
					"path", r.URL.Path)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setHeaders(w http.ResponseWriter, info Info) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	h.Set("X-RateLimit-Reset", info.ResetAt.UTC().Format(time.RFC3339))
}

func writeRejection(w http.ResponseWriter, info Info) {
	retryAfter := int(info.RetryAfter.Round(time.Second).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	resp := models.NewErrorResponse("rate limit exceeded", models.ErrorCodeRateLimitExceeded)
	resp.RetryAfter = retryAfter

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode rate limit response", "error", err)
	}
}
