package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"grantdesk/internal/models"
)

// buildKey derives the counter key for a request. Two requests share a key
// iff they belong to the same quota bucket: same scope value and, when
// endpoint isolation is on, same method and route template.
func (l *Limiter) buildKey(r *http.Request, policy Policy) string {
	var sb strings.Builder
	sb.WriteString("ratelimit:")
	sb.WriteString(string(policy.Scope))
	sb.WriteString(":")

	switch policy.Scope {
	case ScopeGlobal:
		sb.WriteString("all")
	case ScopeIP:
		sb.WriteString(clientIP(r))
	case ScopeUser:
		sb.WriteString(userIdentity(r))
	case ScopeAPIKey:
		sb.WriteString(apiKeyIdentity(r, l.apiKeyHeader))
	default:
		sb.WriteString(clientIP(r))
	}

	if policy.IncludeEndpoint {
		sb.WriteString(":")
		sb.WriteString(r.Method)
		sb.WriteString(":")
		sb.WriteString(routeTemplate(r))
	}

	return sb.String()
}

// clientIP extracts the caller address, preferring the first entry of the
// forwarded chain over the socket address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// userIdentity returns the authenticated key ID, or "anonymous".
func userIdentity(r *http.Request) string {
	if apiKey, ok := r.Context().Value("api_key").(*models.APIKey); ok && apiKey != nil {
		return apiKey.ID
	}
	return "anonymous"
}

// apiKeyIdentity buckets by the designated header. The raw credential never
// becomes part of a store key; it is reduced to a short digest first.
func apiKeyIdentity(r *http.Request, header string) string {
	raw := r.Header.Get(header)
	if raw == "" {
		return "no-key"
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:8])
}

// routeTemplate returns the mux route template so parameterized routes share
// one bucket, falling back to the resolved path outside a mux route.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}
