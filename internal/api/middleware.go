package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"grantdesk/internal/models"
	"grantdesk/internal/storage"
)

// Permission represents the different permission levels
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
	PermissionAdmin Permission = "admin"
)

// SecurityContext represents the security information for a request
type SecurityContext struct {
	APIKey      *models.APIKey
	Permissions []string
}

// HasPermission checks if the security context has the required permission
func (sc *SecurityContext) HasPermission(required Permission) bool {
	if sc == nil || sc.APIKey == nil {
		return false
	}
	return sc.APIKey.HasPermission(string(required))
}

// GetSecurityContext extracts security context from request context
func GetSecurityContext(r *http.Request) *SecurityContext {
	if apiKey, ok := r.Context().Value("api_key").(*models.APIKey); ok && apiKey != nil {
		return &SecurityContext{
			APIKey:      apiKey,
			Permissions: apiKey.Permissions,
		}
	}
	return nil
}

// extractCredential pulls the raw API key from a request: an Authorization
// Bearer token, or the configured API key header as a fallback.
func extractCredential(r *http.Request, apiKeyHeader string) string {
	const prefix = "Bearer "
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, prefix) {
		return authHeader[len(prefix):]
	}
	if apiKeyHeader != "" {
		return r.Header.Get(apiKeyHeader)
	}
	return ""
}

// authMiddleware authenticates requests using storage-backed key lookup.
// Only the key's hash is compared; raw keys are never stored.
func authMiddleware(store storage.Storage, apiKeyHeader string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := extractCredential(r, apiKeyHeader)
			if credential == "" {
				writeAuthError(w, "Authorization required")
				return
			}

			validKey, err := store.GetAPIKeyByHash(r.Context(), models.HashAPIKey(credential))
			if err != nil || !validKey.Enabled {
				writeAuthError(w, "Invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), "api_key", validKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission creates middleware that enforces a specific permission
func RequirePermission(required Permission) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc := GetSecurityContext(r)
			if sc == nil || !sc.HasPermission(required) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				errorResp := models.NewErrorResponse(
					"Insufficient permissions for this operation",
					models.ErrorCodeForbidden,
				)
				json.NewEncoder(w).Encode(errorResp)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// OptionalAuth creates middleware that allows optional authentication.
// A valid credential attaches the key to the request context; anything else
// continues unauthenticated.
func OptionalAuth(store storage.Storage, apiKeyHeader string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := extractCredential(r, apiKeyHeader)
			if credential == "" {
				next.ServeHTTP(w, r)
				return
			}

			validKey, err := store.GetAPIKeyByHash(r.Context(), models.HashAPIKey(credential))
			if err != nil || !validKey.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), "api_key", validKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(models.NewErrorResponse(message, models.ErrorCodeUnauthorized))
}
