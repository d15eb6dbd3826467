package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"grantdesk/internal/idempotency"
	"grantdesk/internal/models"
	"grantdesk/internal/ratelimit"
)

// routeOptions collects the optional collaborators wired into the router.
type routeOptions struct {
	otelService string
	limiter     *ratelimit.Limiter
	coordinator *idempotency.Coordinator
}

// RouteOption configures optional route behavior.
type RouteOption func(*routeOptions)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(ro *routeOptions) { ro.otelService = serviceName }
}

// WithRateLimiter enforces per-route-tag quotas on API routes.
func WithRateLimiter(limiter *ratelimit.Limiter) RouteOption {
	return func(ro *routeOptions) { ro.limiter = limiter }
}

// WithIdempotency deduplicates mutating API requests carrying an
// Idempotency-Key header.
func WithIdempotency(coordinator *idempotency.Coordinator) RouteOption {
	return func(ro *routeOptions) { ro.coordinator = coordinator }
}

// SetupRoutes configures the HTTP routes for the API.
//
// Every API route belongs to a group that fixes its admission order:
// authentication (when enabled), then rate limiting under the group's route
// tag, then idempotency for mutating groups, then the handler.
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	ro := &routeOptions{}
	for _, opt := range opts {
		opt(ro)
	}

	router := mux.NewRouter()

	if ro.otelService != "" {
		router.Use(otelmux.Middleware(ro.otelService,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" &&
					r.URL.Path != "/api/v1/health" &&
					r.URL.Path != "/metrics"
			}),
		))
	}

	if config.Server.CORS.Enabled {
		router.Use(corsMiddleware(config.Server.CORS))
	}
	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	router.HandleFunc("/api/v1/health", handlers.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	// group creates a subrouter with the admission chain for one class of
	// routes. Mutating groups additionally pass through the idempotency
	// coordinator.
	group := func(required Permission, tag string, mutating bool) *mux.Router {
		sr := api.PathPrefix("").Subrouter()
		if config.Security.EnableAuth {
			sr.Use(authMiddleware(handlers.storage, config.Security.APIKeyHeader))
			sr.Use(RequirePermission(required))
		}
		if ro.limiter != nil {
			sr.Use(ro.limiter.Middleware(tag))
		}
		if mutating && ro.coordinator != nil {
			sr.Use(ro.coordinator.Middleware())
		}
		return sr
	}

	// Search is registered before the parameterized program route so
	// /programs/search never resolves as a program ID.
	searchAPI := group(PermissionRead, ratelimit.TagSearch, false)
	searchAPI.HandleFunc("/programs/search", handlers.SearchPrograms).Methods("GET")

	readAPI := group(PermissionRead, ratelimit.TagDefault, false)
	readAPI.HandleFunc("/programs", handlers.ListPrograms).Methods("GET")
	readAPI.HandleFunc("/programs/{program_id}", handlers.GetProgram).Methods("GET")
	readAPI.HandleFunc("/applications", handlers.ListApplications).Methods("GET")
	readAPI.HandleFunc("/applications/{app_id}", handlers.GetApplication).Methods("GET")

	writeAPI := group(PermissionWrite, ratelimit.TagDefault, true)
	writeAPI.HandleFunc("/applications", handlers.CreateApplication).Methods("POST")
	writeAPI.HandleFunc("/applications/{app_id}", handlers.UpdateApplication).Methods("PUT")
	writeAPI.HandleFunc("/applications/{app_id}", handlers.DeleteApplication).Methods("DELETE")
	writeAPI.HandleFunc("/applications/{app_id}/submit", handlers.SubmitApplication).Methods("POST")

	generationAPI := group(PermissionWrite, ratelimit.TagGeneration, true)
	generationAPI.HandleFunc("/applications/{app_id}/generate", handlers.GeneratePlan).Methods("POST")

	exportAPI := group(PermissionWrite, ratelimit.TagExport, true)
	exportAPI.HandleFunc("/applications/{app_id}/export", handlers.ExportApplication).Methods("POST")

	programAdminAPI := group(PermissionAdmin, ratelimit.TagDefault, true)
	programAdminAPI.HandleFunc("/programs", handlers.CreateProgram).Methods("POST")
	programAdminAPI.HandleFunc("/programs/{program_id}", handlers.UpdateProgram).Methods("PUT")
	programAdminAPI.HandleFunc("/programs/{program_id}", handlers.DeleteProgram).Methods("DELETE")
	programAdminAPI.HandleFunc("/programs/{program_id}/versions", handlers.PublishFormVersion).Methods("POST")

	keyAPI := group(PermissionAdmin, ratelimit.TagAuth, true)
	keyAPI.HandleFunc("/keys", handlers.CreateKey).Methods("POST")
	keyAPI.HandleFunc("/keys", handlers.ListKeys).Methods("GET")
	keyAPI.HandleFunc("/keys/{key_id}", handlers.DeleteKey).Methods("DELETE")

	api.PathPrefix("").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods("OPTIONS")

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(models.NewErrorResponse("Method not allowed", models.ErrorCodeInvalidRequest))
	})
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(models.NewErrorResponse("Resource not found", models.ErrorCodeNotFound))
	})

	return router
}

// corsMiddleware handles Cross-Origin Resource Sharing
func corsMiddleware(corsConfig models.CORSConfig) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(corsConfig.AllowedOrigins) > 0 {
				origin := r.Header.Get("Origin")
				if origin != "" && (contains(corsConfig.AllowedOrigins, "*") || contains(corsConfig.AllowedOrigins, origin)) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
			}
			if len(corsConfig.AllowedMethods) > 0 {
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(corsConfig.AllowedMethods, ", "))
			}
			if len(corsConfig.AllowedHeaders) > 0 {
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(corsConfig.AllowedHeaders, ", "))
			}
			if corsConfig.MaxAge > 0 {
				w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", corsConfig.MaxAge))
			}
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr)
	})
}

// recoveryMiddleware handles panics
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("Panic recovered", "error", err, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(models.NewErrorResponse("Internal server error", models.ErrorCodeInternalError))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
