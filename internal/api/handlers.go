// Package api implements the HTTP surface of the service: route setup,
// authentication and permission middleware, request admission wiring, and the
// JSON handlers for programs, application drafts, and API keys.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"grantdesk/internal/draft"
	"grantdesk/internal/kvstore"
	"grantdesk/internal/models"
	"grantdesk/internal/storage"
)

// Handlers contains the HTTP handlers and their dependencies.
type Handlers struct {
	service *draft.Service
	storage storage.Storage
	kv      kvstore.Store
	config  *models.Config
	version string
}

// NewHandlers creates the handler set.
func NewHandlers(service *draft.Service, store storage.Storage, kv kvstore.Store, config *models.Config, version string) *Handlers {
	return &Handlers{
		service: service,
		storage: store,
		kv:      kv,
		config:  config,
		version: version,
	}
}

// HealthCheck reports service health including its storage and cache
// dependencies. A degraded cache keeps the service up (rate limiting fails
// open) but is surfaced for operators.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := models.NewHealthCheckResponse(models.StatusHealthy)
	resp.Version = h.version

	if err := h.storage.Ping(r.Context()); err != nil {
		resp.Status = models.StatusUnhealthy
		resp.AddComponent("storage", models.StatusUnhealthy, err.Error())
	} else {
		resp.AddComponent("storage", models.StatusHealthy, "")
	}

	if err := h.kv.Ping(r.Context()); err != nil {
		if resp.Status == models.StatusHealthy {
			resp.Status = models.StatusDegraded
		}
		resp.AddComponent("cache", models.StatusUnhealthy, err.Error())
	} else {
		resp.AddComponent("cache", models.StatusHealthy, "")
	}

	status := http.StatusOK
	if resp.Status == models.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	h.writeJSONResponse(w, status, resp)
}

// requesterKeyID returns the identity used for draft ownership checks: the
// authenticated key's ID, or "" (no restriction) for admin keys and
// deployments without authentication.
func (h *Handlers) requesterKeyID(r *http.Request) string {
	if !h.config.Security.EnableAuth {
		return ""
	}
	sc := GetSecurityContext(r)
	if sc == nil || sc.APIKey == nil {
		return ""
	}
	if sc.HasPermission(PermissionAdmin) {
		return ""
	}
	return sc.APIKey.ID
}

// ownerKeyID returns the identity recorded on newly created drafts.
func (h *Handlers) ownerKeyID(r *http.Request) string {
	sc := GetSecurityContext(r)
	if sc == nil || sc.APIKey == nil {
		return ""
	}
	return sc.APIKey.ID
}

func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, code string) {
	h.writeJSONResponse(w, statusCode, models.NewErrorResponse(message, code))
}

// writeServiceErrorResponse maps service errors onto HTTP responses,
// preserving their status code and machine-readable code.
func (h *Handlers) writeServiceErrorResponse(w http.ResponseWriter, err error) {
	var serviceErr *draft.ServiceError
	if errors.As(err, &serviceErr) {
		if serviceErr.StatusCode >= http.StatusInternalServerError {
			slog.Error("Service error", "error", err, "code", serviceErr.Code)
		}
		h.writeErrorResponse(w, serviceErr.StatusCode, serviceErr.Message, serviceErr.Code)
		return
	}

	slog.Error("Unexpected error", "error", err)
	h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", models.ErrorCodeInternalError)
}

// decodeJSONBody decodes a request body, rejecting unknown fields. An empty
// body leaves dst at its zero value; request validation decides whether that
// is acceptable.
func (h *Handlers) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error(), models.ErrorCodeBadRequest)
		return false
	}
	return true
}

// pagination reads page/page_size query parameters with bounded defaults.
func pagination(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = 20

	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			pageSize = n
		}
	}
	return page, pageSize
}

// paginate slices [start, end) bounds for a list of n items.
func paginate(n, page, pageSize int) (start, end int, hasMore bool) {
	start = (page - 1) * pageSize
	if start > n {
		start = n
	}
	end = start + pageSize
	if end > n {
		end = n
	}
	return start, end, end < n
}
