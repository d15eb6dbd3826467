// Package models - API response types and error handling.
// This file defines all outgoing API response structures with consistent formatting.
//
// Response Design Principles:
// - Consistent JSON structure across all endpoints
// - Optional fields use omitempty to reduce response size
// - Machine-readable error codes for programmatic handling
// - Standardized pagination with metadata
// - RFC3339 timestamps for international compatibility
package models

import (
	"time"
)

// ErrorResponse provides structured error information with debugging context.
type ErrorResponse struct {
	Error      string            `json:"error"`                 // Error type (always "error")
	Message    string            `json:"message"`               // Human-readable error description
	Code       string            `json:"code,omitempty"`        // Machine-readable error code
	Details    map[string]string `json:"details,omitempty"`     // Field-specific error details
	RetryAfter int               `json:"retry_after,omitempty"` // Seconds until the caller may retry (quota/contention errors)
	Timestamp  time.Time         `json:"timestamp"`             // Error occurrence time
	RequestID  string            `json:"request_id,omitempty"`  // Unique request identifier
}

// Standard HTTP Error Codes
//
// Error Code Strategy:
// - Upper-case with underscores for consistency
// - Maps to standard HTTP status codes
// - Machine-readable for client error handling
const (
	ErrorCodeNotFound            = "NOT_FOUND"             // 404: Resource doesn't exist
	ErrorCodeProgramNotFound     = "PROGRAM_NOT_FOUND"     // 404: Program doesn't exist
	ErrorCodeApplicationNotFound = "APPLICATION_NOT_FOUND" // 404: Application doesn't exist
	ErrorCodeBadRequest          = "BAD_REQUEST"           // 400: Invalid request format
	ErrorCodeInvalidRequest      = "INVALID_REQUEST"       // 400: Invalid request data
	ErrorCodeValidation          = "VALIDATION_ERROR"      // 422: Input validation failed
	ErrorCodeInternalError       = "INTERNAL_ERROR"        // 500: Server-side error
	ErrorCodeUnauthorized        = "UNAUTHORIZED"          // 401: Authentication required
	ErrorCodeForbidden           = "FORBIDDEN"             // 403: Permission denied
	ErrorCodeConflict            = "CONFLICT"              // 409: Resource conflict
	ErrorCodeServiceUnavailable  = "SERVICE_UNAVAILABLE"   // 503: Service temporarily down

	// Request-admission error codes
	ErrorCodeRateLimitExceeded     = "RATE_LIMIT_EXCEEDED"     // 429: Quota exhausted for the window
	ErrorCodeIdempotencyConflict   = "IDEMPOTENCY_CONFLICT"    // 409: Same key is being processed
	ErrorCodeIdempotencyKeyInvalid = "IDEMPOTENCY_KEY_INVALID" // 400: Malformed idempotency token
	ErrorCodeIdempotencyKeyReused  = "IDEMPOTENCY_KEY_REUSED"  // 422: Key replayed with a different request body
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

type ValidationErrorResponse struct {
	Error  string            `json:"error"`
	Errors map[string]string `json:"errors"`
}

func NewValidationErrorResponse(errors map[string]string) *ValidationErrorResponse {
	return &ValidationErrorResponse{
		Error:  "validation_error",
		Errors: errors,
	}
}

type CreateProgramResponse struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type ProgramInfoResponse struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Agency        string        `json:"agency"`
	Description   string        `json:"description"`
	Categories    []string      `json:"categories"`
	MaxAwardYen   int64         `json:"max_award_yen"`
	SubsidyRate   string        `json:"subsidy_rate,omitempty"`
	AcceptFrom    *time.Time    `json:"accept_from,omitempty"`
	AcceptUntil   *time.Time    `json:"accept_until,omitempty"`
	FormVersions  []FormVersion `json:"form_versions"`
	LatestVersion string        `json:"latest_form_version,omitempty"`
	Accepting     bool          `json:"accepting"` // Whether the acceptance window is currently open
}

func (pr *ProgramInfoResponse) FromProgram(p *Program) {
	pr.ID = p.ID
	pr.Name = p.Name
	pr.Agency = p.Agency
	pr.Description = p.Description
	pr.Categories = p.Categories
	pr.MaxAwardYen = p.MaxAwardYen
	pr.SubsidyRate = p.SubsidyRate
	pr.AcceptFrom = p.AcceptFrom
	pr.AcceptUntil = p.AcceptUntil
	pr.FormVersions = p.FormVersions
	pr.LatestVersion = p.LatestFormVersion()
	pr.Accepting = p.AcceptsAt(time.Now())
}

type ListProgramsResponse struct {
	Programs   []ProgramInfoResponse `json:"programs"`
	TotalCount int                   `json:"total_count"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	HasMore    bool                  `json:"has_more"`
}

type SearchProgramsResponse struct {
	Query    string                `json:"query"`
	Programs []ProgramInfoResponse `json:"programs"`
	Total    int                   `json:"total"`
}

type CreateApplicationResponse struct {
	ID          string    `json:"id"`
	ProgramID   string    `json:"program_id"`
	FormVersion string    `json:"form_version"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

type ApplicationInfoResponse struct {
	ID              string       `json:"id"`
	ProgramID       string       `json:"program_id"`
	FormVersion     string       `json:"form_version"`
	CompanyName     string       `json:"company_name"`
	CorporateNumber string       `json:"corporate_number,omitempty"`
	ContactEmail    string       `json:"contact_email,omitempty"`
	Status          string       `json:"status"`
	Plan            PlanContent  `json:"plan"`
	Budget          []BudgetItem `json:"budget,omitempty"`
	TotalBudgetYen  int64        `json:"total_budget_yen"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	SubmittedAt     *time.Time   `json:"submitted_at,omitempty"`
}

func (ar *ApplicationInfoResponse) FromApplication(a *Application) {
	ar.ID = a.ID
	ar.ProgramID = a.ProgramID
	ar.FormVersion = a.FormVersion
	ar.CompanyName = a.CompanyName
	ar.CorporateNumber = a.CorporateNumber
	ar.ContactEmail = a.ContactEmail
	ar.Status = a.Status
	ar.Plan = a.Plan
	ar.Budget = a.Budget
	ar.TotalBudgetYen = a.TotalBudgetYen()
	ar.CreatedAt = a.CreatedAt
	ar.UpdatedAt = a.UpdatedAt
	ar.SubmittedAt = a.SubmittedAt
}

type ListApplicationsResponse struct {
	Applications []ApplicationInfoResponse `json:"applications"`
	TotalCount   int                       `json:"total_count"`
	Page         int                       `json:"page"`
	PageSize     int                       `json:"page_size"`
	HasMore      bool                      `json:"has_more"`
}

type SubmitApplicationResponse struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type GeneratePlanResponse struct {
	ID          string      `json:"id"`
	Plan        PlanContent `json:"plan"`
	Message     string      `json:"message"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// ExportApplicationResponse carries the rendered submission document.
// For format "text" the Document field holds the rendered text; for "json"
// it is empty and Application carries the structured export.
type ExportApplicationResponse struct {
	ID          string                   `json:"id"`
	Format      string                   `json:"format"`
	Application *ApplicationInfoResponse `json:"application,omitempty"`
	Document    string                   `json:"document,omitempty"`
	ExportedAt  time.Time                `json:"exported_at"`
}

type CreateKeyResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Key         string    `json:"key"` // Raw key - shown exactly once
	Prefix      string    `json:"prefix"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

type KeyInfoResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Prefix      string    `json:"prefix"`
	Permissions []string  `json:"permissions"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
}

type ListKeysResponse struct {
	Keys  []KeyInfoResponse `json:"keys"`
	Total int               `json:"total"`
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"   // All systems operational
	StatusUnhealthy = "unhealthy" // Major system issues
	StatusDegraded  = "degraded"  // Partial functionality
)

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}
