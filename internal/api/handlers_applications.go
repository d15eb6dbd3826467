package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"grantdesk/internal/models"
)

// ListApplications returns the caller's application drafts, paginated. Admin
// keys and unauthenticated deployments see all drafts.
func (h *Handlers) ListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.service.ListApplications(r.Context(), h.requesterKeyID(r))
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	page, pageSize := pagination(r)
	start, end, hasMore := paginate(len(apps), page, pageSize)

	resp := models.ListApplicationsResponse{
		Applications: make([]models.ApplicationInfoResponse, 0, end-start),
		TotalCount:   len(apps),
		Page:         page,
		PageSize:     pageSize,
		HasMore:      hasMore,
	}
	for _, a := range apps[start:end] {
		var info models.ApplicationInfoResponse
		info.FromApplication(a)
		resp.Applications = append(resp.Applications, info)
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}

// GetApplication returns one draft by ID.
func (h *Handlers) GetApplication(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["app_id"]

	app, err := h.service.GetApplication(r.Context(), appID, h.requesterKeyID(r))
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	var info models.ApplicationInfoResponse
	info.FromApplication(app)
	h.writeJSONResponse(w, http.StatusOK, info)
}

// CreateApplication opens a new draft against a program.
func (h *Handlers) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req models.CreateApplicationRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	app, err := h.service.CreateApplication(r.Context(), &req, h.ownerKeyID(r))
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, models.CreateApplicationResponse{
		ID:          app.ID,
		ProgramID:   app.ProgramID,
		FormVersion: app.FormVersion,
		Message:     "Application draft created successfully",
		CreatedAt:   app.CreatedAt,
	})
}

// UpdateApplication applies a partial update to a draft.
func (h *Handlers) UpdateApplication(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["app_id"]

	var req models.UpdateApplicationRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	app, err := h.service.UpdateApplication(r.Context(), appID, &req, h.requesterKeyID(r))
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	var info models.ApplicationInfoResponse
	info.FromApplication(app)
	h.writeJSONResponse(w, http.StatusOK, info)
}

// DeleteApplication removes a draft.
func (h *Handlers) DeleteApplication(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["app_id"]

	if err := h.service.DeleteApplication(r.Context(), appID, h.requesterKeyID(r)); err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SubmitApplication transitions a draft to submitted.
func (h *Handlers) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["app_id"]

	app, err := h.service.SubmitApplication(r.Context(), appID, h.requesterKeyID(r))
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, models.SubmitApplicationResponse{
		ID:          app.ID,
		Status:      app.Status,
		Message:     "Application submitted successfully",
		SubmittedAt: *app.SubmittedAt,
	})
}

// GeneratePlan fills plan sections of a draft from program metadata and
// keywords.
func (h *Handlers) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["app_id"]

	var req models.GeneratePlanRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	app, err := h.service.GeneratePlan(r.Context(), appID, &req, h.requesterKeyID(r))
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, models.GeneratePlanResponse{
		ID:          app.ID,
		Plan:        app.Plan,
		Message:     "Plan sections generated",
		GeneratedAt: time.Now().UTC(),
	})
}

// ExportApplication renders a draft into a submission document.
func (h *Handlers) ExportApplication(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["app_id"]

	var req models.ExportApplicationRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	resp, err := h.service.ExportApplication(r.Context(), appID, &req, h.requesterKeyID(r))
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}
