package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"grantdesk/internal/models"
)

// ListPrograms returns all registered subsidy programs, paginated.
func (h *Handlers) ListPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := h.service.ListPrograms(r.Context())
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	page, pageSize := pagination(r)
	start, end, hasMore := paginate(len(programs), page, pageSize)

	resp := models.ListProgramsResponse{
		Programs:   make([]models.ProgramInfoResponse, 0, end-start),
		TotalCount: len(programs),
		Page:       page,
		PageSize:   pageSize,
		HasMore:    hasMore,
	}
	for _, p := range programs[start:end] {
		var info models.ProgramInfoResponse
		info.FromProgram(p)
		resp.Programs = append(resp.Programs, info)
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}

// SearchPrograms returns programs matching the q/category/accepting query
// parameters.
func (h *Handlers) SearchPrograms(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	category := r.URL.Query().Get("category")
	acceptingOnly := r.URL.Query().Get("accepting") == "true"

	programs, err := h.service.SearchPrograms(r.Context(), query, category, acceptingOnly)
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	resp := models.SearchProgramsResponse{
		Query:    query,
		Programs: make([]models.ProgramInfoResponse, 0, len(programs)),
		Total:    len(programs),
	}
	for _, p := range programs {
		var info models.ProgramInfoResponse
		info.FromProgram(p)
		resp.Programs = append(resp.Programs, info)
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}

// GetProgram returns one program by ID.
func (h *Handlers) GetProgram(w http.ResponseWriter, r *http.Request) {
	programID := mux.Vars(r)["program_id"]

	program, err := h.service.GetProgram(r.Context(), programID)
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	var info models.ProgramInfoResponse
	info.FromProgram(program)
	h.writeJSONResponse(w, http.StatusOK, info)
}

// CreateProgram registers a new subsidy program.
func (h *Handlers) CreateProgram(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProgramRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	program, err := h.service.CreateProgram(r.Context(), &req)
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, models.CreateProgramResponse{
		ID:        program.ID,
		Message:   "Program created successfully",
		CreatedAt: time.Now().UTC(),
	})
}

// UpdateProgram applies a partial update to program metadata.
func (h *Handlers) UpdateProgram(w http.ResponseWriter, r *http.Request) {
	programID := mux.Vars(r)["program_id"]

	var req models.UpdateProgramRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	program, err := h.service.UpdateProgram(r.Context(), programID, &req)
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	var info models.ProgramInfoResponse
	info.FromProgram(program)
	h.writeJSONResponse(w, http.StatusOK, info)
}

// DeleteProgram removes a program without drafts.
func (h *Handlers) DeleteProgram(w http.ResponseWriter, r *http.Request) {
	programID := mux.Vars(r)["program_id"]

	if err := h.service.DeleteProgram(r.Context(), programID); err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PublishFormVersion publishes a new form schema version for a program.
func (h *Handlers) PublishFormVersion(w http.ResponseWriter, r *http.Request) {
	programID := mux.Vars(r)["program_id"]

	var req models.PublishFormVersionRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	program, err := h.service.PublishFormVersion(r.Context(), programID, &req)
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	var info models.ProgramInfoResponse
	info.FromProgram(program)
	h.writeJSONResponse(w, http.StatusCreated, info)
}
