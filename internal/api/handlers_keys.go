package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"grantdesk/internal/models"
	"grantdesk/internal/storage"
)

// CreateKey mints a new API key. The raw key appears in this response exactly
// once; only its hash is stored.
func (h *Handlers) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req models.CreateKeyRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error(), models.ErrorCodeInvalidRequest)
		return
	}

	rawKey, err := models.GenerateAPIKey()
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, "Failed to generate key", models.ErrorCodeInternalError)
		return
	}

	key := models.NewAPIKey(models.NewKeyID(), req.Name, rawKey, req.Permissions)
	if err := h.storage.SaveAPIKey(r.Context(), key); err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, "Failed to save key", models.ErrorCodeInternalError)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, models.CreateKeyResponse{
		ID:          key.ID,
		Name:        key.Name,
		Key:         rawKey,
		Prefix:      key.Prefix,
		Permissions: key.Permissions,
		CreatedAt:   key.CreatedAt,
	})
}

// ListKeys returns all stored API keys without their hashes.
func (h *Handlers) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.storage.APIKeys(r.Context())
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, "Failed to list keys", models.ErrorCodeInternalError)
		return
	}

	resp := models.ListKeysResponse{
		Keys:  make([]models.KeyInfoResponse, 0, len(keys)),
		Total: len(keys),
	}
	for _, k := range keys {
		resp.Keys = append(resp.Keys, models.KeyInfoResponse{
			ID:          k.ID,
			Name:        k.Name,
			Prefix:      k.Prefix,
			Permissions: k.Permissions,
			Enabled:     k.Enabled,
			CreatedAt:   k.CreatedAt,
		})
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}

// DeleteKey revokes an API key.
func (h *Handlers) DeleteKey(w http.ResponseWriter, r *http.Request) {
	keyID := mux.Vars(r)["key_id"]

	if err := h.storage.DeleteAPIKey(r.Context(), keyID); err != nil {
		if errors.Is(err, storage.ErrAPIKeyNotFound) {
			h.writeErrorResponse(w, http.StatusNotFound, "API key not found", models.ErrorCodeNotFound)
			return
		}
		h.writeErrorResponse(w, http.StatusInternalServerError, "Failed to delete key", models.ErrorCodeInternalError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
