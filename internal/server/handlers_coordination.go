package server

import (
	"net/http"

	"github.com/ashita-ai/kantoku/internal/model"
)

// HandleListCoordination handles GET /v1/owners/{owner_id}/coordination.
func (h *Handlers) HandleListCoordination(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListCoordination(r.Context(), r.PathValue("owner_id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

// HandleGetCoordination handles GET /v1/owners/{owner_id}/coordination/{script_type}.
func (h *Handlers) HandleGetCoordination(w http.ResponseWriter, r *http.Request) {
	owner, scriptType := scriptKey(r)
	c, err := h.svc.GetCoordination(r.Context(), owner, scriptType)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, c)
}

// HandleUpsertCoordination handles PUT /v1/owners/{owner_id}/coordination/{script_type}.
func (h *Handlers) HandleUpsertCoordination(w http.ResponseWriter, r *http.Request) {
	owner, scriptType := scriptKey(r)
	var req model.CoordinationRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	c, err := h.svc.UpsertCoordination(r.Context(), owner, scriptType, req.Content)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, c)
}
