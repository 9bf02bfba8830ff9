package server

import (
	"net/http"

	"github.com/ashita-ai/kantoku/internal/model"
	"github.com/ashita-ai/kantoku/internal/service/scripts"
)

// HandlePublish handles POST /v1/owners/{owner_id}/scripts/{script_type}/versions.
func (h *Handlers) HandlePublish(w http.ResponseWriter, r *http.Request) {
	owner, scriptType := scriptKey(r)
	var req model.PublishRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	sc, err := h.svc.Publish(r.Context(), scripts.PublishInput{
		OwnerID:    owner,
		ScriptType: scriptType,
		Content:    req.Content,
		TrainedBy:  req.TrainedBy,
		Activate:   req.Activate,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, sc)
}

// HandleListVersions handles GET .../versions. Newest first.
func (h *Handlers) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	owner, scriptType := scriptKey(r)
	hist, err := h.svc.History(r.Context(), owner, scriptType)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, hist)
}

// HandleGetVersion handles GET .../versions/{version}.
func (h *Handlers) HandleGetVersion(w http.ResponseWriter, r *http.Request) {
	owner, scriptType := scriptKey(r)
	version, err := pathVersion(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	sc, err := h.svc.GetVersion(r.Context(), owner, scriptType, version)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.ScriptVersionResponse{Script: sc, Verified: h.svc.Verify(sc)})
}

// HandleSetActive handles PUT .../active.
func (h *Handlers) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	owner, scriptType := scriptKey(r)
	var req model.ActivateRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	sc, err := h.svc.SetActiveVersion(r.Context(), owner, scriptType, req.Version)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sc)
}

// HandleCurrent handles GET .../current: the active version, else the
// newest, else 404.
func (h *Handlers) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	owner, scriptType := scriptKey(r)
	sc, err := h.svc.GetActiveOrLatest(r.Context(), owner, scriptType)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if sc == nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "no versions published for this script")
		return
	}
	writeJSON(w, r, http.StatusOK, sc)
}

// HandleRender handles POST .../render.
func (h *Handlers) HandleRender(w http.ResponseWriter, r *http.Request) {
	owner, scriptType := scriptKey(r)
	var req model.RenderRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	out, err := h.svc.Render(r.Context(), owner, scriptType, model.Values(req.Values))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, out)
}

// HandleCompose handles POST .../compose.
func (h *Handlers) HandleCompose(w http.ResponseWriter, r *http.Request) {
	owner, scriptType := scriptKey(r)
	var req model.RenderRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	out, err := h.svc.Compose(r.Context(), owner, scriptType, model.Values(req.Values))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, out)
}

// HandlePreview handles POST .../preview.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	owner, scriptType := scriptKey(r)
	var req model.PreviewRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	p, err := h.svc.Preview(r.Context(), owner, scriptType, req.Content, req.Algorithm)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

// HandleCompare handles GET .../compare?from=&to=&algorithm=.
func (h *Handlers) HandleCompare(w http.ResponseWriter, r *http.Request) {
	owner, scriptType := scriptKey(r)
	from, err := queryVersion(r, "from")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	to, err := queryVersion(r, "to")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	res, err := h.svc.Compare(r.Context(), owner, scriptType, from, to, r.URL.Query().Get("algorithm"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// HandleListScriptTypes handles GET /v1/owners/{owner_id}/scripts.
func (h *Handlers) HandleListScriptTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.svc.ListScriptTypes(r.Context(), r.PathValue("owner_id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"script_types": types})
}
