package server

import (
	"net/http"

	"github.com/ashita-ai/kantoku/internal/analytics"
	"github.com/ashita-ai/kantoku/internal/diff"
	"github.com/ashita-ai/kantoku/internal/model"
	"github.com/ashita-ai/kantoku/internal/substitute"
)

// HandleSubstitute handles POST /v1/substitute. Nothing is stored.
func (h *Handlers) HandleSubstitute(w http.ResponseWriter, r *http.Request) {
	var req model.SubstituteRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	values := model.Values(req.Values)
	writeJSON(w, r, http.StatusOK, model.SubstituteResponse{
		Text:       substitute.Apply(req.Template, values),
		Unresolved: substitute.Unresolved(req.Template, values),
	})
}

// HandleDiff handles POST /v1/diff. Nothing is stored.
func (h *Handlers) HandleDiff(w http.ResponseWriter, r *http.Request) {
	var req model.DiffRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := diff.ValidateAlgorithm(req.Algorithm); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, diff.Compute(req.Algorithm, req.Original, req.Candidate))
}

type trendRequest struct {
	Snapshots []analytics.Snapshot `json:"snapshots"`
}

// HandleTrend handles POST /v1/analytics/trend.
func (h *Handlers) HandleTrend(w http.ResponseWriter, r *http.Request) {
	var req trendRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := analytics.ValidateSnapshots(req.Snapshots); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, analytics.Trend(req.Snapshots))
}

type abTestRequest struct {
	Variants []analytics.Variant `json:"variants"`
}

// HandleABTest handles POST /v1/analytics/abtest.
func (h *Handlers) HandleABTest(w http.ResponseWriter, r *http.Request) {
	var req abTestRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if len(req.Variants) < 2 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "at least two variants are required")
		return
	}
	if err := analytics.ValidateVariants(req.Variants); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, analytics.Winner(req.Variants))
}
