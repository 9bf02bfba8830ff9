package model

import (
	"time"
)

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// PublishRequest is the request body for POST .../versions.
type PublishRequest struct {
	Content   string  `json:"content"`
	TrainedBy *string `json:"trained_by,omitempty"`
	Activate  bool    `json:"activate,omitempty"`
}

// ActivateRequest is the request body for PUT .../active.
type ActivateRequest struct {
	Version int `json:"version"`
}

// RenderRequest is the request body for POST .../render and .../compose.
// A null value is treated as an empty string.
type RenderRequest struct {
	Values map[string]*string `json:"values"`
}

// PreviewRequest is the request body for POST .../preview.
type PreviewRequest struct {
	Content   string `json:"content"`
	Algorithm string `json:"algorithm,omitempty"`
}

// CoordinationRequest is the request body for PUT .../coordination/{script_type}.
type CoordinationRequest struct {
	Content string `json:"content"`
}

// SubstituteRequest is the request body for POST /v1/substitute.
type SubstituteRequest struct {
	Template string             `json:"template"`
	Values   map[string]*string `json:"values"`
}

// SubstituteResponse is returned by POST /v1/substitute.
type SubstituteResponse struct {
	Text       string   `json:"text"`
	Unresolved []string `json:"unresolved"`
}

// DiffRequest is the request body for POST /v1/diff.
type DiffRequest struct {
	Original  string `json:"original"`
	Candidate string `json:"candidate"`
	Algorithm string `json:"algorithm,omitempty"`
}

// ScriptVersionResponse wraps a script version with its hash verification result.
type ScriptVersionResponse struct {
	Script
	Verified bool `json:"verified"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Storage  string `json:"storage"`
	Database string `json:"database"`
	Uptime   int64  `json:"uptime_seconds"`
}

// Values flattens a nullable value map into the form the substitution
// engine takes. Null values become empty strings.
func Values(in map[string]*string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v == nil {
			out[k] = ""
			continue
		}
		out[k] = *v
	}
	return out
}
