package kantoku

import (
	"time"

	"github.com/google/uuid"
)

// Script is one immutable version of an instruction script.
type Script struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     string     `json:"owner_id"`
	ScriptType  string     `json:"script_type"`
	Version     int        `json:"version"`
	Content     string     `json:"content"`
	IsActive    bool       `json:"is_active"`
	TrainedBy   *string    `json:"trained_by,omitempty"`
	ContentHash string     `json:"content_hash,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// VerifiedScript is a script version with the result of re-checking its
// content hash on the server.
type VerifiedScript struct {
	Script
	Verified bool `json:"verified"`
}

// History is every version of a script, newest first, with a root hash
// over the whole history.
type History struct {
	Versions    []Script `json:"versions"`
	HistoryRoot string   `json:"history_root"`
}

// CoordinationScript is the single, unversioned coordination text for a
// script type.
type CoordinationScript struct {
	OwnerID    string    `json:"owner_id"`
	ScriptType string    `json:"script_type"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PublishRequest creates the next version of a script.
type PublishRequest struct {
	Content   string  `json:"content"`
	TrainedBy *string `json:"trained_by,omitempty"`
	Activate  bool    `json:"activate,omitempty"`
}

// Rendered is a script with its {{tag}} placeholders expanded.
type Rendered struct {
	Script     Script   `json:"script"`
	Text       string   `json:"text"`
	Unresolved []string `json:"unresolved"`
}

// Substituted is the result of a stateless substitution.
type Substituted struct {
	Text       string   `json:"text"`
	Unresolved []string `json:"unresolved"`
}

// Diff line kinds.
const (
	LineSame    = "same"
	LineAdded   = "added"
	LineRemoved = "removed"
)

// DiffLine is one annotated line of a diff.
type DiffLine struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// DiffSummary counts diff lines per kind.
type DiffSummary struct {
	Same    int `json:"same"`
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// DiffResult is an ordered line diff.
type DiffResult struct {
	Algorithm string      `json:"algorithm"`
	Lines     []DiffLine  `json:"lines"`
	Summary   DiffSummary `json:"summary"`
}

// Changed reports whether the compared texts differ.
func (d DiffResult) Changed() bool {
	return d.Summary.Added > 0 || d.Summary.Removed > 0
}

// Preview is a candidate body diffed against the current script.
type Preview struct {
	// BaseVersion is 0 when the script has no versions yet.
	BaseVersion int        `json:"base_version"`
	Diff        DiffResult `json:"diff"`
}

// Health is the server's health report.
type Health struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Storage  string `json:"storage"`
	Database string `json:"database"`
	Uptime   int64  `json:"uptime_seconds"`
}

type scriptTypesResponse struct {
	ScriptTypes []string `json:"script_types"`
}
