package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Known script types. Any slug matching scriptTypePattern is accepted;
// these are the ones the dashboard ships with.
const (
	ScriptTypeTitleGuide         = "title_guide"
	ScriptTypeDescriptionGuide   = "description_guide"
	ScriptTypeScriptGuide        = "script_guide"
	ScriptTypeThumbnailGuide     = "thumbnail_guide"
	ScriptTypeStrategyGeneration = "strategy_generation"
	ScriptTypeChannelAnalysis    = "channel_analysis"
)

// KnownScriptTypes lists the built-in script types in display order.
var KnownScriptTypes = []string{
	ScriptTypeTitleGuide,
	ScriptTypeDescriptionGuide,
	ScriptTypeScriptGuide,
	ScriptTypeThumbnailGuide,
	ScriptTypeStrategyGeneration,
	ScriptTypeChannelAnalysis,
}

// Field length limits.
const (
	MaxOwnerIDLen = 255
	MaxContentLen = 256 * 1024 // 256 KB
)

var scriptTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// Script is one immutable version of an instruction script.
// Only IsActive and ActivatedAt change after creation.
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

// CoordinationScript is a per-(owner, type) script without version history.
type CoordinationScript struct {
	OwnerID    string    `json:"owner_id"`
	ScriptType string    `json:"script_type"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ValidateScriptType reports whether t is a usable script type slug.
func ValidateScriptType(t string) error {
	if !scriptTypePattern.MatchString(t) {
		return fmt.Errorf("script_type %q must be lowercase letters, digits or underscores, starting with a letter (max 64)", t)
	}
	return nil
}

// ValidateOwnerID checks the owner identifier is present and bounded.
func ValidateOwnerID(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return fmt.Errorf("owner_id is required")
	}
	if len(owner) > MaxOwnerIDLen {
		return fmt.Errorf("owner_id exceeds maximum length of %d characters", MaxOwnerIDLen)
	}
	return nil
}

// ValidateContent rejects empty or whitespace-only content and oversized blobs.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content must not be blank")
	}
	if len(content) > MaxContentLen {
		return fmt.Errorf("content exceeds maximum length of %d bytes", MaxContentLen)
	}
	return nil
}
