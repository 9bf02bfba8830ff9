package kantoku

import (
	"time"

	"github.com/google/uuid"
)

// Script is the public representation of one stored script version.
// It mirrors the internal model with no internal package imports.
type Script struct {
	ID          uuid.UUID
	OwnerID     string
	ScriptType  string
	Version     int
	Content     string
	IsActive    bool
	TrainedBy   *string
	ContentHash string
	ActivatedAt *time.Time
	CreatedAt   time.Time
}
