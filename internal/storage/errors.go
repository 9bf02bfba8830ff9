package storage

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrVersionConflict is returned when two writers race for the same script
// version number or activation slot. The whole operation may be retried.
var ErrVersionConflict = errors.New("storage: version conflict")
