package scripts

import (
	"errors"
	"fmt"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError reports caller input the service refuses to act on.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) true for validation errors.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Message: err.Error()}
}
