// Package kantoku provides a Go client for the Kantoku script versioning API.
package kantoku

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents an error from the Kantoku API with the HTTP status code
// and the server's error message.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("kantoku: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

func hasStatus(err error, status int) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == status
	}
	return false
}

// IsInvalidInput returns true if the error is a 400.
func IsInvalidInput(err error) bool { return hasStatus(err, http.StatusBadRequest) }

// IsNotFound returns true if the error is a 404.
func IsNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

// IsConflict returns true if the error is a 409, returned when a concurrent
// publish claimed the same version number.
func IsConflict(err error) bool { return hasStatus(err, http.StatusConflict) }

// IsRateLimited returns true if the error is a 429 (Too Many Requests).
func IsRateLimited(err error) bool { return hasStatus(err, http.StatusTooManyRequests) }
