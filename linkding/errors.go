package linkding

import (
	"errors"
	"fmt"
)

// ErrUnconfigured is returned by New when host or API key is missing.
var ErrUnconfigured = errors.New("linkding: host and API key are required")

// ErrAuthentication is returned on HTTP 401 responses.
var ErrAuthentication = errors.New("linkding: authentication failed, check your API key")

// ErrNotFound is returned on HTTP 404 responses.
var ErrNotFound = errors.New("linkding: resource not found")

// ValidationError is returned on HTTP 400/422 responses. Message carries the
// server-reported detail when the body exposes one.
type ValidationError struct {
	StatusCode int
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("linkding: validation error: %s", e.Message)
}

// Error is returned for any other non-2xx response.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("linkding: http %d: %s", e.StatusCode, e.Body)
}
