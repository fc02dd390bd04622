// Package apperr defines the error taxonomy shared by the client layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNoToken is returned when the token source could not produce a credential.
	ErrNoToken  = errors.New("No token") //nolint:staticcheck // user-facing text
	ErrNotFound = errors.New("not found")
)

// HTTPError is a non-2xx response from the remote API.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an HTTPError.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

// DecodeError means a payload could not be parsed into the expected shape.
type DecodeError struct {
	Type  string
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Type, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// ValidationError is a client-side precondition failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
