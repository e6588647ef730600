// Package backend defines the narrow capabilities this module consumes
// from the authoritative marketplace backend, and the error taxonomy
// every capability reports failures in.
package backend

import (
	"errors"
	"fmt"
)

// NetworkError means no response was obtained: connection failure,
// timeout or cancellation. Mutations recover from it via local fallback
// and replay; order creation surfaces it.
type NetworkError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying transport error
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AuthError means the backend rejected the credential (401). Recovered
// once via token refresh; a second failure surfaces as a
// re-authentication requirement.
type AuthError struct {
	Op     string
	Detail string
}

// Error implements the error interface
func (e *AuthError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("authentication failed during %s: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("authentication failed during %s", e.Op)
}

// ServerError means the backend responded with a non-auth failure
// status. It is never retried and never applied locally: the backend
// already enforced a rule and local state must not diverge from it.
type ServerError struct {
	Op         string
	StatusCode int
	Detail     string
	// FieldErrors carries structured per-field validation errors when
	// the backend returned them
	FieldErrors map[string]string
}

// Error implements the error interface
func (e *ServerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend rejected %s (%d): %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend rejected %s (%d)", e.Op, e.StatusCode)
}

// IsNetworkError reports whether err is a NetworkError
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsAuthError reports whether err is an AuthError
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// AsServerError returns the ServerError wrapped in err, if any
func AsServerError(err error) (*ServerError, bool) {
	var se *ServerError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
