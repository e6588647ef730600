package order

import (
	"strings"

	"github.com/zeno/cartsync/internal/domain/cart"
)

// CheckoutState represents the state of one checkout attempt
type CheckoutState string

const (
	CheckoutStateIdle       CheckoutState = "IDLE"
	CheckoutStateValidating CheckoutState = "VALIDATING"
	CheckoutStateSubmitting CheckoutState = "SUBMITTING"
	CheckoutStateSucceeded  CheckoutState = "SUCCEEDED"
	CheckoutStateFailed     CheckoutState = "FAILED"
)

// IsValid checks if the state is a known CheckoutState
func (s CheckoutState) IsValid() bool {
	switch s {
	case CheckoutStateIdle, CheckoutStateValidating, CheckoutStateSubmitting,
		CheckoutStateSucceeded, CheckoutStateFailed:
		return true
	}
	return false
}

// String returns the string representation of CheckoutState
func (s CheckoutState) String() string {
	return string(s)
}

// IsTerminal returns true for terminal states. Retry after failure is an
// explicit caller action re-entering VALIDATING, never automatic.
func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateSucceeded || s == CheckoutStateFailed
}

// CanTransitionTo checks if the state can transition to the target state
func (s CheckoutState) CanTransitionTo(target CheckoutState) bool {
	switch s {
	case CheckoutStateIdle:
		return target == CheckoutStateValidating
	case CheckoutStateValidating:
		return target == CheckoutStateSubmitting || target == CheckoutStateFailed
	case CheckoutStateSubmitting:
		return target == CheckoutStateSucceeded || target == CheckoutStateFailed
	case CheckoutStateSucceeded, CheckoutStateFailed:
		return target == CheckoutStateValidating // explicit retry
	}
	return false
}

// CheckoutError carries the classified, actionable reason a checkout
// attempt failed. The cart is never mutated on failure so the user can
// retry without re-adding items.
type CheckoutError struct {
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Violations  []cart.Violation  `json:"violations,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
	Retryable   bool              `json:"retryable"`
}

// Error implements the error interface
func (e *CheckoutError) Error() string {
	return e.Message
}

// NewValidationCheckoutError creates a checkout error from local
// pre-checkout violations; no network call was issued
func NewValidationCheckoutError(violations []cart.Violation) *CheckoutError {
	return &CheckoutError{
		Code:       "CHECKOUT_VALIDATION",
		Message:    "Cart failed pre-checkout validation",
		Violations: violations,
		Retryable:  false,
	}
}

// ClassifyBackendError maps a backend rejection into an actionable
// checkout error: vendor-mismatch phrasing becomes MULTI_VENDOR,
// structured field errors are surfaced per field, anything else is a
// generic retryable error carrying the backend detail.
func ClassifyBackendError(message string, fieldErrors map[string]string) *CheckoutError {
	lower := strings.ToLower(message)
	if strings.Contains(lower, "vendor") &&
		(strings.Contains(lower, "same") || strings.Contains(lower, "different") ||
			strings.Contains(lower, "mismatch") || strings.Contains(lower, "multiple")) {
		return &CheckoutError{
			Code:      "MULTI_VENDOR",
			Message:   "Order items belong to different vendors; split your cart",
			Retryable: false,
		}
	}
	if len(fieldErrors) > 0 {
		return &CheckoutError{
			Code:        "CHECKOUT_FIELD_ERRORS",
			Message:     "Order was rejected due to invalid fields",
			FieldErrors: fieldErrors,
			Retryable:   false,
		}
	}
	msg := message
	if msg == "" {
		msg = "Order could not be created"
	}
	return &CheckoutError{
		Code:      "CHECKOUT_FAILED",
		Message:   msg,
		Retryable: true,
	}
}
