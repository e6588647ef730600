package dto

import "net/http"

// General error codes
const (
	ErrCodeInternal   = "INTERNAL_ERROR"
	ErrCodeBadRequest = "BAD_REQUEST"
	ErrCodeNotFound   = "NOT_FOUND"
)

// ErrorCodeHTTPStatus maps domain and checkout error codes to HTTP
// status codes. Business rule rejections are 422: the request was
// well-formed, the cart's state just does not admit it.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeBadRequest: http.StatusBadRequest,
	ErrCodeNotFound:   http.StatusNotFound,

	// Input errors
	"INVALID_INPUT":            http.StatusBadRequest,
	"INVALID_ITEM":             http.StatusBadRequest,
	"INVALID_ITEM_ID":          http.StatusBadRequest,
	"INVALID_ITEM_KIND":        http.StatusBadRequest,
	"INVALID_QUANTITY":         http.StatusBadRequest,
	"INVALID_PRICE":            http.StatusBadRequest,
	"INVALID_VENDOR":           http.StatusBadRequest,
	"INVALID_MUTATION":         http.StatusBadRequest,
	"INVALID_DELIVERY_TYPE":    http.StatusBadRequest,
	"INVALID_DELIVERY_ADDRESS": http.StatusBadRequest,

	// Cart state errors
	"ITEM_NOT_FOUND": http.StatusNotFound,
	"EMPTY_CART":     http.StatusUnprocessableEntity,
	"INVALID_STATE":  http.StatusUnprocessableEntity,

	// Business invariants
	"MULTI_VENDOR":       http.StatusConflict,
	"VENDOR_UNAVAILABLE": http.StatusUnprocessableEntity,
	"INSUFFICIENT_STOCK": http.StatusUnprocessableEntity,
	"ITEM_UNAVAILABLE":   http.StatusUnprocessableEntity,

	// Checkout pipeline
	"CHECKOUT_VALIDATION":   http.StatusUnprocessableEntity,
	"CHECKOUT_FIELD_ERRORS": http.StatusUnprocessableEntity,
	"CHECKOUT_IN_PROGRESS":  http.StatusConflict,
	"DUPLICATE_SUBMISSION":  http.StatusConflict,
	"CHECKOUT_NETWORK":      http.StatusServiceUnavailable,
	"CHECKOUT_FAILED":       http.StatusBadGateway,
	"AUTH_REQUIRED":         http.StatusUnauthorized,

	// Backend passthrough
	"BACKEND_UNAVAILABLE": http.StatusServiceUnavailable,
	"BACKEND_REJECTED":    http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code,
// defaulting to 500
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
