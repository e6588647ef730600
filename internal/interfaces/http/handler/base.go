package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zeno/cartsync/internal/domain/backend"
	"github.com/zeno/cartsync/internal/domain/order"
	"github.com/zeno/cartsync/internal/domain/shared"
	"github.com/zeno/cartsync/internal/interfaces/http/dto"
)

// SessionHeader carries the device session the cart belongs to
const SessionHeader = "X-Session-ID"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader("X-Request-ID")
}

// getSessionID extracts the session ID header; every cart route
// requires it
func getSessionID(c *gin.Context) string {
	return c.GetHeader(SessionHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// HandleError converts domain, checkout and backend errors to HTTP
// responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	requestID := getRequestID(c)

	var checkoutErr *order.CheckoutError
	if errors.As(err, &checkoutErr) {
		c.JSON(dto.GetHTTPStatus(checkoutErr.Code), dto.Response{
			Success: false,
			Error: &dto.ErrorInfo{
				Code:        checkoutErr.Code,
				Message:     checkoutErr.Message,
				RequestID:   requestID,
				Violations:  checkoutErr.Violations,
				FieldErrors: checkoutErr.FieldErrors,
				Retryable:   checkoutErr.Retryable,
			},
		})
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		c.JSON(dto.GetHTTPStatus(domainErr.Code),
			dto.NewErrorResponseWithRequestID(domainErr.Code, domainErr.Message, requestID))
		return
	}

	if backend.IsNetworkError(err) {
		h.Error(c, http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", "The backend could not be reached")
		return
	}
	if backend.IsAuthError(err) {
		h.Error(c, http.StatusUnauthorized, "AUTH_REQUIRED", "Sign in again to continue")
		return
	}
	if se, ok := backend.AsServerError(err); ok {
		message := se.Detail
		if message == "" {
			message = "The backend rejected the request"
		}
		c.JSON(http.StatusBadGateway, dto.Response{
			Success: false,
			Error: &dto.ErrorInfo{
				Code:        "BACKEND_REJECTED",
				Message:     message,
				RequestID:   requestID,
				FieldErrors: se.FieldErrors,
			},
		})
		return
	}

	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}
