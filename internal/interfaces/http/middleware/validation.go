package middleware

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/zeno/cartsync/internal/interfaces/http/dto"
)

// SetupValidator configures the binding validator to report field names
// from JSON tags, so validation errors match the wire format
func SetupValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// HandleValidationError answers a failed request binding with per-field
// messages when the failure came from validation tags, or a generic bad
// request otherwise (malformed JSON, wrong types)
func HandleValidationError(c *gin.Context, err error) {
	requestID := c.GetString("request_id")

	fieldErrors := bindingFieldErrors(err)
	if len(fieldErrors) == 0 {
		c.JSON(http.StatusBadRequest,
			dto.NewErrorResponseWithRequestID(dto.ErrCodeBadRequest, "Invalid request body", requestID))
		return
	}

	c.JSON(http.StatusBadRequest, dto.Response{
		Success: false,
		Error: &dto.ErrorInfo{
			Code:        dto.ErrCodeBadRequest,
			Message:     "Request validation failed",
			RequestID:   requestID,
			FieldErrors: fieldErrors,
		},
	})
}

// bindingFieldErrors flattens validator errors into a field-to-message map
func bindingFieldErrors(err error) map[string]string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}

	fieldErrors := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		fieldErrors[e.Field()] = validationMessage(e)
	}
	return fieldErrors
}

// validationMessage returns a human-readable message for one failed tag
func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Type().Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Type().Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "uuid":
		return "Invalid UUID format"
	default:
		return "Invalid value"
	}
}
