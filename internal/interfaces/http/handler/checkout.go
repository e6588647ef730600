package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	checkoutapp "github.com/zeno/cartsync/internal/application/checkout"
	"github.com/zeno/cartsync/internal/interfaces/http/middleware"
)

// CheckoutHandler handles order conversion HTTP requests
type CheckoutHandler struct {
	BaseHandler
	service *checkoutapp.Service
	logger  *zap.Logger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(service *checkoutapp.Service, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		logger:  logger,
	}
}

// Checkout converts the cart into an order
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	sessionID := getSessionID(c)
	if sessionID == "" {
		h.Error(c, http.StatusBadRequest, "SESSION_REQUIRED", "The "+SessionHeader+" header is required")
		return
	}

	var req checkoutapp.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	resp, err := h.service.Checkout(c.Request.Context(), sessionID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// State reports the current checkout state for the session
func (h *CheckoutHandler) State(c *gin.Context) {
	sessionID := getSessionID(c)
	if sessionID == "" {
		h.Error(c, http.StatusBadRequest, "SESSION_REQUIRED", "The "+SessionHeader+" header is required")
		return
	}

	h.Success(c, gin.H{"state": h.service.State(sessionID).String()})
}

// RegisterRoutes registers all checkout routes
func (h *CheckoutHandler) RegisterRoutes(rg *gin.RouterGroup) {
	checkout := rg.Group("/checkout")
	{
		checkout.POST("", h.Checkout)
		checkout.GET("/state", h.State)
	}
}
