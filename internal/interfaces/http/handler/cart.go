package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cartapp "github.com/zeno/cartsync/internal/application/cart"
	"github.com/zeno/cartsync/internal/interfaces/http/dto"
	"github.com/zeno/cartsync/internal/interfaces/http/middleware"
)

// CartHandler handles cart HTTP requests
type CartHandler struct {
	BaseHandler
	service *cartapp.Service
	logger  *zap.Logger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(service *cartapp.Service, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		logger:  logger,
	}
}

// requireSession aborts with 400 when the session header is missing
func (h *CartHandler) requireSession(c *gin.Context) (string, bool) {
	sessionID := getSessionID(c)
	if sessionID == "" {
		h.Error(c, http.StatusBadRequest, "SESSION_REQUIRED", "The "+SessionHeader+" header is required")
		return "", false
	}
	return sessionID, true
}

// GetCart returns the locally stored cart for the session
func (h *CartHandler) GetCart(c *gin.Context) {
	sessionID, ok := h.requireSession(c)
	if !ok {
		return
	}

	resp, err := h.service.GetCart(c.Request.Context(), sessionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// AddItem adds an item to the cart
func (h *CartHandler) AddItem(c *gin.Context) {
	sessionID, ok := h.requireSession(c)
	if !ok {
		return
	}

	var req cartapp.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	resp, err := h.service.AddItem(c.Request.Context(), sessionID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpdateItem changes the quantity of a cart line. Quantity zero
// removes the line.
func (h *CartHandler) UpdateItem(c *gin.Context) {
	sessionID, ok := h.requireSession(c)
	if !ok {
		return
	}

	var req cartapp.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	resp, err := h.service.UpdateItem(c.Request.Context(), sessionID, c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RemoveItem removes a line from the cart
func (h *CartHandler) RemoveItem(c *gin.Context) {
	sessionID, ok := h.requireSession(c)
	if !ok {
		return
	}

	resp, err := h.service.RemoveItem(c.Request.Context(), sessionID, c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ClearCart empties the cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	sessionID, ok := h.requireSession(c)
	if !ok {
		return
	}

	resp, err := h.service.ClearCart(c.Request.Context(), sessionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Sync reconciles the local cart with the remote account cart
func (h *CartHandler) Sync(c *gin.Context) {
	sessionID, ok := h.requireSession(c)
	if !ok {
		return
	}

	resp, err := h.service.Sync(c.Request.Context(), sessionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Status reports connectivity and the pending replay backlog
func (h *CartHandler) Status(c *gin.Context) {
	sessionID, ok := h.requireSession(c)
	if !ok {
		return
	}

	resp, err := h.service.Status(c.Request.Context(), sessionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

type onlineRequest struct {
	Online bool `json:"online"`
}

// SetOnline flips connectivity. Going online replays deferred
// mutations and re-syncs.
func (h *CartHandler) SetOnline(c *gin.Context) {
	sessionID, ok := h.requireSession(c)
	if !ok {
		return
	}

	var req onlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	resp, err := h.service.SetOnline(c.Request.Context(), sessionID, req.Online)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Logout discards the local cart for the session
func (h *CartHandler) Logout(c *gin.Context) {
	sessionID, ok := h.requireSession(c)
	if !ok {
		return
	}

	if err := h.service.Logout(c.Request.Context(), sessionID); err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"message": "logged out"}))
}

// RegisterRoutes registers all cart routes
func (h *CartHandler) RegisterRoutes(rg *gin.RouterGroup) {
	carts := rg.Group("/cart")
	{
		carts.GET("", h.GetCart)
		carts.POST("/items", h.AddItem)
		carts.PATCH("/items/:id", h.UpdateItem)
		carts.DELETE("/items/:id", h.RemoveItem)
		carts.DELETE("", h.ClearCart)
		carts.POST("/sync", h.Sync)
		carts.GET("/status", h.Status)
		carts.POST("/online", h.SetOnline)
		carts.POST("/logout", h.Logout)
	}
}
