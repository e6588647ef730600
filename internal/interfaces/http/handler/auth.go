package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cartapp "github.com/zeno/cartsync/internal/application/cart"
	"github.com/zeno/cartsync/internal/infrastructure/auth"
	"github.com/zeno/cartsync/internal/interfaces/http/middleware"
)

// AuthHandler manages the backend token pair held by the sync layer.
// Tokens are issued by the backend's own login flow; this surface only
// installs and revokes them.
type AuthHandler struct {
	BaseHandler
	tokens *auth.TokenSource
	carts  *cartapp.Service
	logger *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(tokens *auth.TokenSource, carts *cartapp.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		tokens: tokens,
		carts:  carts,
		logger: logger,
	}
}

type setTokensRequest struct {
	AccessToken  string `json:"access_token" binding:"required"`
	RefreshToken string `json:"refresh_token"`
}

// SetTokens installs a token pair after a successful backend login.
// The next dispatched mutation runs authenticated and a sync pulls the
// account cart.
func (h *AuthHandler) SetTokens(c *gin.Context) {
	sessionID := getSessionID(c)
	if sessionID == "" {
		h.Error(c, http.StatusBadRequest, "SESSION_REQUIRED", "The "+SessionHeader+" header is required")
		return
	}

	var req setTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	h.tokens.SetTokens(req.AccessToken, req.RefreshToken)
	h.logger.Info("session tokens installed", zap.String("session_id", sessionID))

	resp, err := h.carts.Sync(c.Request.Context(), sessionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ClearTokens revokes the token pair and discards the local cart
func (h *AuthHandler) ClearTokens(c *gin.Context) {
	sessionID := getSessionID(c)
	if sessionID == "" {
		h.Error(c, http.StatusBadRequest, "SESSION_REQUIRED", "The "+SessionHeader+" header is required")
		return
	}

	h.tokens.ClearTokens()
	if err := h.carts.Logout(c.Request.Context(), sessionID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.logger.Info("session tokens cleared", zap.String("session_id", sessionID))
	h.Success(c, gin.H{"message": "session ended"})
}

// RegisterRoutes registers all auth routes
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	session := rg.Group("/session")
	{
		session.POST("/tokens", h.SetTokens)
		session.DELETE("/tokens", h.ClearTokens)
	}
}
