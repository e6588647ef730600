// Package auth holds the client-side token handling for the backend
// session: caching the access token, reading its expiry and exchanging
// the refresh credential. Tokens are verified by the backend, never
// here; claims are only inspected to avoid sending a token that is
// already expired.
package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/zeno/cartsync/internal/domain/backend"
)

// expiryLeeway is subtracted from the token expiry so a token about to
// expire mid-request is refreshed up front
const expiryLeeway = 30 * time.Second

// RefreshClient exchanges a refresh credential for a new access token
type RefreshClient interface {
	RefreshToken(ctx context.Context, refreshToken string) (access string, refresh string, err error)
}

// TokenSource implements backend.TokenSource over an in-memory token
// pair. An empty access token means a guest session.
type TokenSource struct {
	refresher RefreshClient
	logger    *zap.Logger

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// NewTokenSource creates a token source. Both tokens may be empty for a
// guest session.
func NewTokenSource(refresher RefreshClient, logger *zap.Logger) *TokenSource {
	return &TokenSource{refresher: refresher, logger: logger}
}

// SetTokens installs a new token pair after login
func (s *TokenSource) SetTokens(access, refresh string) {
	s.mu.Lock()
	s.accessToken = access
	s.refreshToken = refresh
	s.mu.Unlock()
}

// ClearTokens drops the session, returning to guest state
func (s *TokenSource) ClearTokens() {
	s.SetTokens("", "")
}

// Current returns the cached access token, refreshing up front when the
// token's own expiry claim says it is no longer usable. Empty means
// guest.
func (s *TokenSource) Current(ctx context.Context) (string, error) {
	s.mu.Lock()
	access := s.accessToken
	refresh := s.refreshToken
	s.mu.Unlock()

	if access == "" {
		return "", nil
	}
	if !expired(access) {
		return access, nil
	}
	if refresh == "" {
		// Expired with nothing to refresh from; the backend will answer
		// 401 and the caller falls back to guest handling
		return access, nil
	}
	return s.Refresh(ctx)
}

// Refresh exchanges the refresh credential for a new access token
// exactly once per call
func (s *TokenSource) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	refresh := s.refreshToken
	s.mu.Unlock()

	if refresh == "" {
		return "", &backend.AuthError{Op: "refresh token", Detail: "no refresh credential"}
	}

	access, rotated, err := s.refresher.RefreshToken(ctx, refresh)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.accessToken = access
	if rotated != "" {
		s.refreshToken = rotated
	}
	s.mu.Unlock()

	s.logger.Debug("access token refreshed")
	return access, nil
}

// expired reads the token's exp claim without verifying the signature.
// Unreadable tokens are treated as live and left for the backend to
// reject.
func expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Now().After(exp.Time.Add(-expiryLeeway))
}

// HTTPRefreshClient implements RefreshClient against the backend auth API
type HTTPRefreshClient struct {
	do func(ctx context.Context, op, method, path, token string, body, out any) error
}

var _ backend.TokenSource = (*TokenSource)(nil)

// refreshRequest and refreshResponse follow the backend token endpoint shape
type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Doer abstracts the shared backend HTTP client
type Doer interface {
	Do(ctx context.Context, op, method, path, token string, body, out any) error
}

// NewHTTPRefreshClient creates a refresh client over the shared backend
// transport
func NewHTTPRefreshClient(doer Doer) *HTTPRefreshClient {
	return &HTTPRefreshClient{do: doer.Do}
}

// RefreshToken exchanges the refresh credential at the token endpoint
func (c *HTTPRefreshClient) RefreshToken(ctx context.Context, refreshToken string) (string, string, error) {
	var resp refreshResponse
	err := c.do(ctx, "refresh token", http.MethodPost, "/api/auth/token/refresh/", "", refreshRequest{Refresh: refreshToken}, &resp)
	if err != nil {
		return "", "", err
	}
	if resp.Access == "" {
		return "", "", &backend.AuthError{Op: "refresh token", Detail: "token endpoint returned no access token"}
	}
	return resp.Access, resp.Refresh, nil
}
