package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/zeno/cartsync/internal/domain/backend"
	"github.com/zeno/cartsync/internal/infrastructure/config"
)

// defaultMaxResponseBytes caps how much of a backend response is read (1MB)
const defaultMaxResponseBytes = 1 << 20

// Client is the shared HTTP transport for all backend gateways. It owns
// URL construction, auth headers, bounded response reads and the
// mapping of transport outcomes onto the backend error taxonomy.
type Client struct {
	baseURL          string
	httpClient       *http.Client
	maxResponseBytes int64
}

// NewClient creates a backend HTTP client. Per-call deadlines come from
// the request context, so the http.Client itself carries no timeout.
func NewClient(cfg config.BackendConfig) *Client {
	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponseBytes
	}
	return &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:       &http.Client{},
		maxResponseBytes: maxBytes,
	}
}

// Do issues one request and decodes the JSON response body. A nil body
// sends no payload; a nil out discards the response body.
func (c *Client) Do(ctx context.Context, op, method, path, token string, body, out any) error {
	return c.do(ctx, op, method, path, token, body, out)
}

// do issues one request and decodes the JSON response body. A nil body
// sends no payload; a nil out discards the response body.
func (c *Client) do(ctx context.Context, op, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// No response obtained: connection failure, timeout or cancellation
		return &backend.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes))
	if err != nil {
		return &backend.NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		detail, _ := parseErrorBody(payload)
		return &backend.AuthError{Op: op, Detail: detail}
	}
	if resp.StatusCode >= 400 {
		detail, fieldErrors := parseErrorBody(payload)
		return &backend.ServerError{
			Op:          op,
			StatusCode:  resp.StatusCode,
			Detail:      detail,
			FieldErrors: fieldErrors,
		}
	}

	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &backend.ServerError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Detail:     "unparseable response body",
		}
	}
	return nil
}

// parseErrorBody extracts the human detail and any per-field errors from
// a backend error payload. The backend answers either with a single
// message under "error" or "detail", or with a field-to-messages map.
func parseErrorBody(payload []byte) (string, map[string]string) {
	if len(payload) == 0 {
		return "", nil
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return "", nil
	}

	for _, key := range []string{"error", "detail", "message"} {
		if msg, ok := raw[key].(string); ok && msg != "" {
			return msg, nil
		}
	}

	// Field-validation shape: {"field": ["msg", ...], ...}
	fieldErrors := make(map[string]string)
	for field, value := range raw {
		switch v := value.(type) {
		case string:
			fieldErrors[field] = v
		case []any:
			if len(v) > 0 {
				if msg, ok := v[0].(string); ok {
					fieldErrors[field] = msg
				}
			}
		}
	}
	if len(fieldErrors) == 0 {
		return "", nil
	}
	return "", fieldErrors
}
