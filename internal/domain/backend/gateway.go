package backend

import (
	"context"

	"github.com/zeno/cartsync/internal/domain/order"
)

// CartGateway is the thin capability over the backend's authoritative
// cart. Each method is one backend call with no embedded retry or merge
// logic; failures follow the package error taxonomy. Cart payloads are
// returned raw for the Normalizer, which owns all shape knowledge.
type CartGateway interface {
	FetchCart(ctx context.Context, token string) (map[string]any, error)
	AddItem(ctx context.Context, token string, catalogItemID string, kind string, quantity int, modifiers map[string]any, vendorID string) (map[string]any, error)
	UpdateItem(ctx context.Context, token string, itemID string, quantity int) (map[string]any, error)
	RemoveItem(ctx context.Context, token string, itemID string) error
	Clear(ctx context.Context, token string) error
}

// OrderGateway submits one order draft to the order-creation endpoint.
// The caller guarantees at-most-one call per checkout attempt.
type OrderGateway interface {
	CreateOrder(ctx context.Context, token string, draft *order.Draft) (*order.Order, error)
}

// TokenSource is the consumed auth capability. Current returns the
// cached access token, empty for guest sessions; Refresh exchanges the
// refresh credential for a new access token exactly once per call.
type TokenSource interface {
	Current(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}
