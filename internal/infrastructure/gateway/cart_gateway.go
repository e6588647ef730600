package gateway

import (
	"context"
	"net/http"

	"github.com/zeno/cartsync/internal/domain/backend"
	"github.com/zeno/cartsync/internal/domain/cart"
)

// HTTPCartGateway implements backend.CartGateway against the
// marketplace cart API. Each method is one call; payloads come back raw
// for the normalizer.
type HTTPCartGateway struct {
	client *Client
}

// NewHTTPCartGateway creates the cart gateway
func NewHTTPCartGateway(client *Client) *HTTPCartGateway {
	return &HTTPCartGateway{client: client}
}

// FetchCart retrieves the authenticated user's server-side cart
func (g *HTTPCartGateway) FetchCart(ctx context.Context, token string) (map[string]any, error) {
	var payload map[string]any
	if err := g.client.do(ctx, "fetch cart", http.MethodGet, "/api/orders/cart/my_cart/", token, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// AddItem adds a catalog item to the server cart. Services and physical
// goods go through separate endpoints; the backend merges quantities
// when the item is already present.
func (g *HTTPCartGateway) AddItem(ctx context.Context, token, catalogItemID, kind string, quantity int, modifiers map[string]any, vendorID string) (map[string]any, error) {
	path := "/api/orders/cart/add_gas_product/"
	body := map[string]any{
		"product_id": catalogItemID,
		"quantity":   quantity,
		"vendor_id":  vendorID,
	}
	if cart.ItemKind(kind) == cart.ItemKindService {
		path = "/api/orders/cart/add_item/"
		body = map[string]any{
			"service_id": catalogItemID,
			"quantity":   quantity,
			"vendor_id":  vendorID,
		}
	}
	for key, value := range modifiers {
		body[key] = value
	}

	var payload map[string]any
	if err := g.client.do(ctx, "add cart item", http.MethodPost, path, token, body, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// UpdateItem changes a line's quantity on the server cart; the backend
// removes the line when the quantity is zero or less
func (g *HTTPCartGateway) UpdateItem(ctx context.Context, token, itemID string, quantity int) (map[string]any, error) {
	body := map[string]any{
		"item_id":  itemID,
		"quantity": quantity,
	}
	var payload map[string]any
	if err := g.client.do(ctx, "update cart item", http.MethodPost, "/api/orders/cart/update_quantity/", token, body, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// RemoveItem deletes a line from the server cart
func (g *HTTPCartGateway) RemoveItem(ctx context.Context, token, itemID string) error {
	body := map[string]any{"item_id": itemID}
	return g.client.do(ctx, "remove cart item", http.MethodPost, "/api/orders/cart/remove_item/", token, body, nil)
}

// Clear empties the server cart
func (g *HTTPCartGateway) Clear(ctx context.Context, token string) error {
	return g.client.do(ctx, "clear cart", http.MethodPost, "/api/orders/cart/clear/", token, nil, nil)
}

var _ backend.CartGateway = (*HTTPCartGateway)(nil)
