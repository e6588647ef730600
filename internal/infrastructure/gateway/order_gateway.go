package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zeno/cartsync/internal/domain/backend"
	"github.com/zeno/cartsync/internal/domain/cart"
	"github.com/zeno/cartsync/internal/domain/order"
)

// HTTPOrderGateway implements backend.OrderGateway against the
// marketplace order API. The caller guarantees at-most-one call per
// checkout attempt; this type adds no retry of its own.
type HTTPOrderGateway struct {
	client *Client
}

// NewHTTPOrderGateway creates the order gateway
func NewHTTPOrderGateway(client *Client) *HTTPOrderGateway {
	return &HTTPOrderGateway{client: client}
}

// CreateOrder submits an order draft as a mixed order: one request
// carrying every line plus the delivery details
func (g *HTTPOrderGateway) CreateOrder(ctx context.Context, token string, draft *order.Draft) (*order.Order, error) {
	items := make([]map[string]any, 0, len(draft.Lines))
	for _, line := range draft.Lines {
		itemType := "gas_product"
		if line.Kind == cart.ItemKindService {
			itemType = "service"
		}
		item := map[string]any{
			"type":       itemType,
			"item_id":    line.CatalogItemID,
			"quantity":   line.Quantity,
			"unit_price": line.UnitPrice,
		}
		for key, value := range line.Modifiers {
			item[key] = value
		}
		items = append(items, item)
	}

	body := map[string]any{
		"order_type":           "mixed",
		"vendor_id":            draft.VendorID,
		"items":                items,
		"total_amount":         draft.TotalAmount,
		"delivery_type":        string(draft.Delivery.Type),
		"delivery_address":     draft.Delivery.Address,
		"special_instructions": draft.Delivery.SpecialInstructions,
	}
	if draft.Delivery.Latitude != nil {
		body["location_lat"] = *draft.Delivery.Latitude
	}
	if draft.Delivery.Longitude != nil {
		body["location_lng"] = *draft.Delivery.Longitude
	}

	var payload map[string]any
	if err := g.client.do(ctx, "create order", http.MethodPost, "/api/orders/orders/", token, body, &payload); err != nil {
		return nil, err
	}

	created, err := parseOrder(payload, draft)
	if err != nil {
		return nil, &backend.ServerError{
			Op:         "create order",
			StatusCode: http.StatusCreated,
			Detail:     err.Error(),
		}
	}
	return created, nil
}

// parseOrder decodes the backend's order representation, falling back to
// the draft for fields the response omits
func parseOrder(payload map[string]any, draft *order.Draft) (*order.Order, error) {
	id := stringValue(payload, "id", "order_id")
	if id == "" {
		return nil, fmt.Errorf("order response carries no id")
	}

	total := draft.TotalAmount
	if raw, ok := payload["total_amount"]; ok {
		if parsed, err := decimalValue(raw); err == nil {
			total = parsed
		}
	}

	status := stringValue(payload, "status")
	if status == "" {
		status = "pending"
	}

	createdAt := time.Now()
	if raw, ok := payload["created_at"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			createdAt = parsed
		}
	}

	return &order.Order{
		ID:          id,
		VendorID:    draft.VendorID,
		Lines:       draft.Lines,
		TotalAmount: total,
		Delivery:    draft.Delivery,
		Status:      status,
		CreatedAt:   createdAt,
	}, nil
}

func stringValue(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

func decimalValue(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported amount type %T", raw)
	}
}

var _ backend.OrderGateway = (*HTTPOrderGateway)(nil)
