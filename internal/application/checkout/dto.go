package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zeno/cartsync/internal/domain/cart"
	"github.com/zeno/cartsync/internal/domain/order"
)

// ==================== Checkout DTOs ====================

// CheckoutRequest represents a request to convert the cart into an order
type CheckoutRequest struct {
	DeliveryType        string   `json:"delivery_type" binding:"required,oneof=delivery pickup on_site"`
	DeliveryAddress     string   `json:"delivery_address" binding:"omitempty,max=500"`
	LocationLat         *float64 `json:"location_lat"`
	LocationLng         *float64 `json:"location_lng"`
	SpecialInstructions string   `json:"special_instructions" binding:"omitempty,max=1000"`

	// IdempotencyKey deduplicates retried submissions; one is generated
	// when the client does not supply it
	IdempotencyKey string `json:"idempotency_key" binding:"omitempty,max=128"`
}

// OrderLineResponse represents one line of a created order
type OrderLineResponse struct {
	CatalogItemID string          `json:"catalog_item_id"`
	ItemKind      string          `json:"item_kind"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
}

// OrderResponse represents the backend-accepted order
type OrderResponse struct {
	ID          string              `json:"id"`
	VendorID    string              `json:"vendor_id"`
	Lines       []OrderLineResponse `json:"items"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	Status      string              `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
}

// CheckoutResponse reports the outcome of a checkout attempt
type CheckoutResponse struct {
	State string         `json:"state"`
	Order *OrderResponse `json:"order,omitempty"`
}

// ToOrderResponse converts a domain order to its response DTO
func ToOrderResponse(o *order.Order) OrderResponse {
	lines := make([]OrderLineResponse, 0, len(o.Lines))
	for _, line := range o.Lines {
		lines = append(lines, OrderLineResponse{
			CatalogItemID: line.CatalogItemID,
			ItemKind:      line.Kind.String(),
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
		})
	}
	return OrderResponse{
		ID:          o.ID,
		VendorID:    o.VendorID,
		Lines:       lines,
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
		CreatedAt:   o.CreatedAt,
	}
}

func (r CheckoutRequest) deliveryDetails() order.DeliveryDetails {
	return order.DeliveryDetails{
		Type:                order.DeliveryType(r.DeliveryType),
		Address:             r.DeliveryAddress,
		Latitude:            r.LocationLat,
		Longitude:           r.LocationLng,
		SpecialInstructions: r.SpecialInstructions,
	}
}

// violationsOrNil keeps empty violation slices out of JSON payloads
func violationsOrNil(violations []cart.Violation) []cart.Violation {
	if len(violations) == 0 {
		return nil
	}
	return violations
}
