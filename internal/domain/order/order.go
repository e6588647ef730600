package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zeno/cartsync/internal/domain/cart"
	"github.com/zeno/cartsync/internal/domain/shared"
)

// DeliveryType represents how the order is fulfilled
type DeliveryType string

const (
	DeliveryTypeDelivery DeliveryType = "delivery"
	DeliveryTypePickup   DeliveryType = "pickup"
	DeliveryTypeOnSite   DeliveryType = "on_site"
)

// IsValid checks if the delivery type is known
func (t DeliveryType) IsValid() bool {
	switch t {
	case DeliveryTypeDelivery, DeliveryTypePickup, DeliveryTypeOnSite:
		return true
	}
	return false
}

// DeliveryDetails carries the fulfillment metadata submitted with an
// order. Coordinates are passed through opaque; resolving them is the
// map collaborator's concern.
type DeliveryDetails struct {
	Type                DeliveryType `json:"delivery_type"`
	Address             string       `json:"delivery_address"`
	Latitude            *float64     `json:"location_lat,omitempty"`
	Longitude           *float64     `json:"location_lng,omitempty"`
	SpecialInstructions string       `json:"special_instructions,omitempty"`
}

// Validate checks the delivery details are submittable
func (d DeliveryDetails) Validate() error {
	if !d.Type.IsValid() {
		return shared.NewDomainError("INVALID_DELIVERY_TYPE", "Delivery type must be delivery, pickup or on_site")
	}
	if d.Type != DeliveryTypePickup && d.Address == "" {
		return shared.NewDomainError("INVALID_DELIVERY_ADDRESS", "Delivery address is required")
	}
	return nil
}

// Line is one order line: the cart line reduced to what the backend
// needs to record the purchase
type Line struct {
	CatalogItemID string          `json:"catalog_item_id"`
	Kind          cart.ItemKind   `json:"item_kind"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Modifiers     map[string]any  `json:"modifiers,omitempty"`
}

// Order is the submitted, backend-accepted conversion of a cart into a
// purchase record. ID is assigned by the backend on creation.
type Order struct {
	ID          string          `json:"id"`
	VendorID    string          `json:"vendor_id"`
	Lines       []Line          `json:"lines"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Delivery    DeliveryDetails `json:"delivery"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Draft is the submission payload built from a cart: one line per cart
// item plus the cart's single vendor
type Draft struct {
	VendorID    string          `json:"vendor_id"`
	Lines       []Line          `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Delivery    DeliveryDetails `json:"delivery"`
}

// NewDraft builds an order draft from the current cart. The cart must
// already have passed checkout validation.
func NewDraft(c *cart.Cart, delivery DeliveryDetails) (*Draft, error) {
	if c.IsEmpty() {
		return nil, shared.ErrEmptyCart
	}
	if err := delivery.Validate(); err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(c.Items))
	for idx := range c.Items {
		item := &c.Items[idx]
		lines = append(lines, Line{
			CatalogItemID: item.CatalogItemID,
			Kind:          item.Kind,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			Modifiers:     item.Modifiers,
		})
	}

	return &Draft{
		VendorID:    c.VendorID(),
		Lines:       lines,
		TotalAmount: c.TotalAmount,
		Delivery:    delivery,
	}, nil
}
