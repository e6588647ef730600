package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zeno/cartsync/internal/domain/shared"
	"github.com/zeno/cartsync/internal/domain/shared/valueobject"
)

// ItemKind distinguishes deliverable goods from on-site services
type ItemKind string

const (
	ItemKindPhysicalGood ItemKind = "physical_good"
	ItemKindService      ItemKind = "service"
)

// IsValid checks if the kind is a known ItemKind
func (k ItemKind) IsValid() bool {
	return k == ItemKindPhysicalGood || k == ItemKindService
}

// String returns the string representation of ItemKind
func (k ItemKind) String() string {
	return string(k)
}

// CartItem is one line within a cart: a catalog reference, a quantity and
// a price snapshot taken at add time
type CartItem struct {
	// ItemID is the client-stable identity of this line. It survives
	// synchronization so in-flight mutations can always address the line.
	ItemID        uuid.UUID       `json:"item_id"`
	CatalogItemID string          `json:"catalog_item_id"`
	Kind          ItemKind        `json:"item_kind"`
	Name          string          `json:"name,omitempty"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	VendorID      string          `json:"vendor_id"`
	Modifiers     map[string]any  `json:"modifiers,omitempty"`

	// Availability overlay, refreshed from the backend by the synchronizer.
	// Nil stock means the backend has not reported stock for this item.
	StockQuantity *int `json:"stock_quantity,omitempty"`
	Available     bool `json:"available"`

	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCartItem creates a cart item with a fresh client-stable identity
func NewCartItem(catalogItemID string, kind ItemKind, quantity int, unitPrice valueobject.Money, vendorID string) (*CartItem, error) {
	if catalogItemID == "" {
		return nil, shared.NewDomainError("INVALID_ITEM", "Catalog item ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_ITEM_KIND", "Item kind must be physical_good or service")
	}
	if quantity < 1 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be at least 1")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}
	if vendorID == "" {
		return nil, shared.NewDomainError("INVALID_VENDOR", "Vendor ID cannot be empty")
	}

	now := time.Now()
	price := unitPrice.Amount()
	return &CartItem{
		ItemID:        uuid.New(),
		CatalogItemID: catalogItemID,
		Kind:          kind,
		Quantity:      quantity,
		UnitPrice:     price,
		TotalPrice:    price.Mul(decimal.NewFromInt(int64(quantity))),
		VendorID:      vendorID,
		Available:     true,
		AddedAt:       now,
		UpdatedAt:     now,
	}, nil
}

// SetQuantity updates the quantity and recomputes the line total.
// The at timestamp records when the user issued the change and is the
// basis for last-write-wins arbitration in the dispatcher.
func (i *CartItem) SetQuantity(quantity int, at time.Time) error {
	if quantity < 1 {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity must be at least 1")
	}
	i.Quantity = quantity
	i.TotalPrice = i.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	i.UpdatedAt = at
	return nil
}

// ApplyAvailability overlays backend-reported stock onto the local line
// without touching quantity or price
func (i *CartItem) ApplyAvailability(stock *int, available bool) {
	i.StockQuantity = stock
	i.Available = available
}

// UnitPriceMoney returns the unit price as a Money value object
func (i *CartItem) UnitPriceMoney() valueobject.Money {
	return valueobject.NewMoneyKES(i.UnitPrice)
}

// TotalPriceMoney returns the line total as a Money value object
func (i *CartItem) TotalPriceMoney() valueobject.Money {
	return valueobject.NewMoneyKES(i.TotalPrice)
}
