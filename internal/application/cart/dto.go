package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zeno/cartsync/internal/domain/cart"
)

// ==================== Cart Mutation DTOs ====================

// AddItemRequest represents a request to add a catalog item to the cart
type AddItemRequest struct {
	CatalogItemID string          `json:"catalog_item_id" binding:"required,min=1,max=64"`
	ItemKind      string          `json:"item_kind" binding:"omitempty,oneof=physical_good service"`
	Name          string          `json:"name" binding:"omitempty,max=200"`
	Quantity      int             `json:"quantity" binding:"required,min=1"`
	UnitPrice     decimal.Decimal `json:"unit_price" binding:"required"`
	VendorID      string          `json:"vendor_id" binding:"required,min=1,max=64"`
	Modifiers     map[string]any  `json:"modifiers"`
}

// UpdateItemRequest represents a quantity change on an existing cart line.
// A quantity of zero removes the line.
type UpdateItemRequest struct {
	Quantity int `json:"quantity" binding:"min=0"`
}

// ==================== Cart Response DTOs ====================

// CartItemResponse represents one cart line in API responses
type CartItemResponse struct {
	ItemID        string          `json:"item_id"`
	CatalogItemID string          `json:"catalog_item_id"`
	ItemKind      string          `json:"item_kind"`
	Name          string          `json:"name,omitempty"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	VendorID      string          `json:"vendor_id"`
	Modifiers     map[string]any  `json:"modifiers,omitempty"`
	StockQuantity *int            `json:"stock_quantity,omitempty"`
	Available     bool            `json:"available"`
	AddedAt       time.Time       `json:"added_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CartResponse represents the cart in API responses
type CartResponse struct {
	SessionID   string             `json:"session_id"`
	RemoteID    *string            `json:"remote_id,omitempty"`
	VendorID    string             `json:"vendor_id,omitempty"`
	Items       []CartItemResponse `json:"items"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Currency    string             `json:"currency"`
	ItemCount   int                `json:"item_count"`

	// Deferred is true when the mutation was applied locally and queued
	// for replay because the backend was unreachable
	Deferred bool `json:"deferred,omitempty"`
	// Warning carries a non-fatal sync condition, such as an expired
	// session that forced a local-only apply
	Warning string `json:"warning,omitempty"`
}

// SyncStatusResponse reports connectivity and replay queue state
type SyncStatusResponse struct {
	Online        bool  `json:"online"`
	PendingReplay int64 `json:"pending_replay"`
}

// ToCartItemResponse converts a domain cart item to its response DTO
func ToCartItemResponse(item *cart.CartItem) CartItemResponse {
	return CartItemResponse{
		ItemID:        item.ItemID.String(),
		CatalogItemID: item.CatalogItemID,
		ItemKind:      item.Kind.String(),
		Name:          item.Name,
		Quantity:      item.Quantity,
		UnitPrice:     item.UnitPrice,
		TotalPrice:    item.TotalPrice,
		VendorID:      item.VendorID,
		Modifiers:     item.Modifiers,
		StockQuantity: item.StockQuantity,
		Available:     item.Available,
		AddedAt:       item.AddedAt,
		UpdatedAt:     item.UpdatedAt,
	}
}

// ToCartResponse converts a domain cart to its response DTO
func ToCartResponse(c *cart.Cart) CartResponse {
	items := make([]CartItemResponse, 0, len(c.Items))
	for idx := range c.Items {
		items = append(items, ToCartItemResponse(&c.Items[idx]))
	}
	return CartResponse{
		SessionID:   c.SessionID,
		RemoteID:    c.RemoteID,
		VendorID:    c.VendorID(),
		Items:       items,
		TotalAmount: c.TotalAmount,
		Currency:    "KES",
		ItemCount:   c.ItemCount,
	}
}

// toResultResponse annotates the cart DTO with the dispatch outcome
func toResultResponse(result *MutationResult) CartResponse {
	resp := ToCartResponse(result.Cart)
	resp.Deferred = result.Deferred
	resp.Warning = result.Warning
	return resp
}
