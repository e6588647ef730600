package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zeno/cartsync/internal/domain/shared"
)

// Cart is the user's in-progress, unsubmitted selection for one vendor.
// TotalAmount and ItemCount are derived: they are recomputed from the
// item list after every mutation and never trusted as stored fields.
type Cart struct {
	shared.BaseAggregateRoot
	// SessionID scopes the cart to one device session
	SessionID string `json:"session_id"`
	// RemoteID is the backend-assigned cart identity; nil for guest or
	// local-only carts that the backend has never seen
	RemoteID    *string         `json:"remote_id,omitempty"`
	Items       []CartItem      `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

// NewCart creates an empty cart for a session
func NewCart(sessionID string) *Cart {
	return &Cart{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SessionID:         sessionID,
		Items:             make([]CartItem, 0),
		TotalAmount:       decimal.Zero,
	}
}

// IsEmpty returns true if the cart holds no items
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// VendorID returns the single vendor the cart references, or "" when empty
func (c *Cart) VendorID() string {
	if len(c.Items) == 0 {
		return ""
	}
	return c.Items[0].VendorID
}

// Put adds an item to the cart, merging quantities when the catalog item
// is already present (the backend upserts the same way)
func (c *Cart) Put(item CartItem) (*CartItem, error) {
	if item.Quantity < 1 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be at least 1")
	}

	for idx := range c.Items {
		if c.Items[idx].CatalogItemID == item.CatalogItemID {
			existing := &c.Items[idx]
			if err := existing.SetQuantity(existing.Quantity+item.Quantity, item.UpdatedAt); err != nil {
				return nil, err
			}
			c.recalculateTotals()
			c.UpdatedAt = time.Now()
			c.AddDomainEvent(NewItemUpdatedEvent(c, existing))
			return existing, nil
		}
	}

	c.Items = append(c.Items, item)
	c.recalculateTotals()
	c.UpdatedAt = time.Now()
	added := &c.Items[len(c.Items)-1]
	c.AddDomainEvent(NewItemAddedEvent(c, added))
	return added, nil
}

// SetQuantity updates the quantity of an existing line. A quantity of
// zero or less removes the line: items are never stored at quantity zero.
func (c *Cart) SetQuantity(itemID uuid.UUID, quantity int, at time.Time) error {
	if quantity <= 0 {
		return c.Remove(itemID)
	}

	for idx := range c.Items {
		if c.Items[idx].ItemID == itemID {
			if err := c.Items[idx].SetQuantity(quantity, at); err != nil {
				return err
			}
			c.recalculateTotals()
			c.UpdatedAt = time.Now()
			c.AddDomainEvent(NewItemUpdatedEvent(c, &c.Items[idx]))
			return nil
		}
	}

	return shared.NewDomainError("ITEM_NOT_FOUND", "Cart item not found")
}

// Remove deletes a line from the cart
func (c *Cart) Remove(itemID uuid.UUID) error {
	for idx := range c.Items {
		if c.Items[idx].ItemID == itemID {
			removed := c.Items[idx]
			c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
			c.recalculateTotals()
			c.UpdatedAt = time.Now()
			c.AddDomainEvent(NewItemRemovedEvent(c, &removed))
			return nil
		}
	}

	return shared.NewDomainError("ITEM_NOT_FOUND", "Cart item not found")
}

// Clear empties the cart
func (c *Cart) Clear() {
	if len(c.Items) == 0 {
		return
	}
	c.Items = c.Items[:0]
	c.recalculateTotals()
	c.UpdatedAt = time.Now()
	c.AddDomainEvent(NewClearedEvent(c))
}

// Item returns a line by its client-stable identity
func (c *Cart) Item(itemID uuid.UUID) *CartItem {
	for idx := range c.Items {
		if c.Items[idx].ItemID == itemID {
			return &c.Items[idx]
		}
	}
	return nil
}

// ItemByCatalogID returns a line by catalog item reference
func (c *Cart) ItemByCatalogID(catalogItemID string) *CartItem {
	for idx := range c.Items {
		if c.Items[idx].CatalogItemID == catalogItemID {
			return &c.Items[idx]
		}
	}
	return nil
}

// recalculateTotals rederives TotalAmount and ItemCount from the items
func (c *Cart) recalculateTotals() {
	total := decimal.Zero
	count := 0
	for idx := range c.Items {
		item := &c.Items[idx]
		item.TotalPrice = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(item.TotalPrice)
		count += item.Quantity
	}
	c.TotalAmount = total
	c.ItemCount = count
}

// RecalculateTotals rederives the cart totals. Exposed for the
// synchronizer, which rebuilds item lists outside the mutators.
func (c *Cart) RecalculateTotals() {
	c.recalculateTotals()
}

// Clone returns a deep copy of the cart without pending domain events
func (c *Cart) Clone() *Cart {
	dup := &Cart{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: c.BaseEntity,
			Version:    c.Version,
		},
		SessionID:   c.SessionID,
		Items:       make([]CartItem, len(c.Items)),
		TotalAmount: c.TotalAmount,
		ItemCount:   c.ItemCount,
	}
	if c.RemoteID != nil {
		id := *c.RemoteID
		dup.RemoteID = &id
	}
	copy(dup.Items, c.Items)
	for idx := range dup.Items {
		if c.Items[idx].StockQuantity != nil {
			stock := *c.Items[idx].StockQuantity
			dup.Items[idx].StockQuantity = &stock
		}
		if c.Items[idx].Modifiers != nil {
			mods := make(map[string]any, len(c.Items[idx].Modifiers))
			for k, v := range c.Items[idx].Modifiers {
				mods[k] = v
			}
			dup.Items[idx].Modifiers = mods
		}
	}
	return dup
}
