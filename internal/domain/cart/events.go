package cart

import (
	"github.com/google/uuid"

	"github.com/zeno/cartsync/internal/domain/shared"
)

// Cart event types, published through the event bus for reactive
// consumers (badge counts, totals)
const (
	EventTypeItemAdded    = "cart.item_added"
	EventTypeItemUpdated  = "cart.item_updated"
	EventTypeItemRemoved  = "cart.item_removed"
	EventTypeCleared      = "cart.cleared"
	EventTypeSynchronized = "cart.synchronized"
)

const aggregateTypeCart = "Cart"

// ChangedEvent is the common payload for all cart change notifications
type ChangedEvent struct {
	shared.BaseDomainEvent
	SessionID   string    `json:"session_id"`
	ItemID      uuid.UUID `json:"item_id,omitempty"`
	CatalogID   string    `json:"catalog_item_id,omitempty"`
	Quantity    int       `json:"quantity,omitempty"`
	ItemCount   int       `json:"item_count"`
	TotalAmount string    `json:"total_amount"`
}

func newChangedEvent(eventType string, c *Cart, item *CartItem) *ChangedEvent {
	e := &ChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, aggregateTypeCart, c.ID),
		SessionID:       c.SessionID,
		ItemCount:       c.ItemCount,
		TotalAmount:     c.TotalAmount.String(),
	}
	if item != nil {
		e.ItemID = item.ItemID
		e.CatalogID = item.CatalogItemID
		e.Quantity = item.Quantity
	}
	return e
}

// NewItemAddedEvent creates a cart.item_added event
func NewItemAddedEvent(c *Cart, item *CartItem) *ChangedEvent {
	return newChangedEvent(EventTypeItemAdded, c, item)
}

// NewItemUpdatedEvent creates a cart.item_updated event
func NewItemUpdatedEvent(c *Cart, item *CartItem) *ChangedEvent {
	return newChangedEvent(EventTypeItemUpdated, c, item)
}

// NewItemRemovedEvent creates a cart.item_removed event
func NewItemRemovedEvent(c *Cart, item *CartItem) *ChangedEvent {
	return newChangedEvent(EventTypeItemRemoved, c, item)
}

// NewClearedEvent creates a cart.cleared event
func NewClearedEvent(c *Cart) *ChangedEvent {
	return newChangedEvent(EventTypeCleared, c, nil)
}

// NewSynchronizedEvent creates a cart.synchronized event
func NewSynchronizedEvent(c *Cart) *ChangedEvent {
	return newChangedEvent(EventTypeSynchronized, c, nil)
}
