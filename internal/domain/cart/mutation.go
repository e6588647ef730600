package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MutationKind identifies the cart operation a mutation performs
type MutationKind string

const (
	MutationAddItem    MutationKind = "add_item"
	MutationUpdateItem MutationKind = "update_item"
	MutationRemoveItem MutationKind = "remove_item"
	MutationClear      MutationKind = "clear"
)

// IsValid checks if the kind is a known MutationKind
func (k MutationKind) IsValid() bool {
	switch k {
	case MutationAddItem, MutationUpdateItem, MutationRemoveItem, MutationClear:
		return true
	}
	return false
}

// String returns the string representation of MutationKind
func (k MutationKind) String() string {
	return string(k)
}

// Mutation is one intended change to the cart. Mutations are issued by
// the user, serialized per session by the dispatcher and replayed after
// offline periods; IssuedAt is the client timestamp that arbitrates
// last-write-wins when responses arrive out of order.
type Mutation struct {
	ID        uuid.UUID       `json:"id"`
	Kind      MutationKind    `json:"kind"`
	SessionID string          `json:"session_id"`
	ItemID    uuid.UUID       `json:"item_id,omitempty"`
	CatalogID string          `json:"catalog_item_id,omitempty"`
	VendorID  string          `json:"vendor_id,omitempty"`
	ItemKind  ItemKind        `json:"item_kind,omitempty"`
	Quantity  int             `json:"quantity,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price,omitempty"`
	Modifiers map[string]any  `json:"modifiers,omitempty"`
	IssuedAt  time.Time       `json:"issued_at"`
}

// NewAddItemMutation creates an add_item mutation
func NewAddItemMutation(sessionID string, item *CartItem) Mutation {
	return Mutation{
		ID:        uuid.New(),
		Kind:      MutationAddItem,
		SessionID: sessionID,
		ItemID:    item.ItemID,
		CatalogID: item.CatalogItemID,
		VendorID:  item.VendorID,
		ItemKind:  item.Kind,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
		Modifiers: item.Modifiers,
		IssuedAt:  time.Now(),
	}
}

// NewUpdateItemMutation creates an update_item mutation
func NewUpdateItemMutation(sessionID string, itemID uuid.UUID, quantity int) Mutation {
	return Mutation{
		ID:        uuid.New(),
		Kind:      MutationUpdateItem,
		SessionID: sessionID,
		ItemID:    itemID,
		Quantity:  quantity,
		IssuedAt:  time.Now(),
	}
}

// NewRemoveItemMutation creates a remove_item mutation
func NewRemoveItemMutation(sessionID string, itemID uuid.UUID) Mutation {
	return Mutation{
		ID:        uuid.New(),
		Kind:      MutationRemoveItem,
		SessionID: sessionID,
		ItemID:    itemID,
		IssuedAt:  time.Now(),
	}
}

// NewClearMutation creates a clear mutation
func NewClearMutation(sessionID string) Mutation {
	return Mutation{
		ID:        uuid.New(),
		Kind:      MutationClear,
		SessionID: sessionID,
		IssuedAt:  time.Now(),
	}
}

// TargetsItem returns true if the mutation addresses a specific cart line
func (m Mutation) TargetsItem() bool {
	return m.Kind == MutationUpdateItem || m.Kind == MutationRemoveItem
}

// Supersedes reports whether this mutation makes a queued earlier one
// redundant: a later quantity edit or removal of the same line replaces
// a pending quantity edit, so only the latest intent is sent.
func (m Mutation) Supersedes(other Mutation) bool {
	if other.Kind != MutationUpdateItem {
		return false
	}
	if !m.TargetsItem() || m.ItemID != other.ItemID {
		return false
	}
	return !m.IssuedAt.Before(other.IssuedAt)
}
