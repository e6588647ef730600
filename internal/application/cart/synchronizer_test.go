package cart

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zeno/cartsync/internal/domain/cart"
)

func newTestSynchronizer() *Synchronizer {
	return NewSynchronizer(cart.NewNormalizer(cart.ItemKindPhysicalGood), zap.NewNop())
}

func localCartWith(t *testing.T, catalogIDs ...string) *cart.Cart {
	t.Helper()
	c := cart.NewCart("session-1")
	for _, id := range catalogIDs {
		item := cart.CartItem{
			ItemID:        [16]byte{byte(len(c.Items) + 1)},
			CatalogItemID: id,
			Kind:          cart.ItemKindPhysicalGood,
			Quantity:      2,
			UnitPrice:     decimal.NewFromInt(1000),
			VendorID:      "vendor-1",
			Available:     true,
			AddedAt:       time.Now(),
			UpdatedAt:     time.Now(),
		}
		_, err := c.Put(item)
		require.NoError(t, err)
	}
	c.ClearDomainEvents()
	return c
}

func remotePayload(items ...map[string]any) map[string]any {
	raw := make([]any, 0, len(items))
	for _, item := range items {
		raw = append(raw, any(item))
	}
	return map[string]any{"id": float64(42), "items": raw}
}

func TestSynchronizer_Merge(t *testing.T) {
	s := newTestSynchronizer()

	t.Run("local intent wins over remote list", func(t *testing.T) {
		local := localCartWith(t, "prod-1")
		merged := s.Merge(local, remotePayload(
			map[string]any{"catalog_item_id": "prod-1", "quantity": 9, "unit_price": "1000", "vendor_id": "vendor-1"},
			map[string]any{"catalog_item_id": "prod-other", "quantity": 1, "unit_price": "500", "vendor_id": "vendor-1"},
		))

		// The local line list is the base: remote quantity and the
		// remote-only line are not adopted
		require.Len(t, merged.Items, 1)
		assert.Equal(t, 2, merged.Items[0].Quantity)
	})

	t.Run("availability overlay applied from remote", func(t *testing.T) {
		local := localCartWith(t, "prod-1")
		merged := s.Merge(local, remotePayload(
			map[string]any{
				"catalog_item_id": "prod-1",
				"quantity":        2,
				"unit_price":      "1000",
				"vendor_id":       "vendor-1",
				"stock_quantity":  float64(3),
				"is_available":    false,
			},
		))

		require.Len(t, merged.Items, 1)
		require.NotNil(t, merged.Items[0].StockQuantity)
		assert.Equal(t, 3, *merged.Items[0].StockQuantity)
		assert.False(t, merged.Items[0].Available)
		// quantity and price are not touched by the overlay
		assert.Equal(t, 2, merged.Items[0].Quantity)
	})

	t.Run("empty remote leaves local standing", func(t *testing.T) {
		local := localCartWith(t, "prod-1", "prod-2")
		merged := s.Merge(local, map[string]any{"id": float64(42), "items": []any{}})
		assert.Len(t, merged.Items, 2)
		require.NotNil(t, merged.RemoteID)
		assert.Equal(t, "42", *merged.RemoteID)
	})

	t.Run("empty local adopts remote", func(t *testing.T) {
		local := cart.NewCart("session-1")
		merged := s.Merge(local, remotePayload(
			map[string]any{"catalog_item_id": "prod-9", "quantity": 1, "unit_price": "750", "vendor_id": "vendor-1"},
		))
		require.Len(t, merged.Items, 1)
		assert.Equal(t, "prod-9", merged.Items[0].CatalogItemID)
		assert.True(t, merged.TotalAmount.Equal(decimal.NewFromInt(750)))
	})

	t.Run("both empty stays empty", func(t *testing.T) {
		merged := s.Merge(cart.NewCart("session-1"), nil)
		assert.True(t, merged.IsEmpty())
	})

	t.Run("totals recomputed from merged items", func(t *testing.T) {
		local := localCartWith(t, "prod-1", "prod-2")
		merged := s.Merge(local, remotePayload(
			map[string]any{"catalog_item_id": "prod-1", "quantity": 2, "unit_price": "1000", "vendor_id": "vendor-1"},
		))
		assert.True(t, merged.TotalAmount.Equal(decimal.NewFromInt(4000)))
		assert.Equal(t, 4, merged.ItemCount)
	})

	t.Run("merge emits synchronized event", func(t *testing.T) {
		local := localCartWith(t, "prod-1")
		merged := s.Merge(local, nil)
		events := merged.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, cart.EventTypeSynchronized, events[0].EventType())
	})

	t.Run("existing remote id is kept", func(t *testing.T) {
		local := localCartWith(t, "prod-1")
		existing := "7"
		local.RemoteID = &existing
		merged := s.Merge(local, remotePayload())
		assert.Equal(t, "7", *merged.RemoteID)
	})
}
