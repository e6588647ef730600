package cart

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeno/cartsync/internal/domain/shared/valueobject"
)

// Test helpers

func createTestItem(t *testing.T, catalogID string, quantity int, price float64, vendorID string) *CartItem {
	item, err := NewCartItem(catalogID, ItemKindPhysicalGood, quantity, valueobject.NewMoneyKESFromFloat(price), vendorID)
	require.NoError(t, err)
	return item
}

// ============================================
// ItemKind Tests
// ============================================

func TestItemKind_IsValid(t *testing.T) {
	tests := []struct {
		kind    ItemKind
		isValid bool
	}{
		{ItemKindPhysicalGood, true},
		{ItemKindService, true},
		{ItemKind("gas_product"), false},
		{ItemKind(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.isValid, tt.kind.IsValid())
		})
	}
}

// ============================================
// NewCartItem Tests
// ============================================

func TestNewCartItem(t *testing.T) {
	t.Run("creates valid item", func(t *testing.T) {
		item, err := NewCartItem("prod-1", ItemKindPhysicalGood, 2, valueobject.NewMoneyKESFromFloat(1500), "vendor-1")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, item.ItemID)
		assert.Equal(t, "prod-1", item.CatalogItemID)
		assert.Equal(t, 2, item.Quantity)
		assert.True(t, item.TotalPrice.Equal(decimal.NewFromInt(3000)))
		assert.True(t, item.Available)
	})

	t.Run("rejects empty catalog reference", func(t *testing.T) {
		_, err := NewCartItem("", ItemKindPhysicalGood, 1, valueobject.NewMoneyKESFromFloat(100), "vendor-1")
		assert.Error(t, err)
	})

	t.Run("rejects invalid kind", func(t *testing.T) {
		_, err := NewCartItem("prod-1", ItemKind("bogus"), 1, valueobject.NewMoneyKESFromFloat(100), "vendor-1")
		assert.Error(t, err)
	})

	t.Run("rejects zero quantity", func(t *testing.T) {
		_, err := NewCartItem("prod-1", ItemKindPhysicalGood, 0, valueobject.NewMoneyKESFromFloat(100), "vendor-1")
		assert.Error(t, err)
	})

	t.Run("rejects empty vendor", func(t *testing.T) {
		_, err := NewCartItem("prod-1", ItemKindPhysicalGood, 1, valueobject.NewMoneyKESFromFloat(100), "")
		assert.Error(t, err)
	})
}

// ============================================
// Cart Tests
// ============================================

func TestCart_Put(t *testing.T) {
	t.Run("adds new line", func(t *testing.T) {
		c := NewCart("session-1")
		item := createTestItem(t, "prod-1", 2, 1500, "vendor-1")

		added, err := c.Put(*item)
		require.NoError(t, err)
		assert.Len(t, c.Items, 1)
		assert.Equal(t, 2, added.Quantity)
		assert.Equal(t, 2, c.ItemCount)
		assert.True(t, c.TotalAmount.Equal(decimal.NewFromInt(3000)))
	})

	t.Run("merges quantity for same catalog item", func(t *testing.T) {
		c := NewCart("session-1")
		first := createTestItem(t, "prod-1", 2, 1500, "vendor-1")
		second := createTestItem(t, "prod-1", 3, 1500, "vendor-1")

		_, err := c.Put(*first)
		require.NoError(t, err)
		merged, err := c.Put(*second)
		require.NoError(t, err)

		assert.Len(t, c.Items, 1)
		assert.Equal(t, 5, merged.Quantity)
		// identity of the original line survives the merge
		assert.Equal(t, first.ItemID, merged.ItemID)
		assert.True(t, c.TotalAmount.Equal(decimal.NewFromInt(7500)))
	})

	t.Run("rejects zero quantity", func(t *testing.T) {
		c := NewCart("session-1")
		item := createTestItem(t, "prod-1", 1, 100, "vendor-1")
		item.Quantity = 0

		_, err := c.Put(*item)
		assert.Error(t, err)
		assert.Empty(t, c.Items)
	})

	t.Run("publishes events", func(t *testing.T) {
		c := NewCart("session-1")
		item := createTestItem(t, "prod-1", 1, 100, "vendor-1")

		_, err := c.Put(*item)
		require.NoError(t, err)
		events := c.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeItemAdded, events[0].EventType())
	})
}

func TestCart_SetQuantity(t *testing.T) {
	t.Run("updates quantity and total", func(t *testing.T) {
		c := NewCart("session-1")
		item := createTestItem(t, "prod-1", 2, 1000, "vendor-1")
		added, err := c.Put(*item)
		require.NoError(t, err)

		err = c.SetQuantity(added.ItemID, 5, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 5, c.Items[0].Quantity)
		assert.True(t, c.TotalAmount.Equal(decimal.NewFromInt(5000)))
	})

	t.Run("zero quantity removes the line", func(t *testing.T) {
		c := NewCart("session-1")
		item := createTestItem(t, "prod-1", 2, 1000, "vendor-1")
		added, err := c.Put(*item)
		require.NoError(t, err)

		err = c.SetQuantity(added.ItemID, 0, time.Now())
		require.NoError(t, err)
		assert.True(t, c.IsEmpty())
		assert.Equal(t, 0, c.ItemCount)
	})

	t.Run("unknown item errors", func(t *testing.T) {
		c := NewCart("session-1")
		err := c.SetQuantity(uuid.New(), 2, time.Now())
		assert.Error(t, err)
	})
}

func TestCart_Remove(t *testing.T) {
	c := NewCart("session-1")
	first := createTestItem(t, "prod-1", 1, 500, "vendor-1")
	second := createTestItem(t, "prod-2", 1, 700, "vendor-1")
	addedFirst, err := c.Put(*first)
	require.NoError(t, err)
	_, err = c.Put(*second)
	require.NoError(t, err)

	err = c.Remove(addedFirst.ItemID)
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)
	assert.Equal(t, "prod-2", c.Items[0].CatalogItemID)
	assert.True(t, c.TotalAmount.Equal(decimal.NewFromInt(700)))
}

func TestCart_Clear(t *testing.T) {
	c := NewCart("session-1")
	item := createTestItem(t, "prod-1", 3, 200, "vendor-1")
	_, err := c.Put(*item)
	require.NoError(t, err)
	c.ClearDomainEvents()

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.True(t, c.TotalAmount.IsZero())
	events := c.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeCleared, events[0].EventType())

	// Clearing an empty cart is a no-op
	c.ClearDomainEvents()
	c.Clear()
	assert.Empty(t, c.GetDomainEvents())
}

func TestCart_VendorID(t *testing.T) {
	c := NewCart("session-1")
	assert.Equal(t, "", c.VendorID())

	item := createTestItem(t, "prod-1", 1, 100, "vendor-7")
	_, err := c.Put(*item)
	require.NoError(t, err)
	assert.Equal(t, "vendor-7", c.VendorID())
}

func TestCart_Clone(t *testing.T) {
	c := NewCart("session-1")
	item := createTestItem(t, "prod-1", 2, 1000, "vendor-1")
	stock := 5
	item.StockQuantity = &stock
	item.Modifiers = map[string]any{"include_cylinder": true}
	_, err := c.Put(*item)
	require.NoError(t, err)
	remoteID := "42"
	c.RemoteID = &remoteID

	dup := c.Clone()

	// The clone shares nothing mutable with the original
	*dup.Items[0].StockQuantity = 99
	dup.Items[0].Modifiers["include_cylinder"] = false
	*dup.RemoteID = "other"

	assert.Equal(t, 5, *c.Items[0].StockQuantity)
	assert.Equal(t, true, c.Items[0].Modifiers["include_cylinder"])
	assert.Equal(t, "42", *c.RemoteID)
	assert.Empty(t, dup.GetDomainEvents())
}
