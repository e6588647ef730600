package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeno/cartsync/internal/domain/shared"
	"github.com/zeno/cartsync/internal/domain/shared/valueobject"
	"github.com/zeno/cartsync/internal/domain/vendor"
)

// fakeDirectory is an in-memory vendor.Directory for validator tests
type fakeDirectory struct {
	vendors map[string]*vendor.Vendor
	stocks  map[string]*vendor.StockInfo
}

func (d *fakeDirectory) GetVendor(_ context.Context, vendorID string) (*vendor.Vendor, error) {
	if v, ok := d.vendors[vendorID]; ok {
		return v, nil
	}
	return nil, shared.ErrNotFound
}

func (d *fakeDirectory) GetStock(_ context.Context, _, catalogItemID string) (*vendor.StockInfo, error) {
	if s, ok := d.stocks[catalogItemID]; ok {
		return s, nil
	}
	return nil, shared.ErrNotFound
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		vendors: map[string]*vendor.Vendor{
			"vendor-1": {ID: "vendor-1", Name: "Acme Gas", IsActive: true, IsVerified: true},
			"vendor-2": {ID: "vendor-2", Name: "Beta Gas", IsActive: true, IsVerified: true},
			"dormant":  {ID: "dormant", Name: "Dormant", IsActive: false, IsVerified: true},
		},
		stocks: map[string]*vendor.StockInfo{
			"prod-1": {CatalogItemID: "prod-1", StockQuantity: 10, Available: true},
			"prod-2": {CatalogItemID: "prod-2", StockQuantity: 1, Available: true},
			"gone":   {CatalogItemID: "gone", StockQuantity: 0, Available: false},
		},
	}
}

func addMutation(sessionID, catalogID, vendorID string, kind ItemKind, quantity int) Mutation {
	item, _ := NewCartItem(catalogID, kind, quantity, valueobject.NewMoneyKESFromFloat(100), vendorID)
	return NewAddItemMutation(sessionID, item)
}

func TestValidator_ValidateAdd(t *testing.T) {
	ctx := context.Background()
	v := NewValidator(newFakeDirectory())

	t.Run("admits valid add", func(t *testing.T) {
		c := NewCart("s")
		err := v.Validate(ctx, c, addMutation("s", "prod-1", "vendor-1", ItemKindPhysicalGood, 2))
		assert.NoError(t, err)
	})

	t.Run("rejects second vendor and leaves cart unchanged", func(t *testing.T) {
		c := NewCart("s")
		item := createTestItem(t, "prod-1", 1, 100, "vendor-1")
		_, err := c.Put(*item)
		require.NoError(t, err)
		before := len(c.Items)

		err = v.Validate(ctx, c, addMutation("s", "prod-2", "vendor-2", ItemKindPhysicalGood, 1))
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "MULTI_VENDOR", domainErr.Code)
		assert.Len(t, c.Items, before)
	})

	t.Run("rejects unsellable vendor", func(t *testing.T) {
		c := NewCart("s")
		err := v.Validate(ctx, c, addMutation("s", "prod-1", "dormant", ItemKindPhysicalGood, 1))
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "VENDOR_UNAVAILABLE", domainErr.Code)
	})

	t.Run("merge quantity counts against stock", func(t *testing.T) {
		// prod-2 has stock 1; a cart already holding 1 cannot take another
		c := NewCart("s")
		item := createTestItem(t, "prod-2", 1, 100, "vendor-1")
		_, err := c.Put(*item)
		require.NoError(t, err)

		err = v.Validate(ctx, c, addMutation("s", "prod-2", "vendor-1", ItemKindPhysicalGood, 1))
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INSUFFICIENT_STOCK", domainErr.Code)
	})

	t.Run("unavailable item rejected", func(t *testing.T) {
		c := NewCart("s")
		err := v.Validate(ctx, c, addMutation("s", "gone", "vendor-1", ItemKindPhysicalGood, 1))
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "ITEM_UNAVAILABLE", domainErr.Code)
	})

	t.Run("services skip stock checks", func(t *testing.T) {
		c := NewCart("s")
		err := v.Validate(ctx, c, addMutation("s", "untracked-service", "vendor-1", ItemKindService, 3))
		assert.NoError(t, err)
	})

	t.Run("overlay preferred over directory read", func(t *testing.T) {
		c := NewCart("s")
		item := createTestItem(t, "prod-1", 1, 100, "vendor-1")
		stock := 2
		item.StockQuantity = &stock // overlay says 2 despite directory's 10
		_, err := c.Put(*item)
		require.NoError(t, err)

		err = v.Validate(ctx, c, addMutation("s", "prod-1", "vendor-1", ItemKindPhysicalGood, 5))
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INSUFFICIENT_STOCK", domainErr.Code)
	})
}

func TestValidator_ValidateUpdate(t *testing.T) {
	ctx := context.Background()
	v := NewValidator(newFakeDirectory())

	c := NewCart("s")
	item := createTestItem(t, "prod-1", 1, 100, "vendor-1")
	stock := 3
	item.StockQuantity = &stock
	added, err := c.Put(*item)
	require.NoError(t, err)

	t.Run("within overlay stock", func(t *testing.T) {
		err := v.Validate(ctx, c, NewUpdateItemMutation("s", added.ItemID, 3))
		assert.NoError(t, err)
	})

	t.Run("beyond overlay stock", func(t *testing.T) {
		err := v.Validate(ctx, c, NewUpdateItemMutation("s", added.ItemID, 4))
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INSUFFICIENT_STOCK", domainErr.Code)
	})

	t.Run("zero quantity is removal, always admissible", func(t *testing.T) {
		err := v.Validate(ctx, c, NewUpdateItemMutation("s", added.ItemID, 0))
		assert.NoError(t, err)
	})

	t.Run("unknown item", func(t *testing.T) {
		m := NewUpdateItemMutation("s", [16]byte{1}, 2)
		err := v.Validate(ctx, c, m)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "ITEM_NOT_FOUND", domainErr.Code)
	})
}

func TestValidator_RemoveAndClearAlwaysAdmissible(t *testing.T) {
	ctx := context.Background()
	v := NewValidator(&fakeDirectory{}) // empty directory: no lookups expected

	c := NewCart("s")
	assert.NoError(t, v.Validate(ctx, c, NewRemoveItemMutation("s", [16]byte{1})))
	assert.NoError(t, v.Validate(ctx, c, NewClearMutation("s")))
}

func TestValidator_ValidateForCheckout(t *testing.T) {
	v := NewValidator(newFakeDirectory())

	t.Run("empty cart short-circuits", func(t *testing.T) {
		violations := v.ValidateForCheckout(NewCart("s"))
		require.Len(t, violations, 1)
		assert.Equal(t, "EMPTY_CART", violations[0].Code)
	})

	t.Run("valid cart has no violations", func(t *testing.T) {
		c := NewCart("s")
		item := createTestItem(t, "prod-1", 2, 100, "vendor-1")
		_, err := c.Put(*item)
		require.NoError(t, err)
		assert.Empty(t, v.ValidateForCheckout(c))
	})

	t.Run("aggregates all violations", func(t *testing.T) {
		c := NewCart("s")

		unavailable := createTestItem(t, "prod-1", 1, 100, "vendor-1")
		unavailable.Available = false
		_, err := c.Put(*unavailable)
		require.NoError(t, err)

		short := createTestItem(t, "prod-2", 5, 100, "vendor-1")
		stock := 2
		short.StockQuantity = &stock
		_, err = c.Put(*short)
		require.NoError(t, err)

		crossVendor := createTestItem(t, "prod-3", 1, 100, "vendor-2")
		_, err = c.Put(*crossVendor)
		require.NoError(t, err)

		violations := v.ValidateForCheckout(c)
		codes := make([]string, 0, len(violations))
		for _, violation := range violations {
			codes = append(codes, violation.Code)
		}
		assert.Contains(t, codes, "ITEM_UNAVAILABLE")
		assert.Contains(t, codes, "INSUFFICIENT_STOCK")
		assert.Contains(t, codes, "MULTI_VENDOR")
	})

	t.Run("zero total flagged", func(t *testing.T) {
		c := NewCart("s")
		item := createTestItem(t, "free", 1, 0, "vendor-1")
		_, err := c.Put(*item)
		require.NoError(t, err)

		violations := v.ValidateForCheckout(c)
		require.NotEmpty(t, violations)
		assert.Equal(t, "INVALID_TOTAL", violations[0].Code)
	})
}
