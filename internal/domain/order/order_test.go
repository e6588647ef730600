package order

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeno/cartsync/internal/domain/cart"
	"github.com/zeno/cartsync/internal/domain/shared/valueobject"
)

func newTestCart(t *testing.T, items int) *cart.Cart {
	t.Helper()
	c := cart.NewCart("session-1")
	for i := 0; i < items; i++ {
		item, err := cart.NewCartItem(
			fmt.Sprintf("prod-%d", i),
			cart.ItemKindPhysicalGood,
			1,
			valueobject.NewMoneyKESFromFloat(1000),
			"vendor-1",
		)
		require.NoError(t, err)
		_, err = c.Put(*item)
		require.NoError(t, err)
	}
	return c
}
