package cart

import (
	"context"
	"fmt"

	"github.com/zeno/cartsync/internal/domain/shared"
	"github.com/zeno/cartsync/internal/domain/vendor"
)

// Violation is one failed business rule, specific enough to act on
type Violation struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CatalogItemID string `json:"catalog_item_id,omitempty"`
}

// Validator enforces the cart's business invariants before any mutation
// is admitted: single-vendor, vendor health and stock availability.
// A rejected mutation never changes the cart.
type Validator struct {
	vendors vendor.Directory
}

// NewValidator creates a validator backed by the vendor directory
func NewValidator(vendors vendor.Directory) *Validator {
	return &Validator{vendors: vendors}
}

// Validate checks a candidate mutation against the current cart state.
// Returns nil when the mutation is admissible, or a DomainError carrying
// the rejection reason.
func (v *Validator) Validate(ctx context.Context, c *Cart, m Mutation) error {
	switch m.Kind {
	case MutationAddItem:
		return v.validateAdd(ctx, c, m)
	case MutationUpdateItem:
		return v.validateUpdate(c, m)
	case MutationRemoveItem, MutationClear:
		// Removing intent is always admissible
		return nil
	default:
		return shared.NewDomainError("INVALID_MUTATION", fmt.Sprintf("Unknown mutation kind %q", m.Kind))
	}
}

func (v *Validator) validateAdd(ctx context.Context, c *Cart, m Mutation) error {
	// Single-vendor rule: the cart is never silently truncated to make
	// room for another vendor; the caller must clear it explicitly first
	if current := c.VendorID(); current != "" && m.VendorID != "" && current != m.VendorID {
		return shared.NewDomainError("MULTI_VENDOR",
			fmt.Sprintf("Cart holds items from vendor %s; clear it before ordering from vendor %s", current, m.VendorID))
	}

	ven, err := v.vendors.GetVendor(ctx, m.VendorID)
	if err != nil {
		return err
	}
	if !ven.Sellable() {
		return shared.NewDomainError("VENDOR_UNAVAILABLE",
			fmt.Sprintf("Vendor %s is not currently accepting orders", ven.Name))
	}

	// Services are not stock-tracked
	if m.ItemKind == ItemKindService {
		return nil
	}

	resulting := m.Quantity
	if existing := c.ItemByCatalogID(m.CatalogID); existing != nil {
		resulting += existing.Quantity
	}
	return v.checkStock(ctx, c, m.VendorID, m.CatalogID, resulting)
}

func (v *Validator) validateUpdate(c *Cart, m Mutation) error {
	item := c.Item(m.ItemID)
	if item == nil {
		return shared.NewDomainError("ITEM_NOT_FOUND", "Cart item not found")
	}
	if m.Quantity <= 0 {
		// Quantity zero means removal, always admissible
		return nil
	}
	if item.Kind == ItemKindService {
		return nil
	}
	return checkOverlay(item, m.Quantity)
}

// checkStock prefers the availability overlay already merged onto the
// cart; a cold cart falls back to one directory read
func (v *Validator) checkStock(ctx context.Context, c *Cart, vendorID, catalogID string, quantity int) error {
	if item := c.ItemByCatalogID(catalogID); item != nil && item.StockQuantity != nil {
		return checkOverlay(item, quantity)
	}

	stock, err := v.vendors.GetStock(ctx, vendorID, catalogID)
	if err != nil {
		return err
	}
	if !stock.Available {
		return shared.NewDomainError("ITEM_UNAVAILABLE", "Item is currently unavailable")
	}
	if quantity > stock.StockQuantity {
		return shared.NewDomainError("INSUFFICIENT_STOCK",
			fmt.Sprintf("Only %d units available", stock.StockQuantity))
	}
	return nil
}

func checkOverlay(item *CartItem, quantity int) error {
	if !item.Available {
		return shared.NewDomainError("ITEM_UNAVAILABLE", "Item is currently unavailable")
	}
	if item.StockQuantity != nil && quantity > *item.StockQuantity {
		return shared.NewDomainError("INSUFFICIENT_STOCK",
			fmt.Sprintf("Only %d units available", *item.StockQuantity))
	}
	return nil
}

// ValidateForCheckout aggregates every violation across all items plus
// the cart-level checks, so the user sees the complete list rather than
// the first failure. It reads only the availability overlay already on
// the cart: no network round trip.
func (v *Validator) ValidateForCheckout(c *Cart) []Violation {
	var violations []Violation

	if c.IsEmpty() {
		return []Violation{{Code: "EMPTY_CART", Message: "Cart is empty"}}
	}
	if !c.TotalAmount.IsPositive() {
		violations = append(violations, Violation{
			Code:    "INVALID_TOTAL",
			Message: "Cart total must be positive",
		})
	}

	seenVendors := make(map[string]struct{})
	for idx := range c.Items {
		item := &c.Items[idx]
		seenVendors[item.VendorID] = struct{}{}

		if !item.Available {
			violations = append(violations, Violation{
				Code:          "ITEM_UNAVAILABLE",
				Message:       fmt.Sprintf("%s is no longer available", itemLabel(item)),
				CatalogItemID: item.CatalogItemID,
			})
			continue
		}
		if item.Kind != ItemKindService && item.StockQuantity != nil && item.Quantity > *item.StockQuantity {
			violations = append(violations, Violation{
				Code:          "INSUFFICIENT_STOCK",
				Message:       fmt.Sprintf("Only %d units of %s available", *item.StockQuantity, itemLabel(item)),
				CatalogItemID: item.CatalogItemID,
			})
		}
	}

	if len(seenVendors) > 1 {
		violations = append(violations, Violation{
			Code:    "MULTI_VENDOR",
			Message: "Cart holds items from more than one vendor; split your cart",
		})
	}

	return violations
}

func itemLabel(item *CartItem) string {
	if item.Name != "" {
		return item.Name
	}
	return "item " + item.CatalogItemID
}
