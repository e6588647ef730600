package cart

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zeno/cartsync/internal/domain/shared"
)

// Normalizer maps heterogeneous item payloads into the canonical CartItem
// shape. Payloads arrive from three sources with aliased and missing
// fields: legacy local snapshots, backend cart responses and add-to-cart
// requests. The normalizer is pure: no I/O, and identical input always
// produces identical output.
type Normalizer struct {
	defaultKind ItemKind
}

// NewNormalizer creates a normalizer with the given fallback item kind
func NewNormalizer(defaultKind ItemKind) *Normalizer {
	if !defaultKind.IsValid() {
		defaultKind = ItemKindPhysicalGood
	}
	return &Normalizer{defaultKind: defaultKind}
}

// itemIDNamespace seeds deterministic item identities for payloads that
// carry no item_id of their own
var itemIDNamespace = uuid.MustParse("8a5c1e2d-6f3b-4c7a-9d0e-2b4f6a8c0e1d")

// Normalize maps one item payload to a canonical CartItem.
// It never emits an empty item kind: the kind is inferred from the most
// specific field present, falling back to the configured default.
func (n *Normalizer) Normalize(payload map[string]any) (*CartItem, error) {
	if payload == nil {
		return nil, shared.NewDomainError("INVALID_ITEM", "Item payload cannot be nil")
	}

	catalogID, kindHint := catalogReference(payload)
	if catalogID == "" {
		return nil, shared.NewDomainError("INVALID_ITEM", "Item payload has no catalog reference")
	}

	kind := n.inferKind(payload, kindHint)

	quantity := intField(payload, "quantity")
	if quantity < 1 {
		quantity = 1
	}

	modifiers := modifierFields(payload)
	unitPrice := unitPriceField(payload, modifiers)
	totalPrice := decimalField(payload, "total_price", "total", "amount")

	// A snapshot with only a line total still carries enough to rebuild
	// the unit price
	if unitPrice.IsZero() && totalPrice.IsPositive() {
		unitPrice = totalPrice.Div(decimal.NewFromInt(int64(quantity)))
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}

	item := &CartItem{
		ItemID:        itemIdentity(payload, catalogID),
		CatalogItemID: catalogID,
		Kind:          kind,
		Name:          stringField(payload, "name", "item_name", "product_name", "service_name"),
		Quantity:      quantity,
		UnitPrice:     unitPrice,
		TotalPrice:    unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		VendorID:      referenceField(payload, "vendor_id", "vendor"),
		Modifiers:     modifiers,
		Available:     availableField(payload),
		AddedAt:       timeField(payload, "added_at", "created_at"),
		UpdatedAt:     timeField(payload, "updated_at", "added_at", "created_at"),
	}

	if stock, ok := optionalIntField(payload, "stock_quantity", "stock"); ok {
		item.StockQuantity = &stock
	}

	return item, nil
}

// NormalizeCart upgrades any cart payload into a canonical item list.
// Legacy shapes (a bare item array instead of a cart object) are
// accepted; items that cannot be normalized are dropped rather than
// failing the whole cart.
func (n *Normalizer) NormalizeCart(sessionID string, payload any) *Cart {
	c := NewCart(sessionID)

	var rawItems []any
	switch v := payload.(type) {
	case nil:
		return c
	case []any:
		rawItems = v
	case map[string]any:
		if id := referenceField(v, "cart_id", "id"); id != "" {
			c.RemoteID = &id
		}
		if items, ok := v["items"].([]any); ok {
			rawItems = items
		}
	default:
		return c
	}

	for _, raw := range rawItems {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		item, err := n.Normalize(m)
		if err != nil || item.Quantity < 1 {
			continue
		}
		c.Items = append(c.Items, *item)
	}
	c.RecalculateTotals()
	c.ClearDomainEvents()
	return c
}

// inferKind resolves the item kind from the most specific evidence in the
// payload
func (n *Normalizer) inferKind(payload map[string]any, hint ItemKind) ItemKind {
	if hint.IsValid() {
		return hint
	}
	switch strings.ToLower(stringField(payload, "item_kind", "item_type", "type")) {
	case "gas_product", "physical_good", "product", "goods":
		return ItemKindPhysicalGood
	case "service":
		return ItemKindService
	}
	return n.defaultKind
}

// catalogReference extracts the catalog item reference from whichever
// alias the payload uses. Kind-specific aliases double as kind evidence.
func catalogReference(payload map[string]any) (string, ItemKind) {
	if id := referenceField(payload, "gas_product_id", "gas_product"); id != "" {
		return id, ItemKindPhysicalGood
	}
	if id := referenceField(payload, "service_id", "service"); id != "" {
		return id, ItemKindService
	}
	return referenceField(payload, "catalog_item_id", "product_id", "product"), ""
}

// itemIdentity returns the payload's own item_id when present, otherwise
// a deterministic identity derived from the item content
func itemIdentity(payload map[string]any, catalogID string) uuid.UUID {
	if raw := stringField(payload, "item_id"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return id
		}
	}
	vendorID := referenceField(payload, "vendor_id", "vendor")
	return uuid.NewSHA1(itemIDNamespace, []byte(vendorID+"/"+catalogID))
}

// referenceField reads an identifier that may arrive as a string, a JSON
// number or a nested object with an id field
func referenceField(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatInt(int64(v), 10)
		case int:
			return strconv.Itoa(v)
		case map[string]any:
			if id := referenceField(v, "id"); id != "" {
				return id
			}
		}
	}
	return ""
}

func stringField(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func intField(payload map[string]any, keys ...string) int {
	v, _ := optionalIntField(payload, keys...)
	return v
}

func optionalIntField(payload map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case float64:
			return int(v), true
		case int:
			return v, true
		case string:
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}

func decimalField(payload map[string]any, keys ...string) decimal.Decimal {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case float64:
			return decimal.NewFromFloat(v)
		case int:
			return decimal.NewFromInt(int64(v))
		case string:
			if parsed, err := decimal.NewFromString(v); err == nil {
				return parsed
			}
		case map[string]any:
			// Money-shaped payloads carry {amount, currency}
			if amount := stringField(v, "amount"); amount != "" {
				if parsed, err := decimal.NewFromString(amount); err == nil {
					return parsed
				}
			}
		}
	}
	return decimal.Zero
}

// unitPriceField picks the price snapshot, honoring the cylinder-exchange
// modifier when vendors publish both price variants
func unitPriceField(payload map[string]any, modifiers map[string]any) decimal.Decimal {
	if price := decimalField(payload, "unit_price", "price"); !price.IsZero() {
		return price
	}
	withCylinder := true
	if v, ok := modifiers["include_cylinder"].(bool); ok {
		withCylinder = v
	}
	if withCylinder {
		return decimalField(payload, "price_with_cylinder")
	}
	return decimalField(payload, "price_without_cylinder")
}

func availableField(payload map[string]any) bool {
	for _, key := range []string{"available", "is_available"} {
		if v, ok := payload[key].(bool); ok {
			return v
		}
	}
	return true
}

func timeField(payload map[string]any, keys ...string) time.Time {
	for _, key := range keys {
		raw, ok := payload[key].(string)
		if !ok {
			continue
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// modifierFields collects the modifiers map, folding in legacy top-level
// modifier flags
func modifierFields(payload map[string]any) map[string]any {
	var modifiers map[string]any
	if m, ok := payload["modifiers"].(map[string]any); ok {
		modifiers = make(map[string]any, len(m))
		for k, v := range m {
			modifiers[k] = v
		}
	}
	if v, ok := payload["include_cylinder"].(bool); ok {
		if modifiers == nil {
			modifiers = make(map[string]any, 1)
		}
		modifiers["include_cylinder"] = v
	}
	return modifiers
}

// ItemPayload converts a CartItem back into the canonical wire shape.
// Round-tripping through Normalize yields an identical item.
func ItemPayload(item *CartItem) map[string]any {
	payload := map[string]any{
		"item_id":         item.ItemID.String(),
		"catalog_item_id": item.CatalogItemID,
		"item_kind":       item.Kind.String(),
		"quantity":        item.Quantity,
		"unit_price":      item.UnitPrice.String(),
		"vendor_id":       item.VendorID,
		"available":       item.Available,
	}
	if item.Name != "" {
		payload["name"] = item.Name
	}
	if item.Modifiers != nil {
		payload["modifiers"] = item.Modifiers
	}
	if item.StockQuantity != nil {
		payload["stock_quantity"] = *item.StockQuantity
	}
	if !item.AddedAt.IsZero() {
		payload["added_at"] = item.AddedAt.Format(time.RFC3339Nano)
	}
	if !item.UpdatedAt.IsZero() {
		payload["updated_at"] = item.UpdatedAt.Format(time.RFC3339Nano)
	}
	return payload
}

// String implements fmt.Stringer for debugging
func (n *Normalizer) String() string {
	return fmt.Sprintf("Normalizer(default=%s)", n.defaultKind)
}
