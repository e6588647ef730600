package gateway

import (
	"context"
	"net/http"

	"github.com/zeno/cartsync/internal/domain/backend"
	"github.com/zeno/cartsync/internal/domain/shared"
	"github.com/zeno/cartsync/internal/domain/vendor"
)

// VendorClient implements vendor.Directory against the marketplace
// vendor API. Lookups are unauthenticated: vendor listings and product
// availability are public catalog data.
type VendorClient struct {
	client *Client
}

// NewVendorClient creates the vendor directory client
func NewVendorClient(client *Client) *VendorClient {
	return &VendorClient{client: client}
}

// GetVendor returns the vendor record, or shared.ErrNotFound
func (c *VendorClient) GetVendor(ctx context.Context, vendorID string) (*vendor.Vendor, error) {
	var payload struct {
		ID           any    `json:"id"`
		BusinessName string `json:"business_name"`
		IsActive     bool   `json:"is_active"`
		IsVerified   bool   `json:"is_verified"`
	}
	err := c.client.do(ctx, "get vendor", http.MethodGet, "/api/vendors/vendors/"+vendorID+"/", "", nil, &payload)
	if err != nil {
		if se, ok := backend.AsServerError(err); ok && se.StatusCode == http.StatusNotFound {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	return &vendor.Vendor{
		ID:         vendorID,
		Name:       payload.BusinessName,
		IsActive:   payload.IsActive,
		IsVerified: payload.IsVerified,
	}, nil
}

// GetStock returns the availability snapshot for one catalog item
func (c *VendorClient) GetStock(ctx context.Context, vendorID, catalogItemID string) (*vendor.StockInfo, error) {
	var payload struct {
		StockQuantity int  `json:"stock_quantity"`
		IsActive      bool `json:"is_active"`
		IsAvailable   bool `json:"is_available"`
	}
	err := c.client.do(ctx, "get stock", http.MethodGet, "/api/vendors/gas-products/"+catalogItemID+"/", "", nil, &payload)
	if err != nil {
		if se, ok := backend.AsServerError(err); ok && se.StatusCode == http.StatusNotFound {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	return &vendor.StockInfo{
		CatalogItemID: catalogItemID,
		StockQuantity: payload.StockQuantity,
		Available:     payload.IsActive && payload.IsAvailable,
	}, nil
}

var _ vendor.Directory = (*VendorClient)(nil)
