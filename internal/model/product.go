package model

import (
	"strings"
	"time"
)

// ProductStatus tells live catalogue entries apart from tombstones kept for
// order history.
type ProductStatus string

const (
	ProductStatusActive     ProductStatus = "active"
	ProductStatusTombstoned ProductStatus = "tombstoned"
)

// Textual tombstone convention, still written for display compatibility.
const (
	GhostIDPrefix    = "GHOST-"
	GhostNamePrefix  = "[DELETED] "
	GhostSkuPrefix   = "DELETED-"
	GhostLocation    = "Archive"
	ProductIDPrefix  = "PRD-"
	ghostNameMatcher = "[DELETED]"
)

type Product struct {
	ID           string        `json:"id"`
	Sku          string        `json:"sku"`
	Name         string        `json:"name"`
	Category     string        `json:"category"`
	Location     string        `json:"location"`
	Stock        int           `json:"stock"`
	ReorderLevel int           `json:"reorder_level"`
	CostPrice    float64       `json:"cost_price"`
	SellingPrice float64       `json:"selling_price"`
	IsSerialized bool          `json:"is_serialized"`
	Status       ProductStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// IsTombstoned reports whether p is a ghost product.
func (p Product) IsTombstoned() bool {
	return p.Status == ProductStatusTombstoned || IsGhostProduct(p.ID, p.Name, p.Sku)
}

// IsLowStock reports whether stock has reached the reorder level.
func (p Product) IsLowStock() bool {
	return p.Stock <= p.ReorderLevel
}

// IsGhostProduct recognises rows written before the explicit status existed.
func IsGhostProduct(id, name, sku string) bool {
	return strings.HasPrefix(id, GhostIDPrefix) ||
		strings.HasPrefix(name, ghostNameMatcher) ||
		strings.HasPrefix(sku, GhostSkuPrefix)
}
