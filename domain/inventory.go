package domain

import "strings"

// InventoryItem is one medicine line of the shop's stock. Name is the unique,
// case-insensitive key; Row is the backend handle used for edits and deletes.
type InventoryItem struct {
	Row          int64   `db:"id" json:"row"`
	Name         string  `db:"name" json:"name"`
	UnitPrice    float64 `db:"unit_price" json:"unitPrice"`
	CostPrice    float64 `db:"cost_price" json:"costPrice"`
	Stock        int64   `db:"stock" json:"stock"`
	ReorderLevel int64   `db:"reorder_level" json:"reorderLevel"`
	PurchaseDate string  `db:"purchase_date" json:"purchaseDate"`
}

// Key returns the normalized lookup key for the item's name.
func (i InventoryItem) Key() string {
	return NameKey(i.Name)
}

// NameKey normalizes a medicine name for case-insensitive comparison.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// StockStatus classifies an item's stock against its reorder level.
type StockStatus string

const (
	StatusInStock    StockStatus = "In Stock"
	StatusLowStock   StockStatus = "Low Stock"
	StatusOutOfStock StockStatus = "Out of Stock"
)
