// Package inventory derives sellable state from an inventory snapshot. Every
// function here is pure: it reads the snapshot it is given and never keeps it.
package inventory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"medsales/m/domain"
	"medsales/m/internal/apperr"
)

// Status classifies stock against the reorder level. Stock equal to the
// reorder level is Low Stock.
func Status(stock, reorderLevel int64) domain.StockStatus {
	switch {
	case stock <= 0:
		return domain.StatusOutOfStock
	case stock <= reorderLevel:
		return domain.StatusLowStock
	default:
		return domain.StatusInStock
	}
}

// StatusOf is Status applied to an item.
func StatusOf(item domain.InventoryItem) domain.StockStatus {
	return Status(item.Stock, item.ReorderLevel)
}

// ParseStatus accepts a status filter label. The empty string means "all".
func ParseStatus(label string) (domain.StockStatus, error) {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return "", nil
	}
	for _, s := range []domain.StockStatus{domain.StatusInStock, domain.StatusLowStock, domain.StatusOutOfStock} {
		if strings.EqualFold(trimmed, string(s)) {
			return s, nil
		}
	}
	return "", apperr.Validationf("status", "Unknown stock status %q.", label)
}

// SellableOption is an in-stock item offered for a new sale line, with its
// live unit price as the default price.
type SellableOption struct {
	Name      string
	Stock     int64
	UnitPrice float64
}

// Label renders the option the way the item picker shows it.
func (o SellableOption) Label() string {
	return fmt.Sprintf("%s (Stock: %d)", o.Name, o.Stock)
}

// SortByName returns a copy of the snapshot ordered by name, ignoring case.
func SortByName(snapshot []domain.InventoryItem) []domain.InventoryItem {
	sorted := make([]domain.InventoryItem, len(snapshot))
	copy(sorted, snapshot)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Key() < sorted[j].Key()
	})
	return sorted
}

// SellableOptions lists the items with stock left, sorted by name.
func SellableOptions(snapshot []domain.InventoryItem) []SellableOption {
	options := make([]SellableOption, 0, len(snapshot))
	for _, item := range SortByName(snapshot) {
		if item.Stock <= 0 {
			continue
		}
		options = append(options, SellableOption{
			Name:      strings.TrimSpace(item.Name),
			Stock:     item.Stock,
			UnitPrice: item.UnitPrice,
		})
	}
	return options
}

// FindByName looks an item up by its case-insensitive name and returns its
// index in the snapshot.
func FindByName(snapshot []domain.InventoryItem, name string) (domain.InventoryItem, int, bool) {
	key := domain.NameKey(name)
	if key == "" {
		return domain.InventoryItem{}, -1, false
	}
	for i, item := range snapshot {
		if item.Key() == key {
			return item, i, true
		}
	}
	return domain.InventoryItem{}, -1, false
}

// Suggest returns the names starting with prefix, ignoring case, sorted.
func Suggest(snapshot []domain.InventoryItem, prefix string) []string {
	key := domain.NameKey(prefix)
	var names []string
	for _, item := range SortByName(snapshot) {
		if strings.HasPrefix(item.Key(), key) {
			names = append(names, strings.TrimSpace(item.Name))
		}
	}
	return names
}

// ClampQuantity bounds a requested quantity to [1, available]. It returns 0
// only when nothing is available.
func ClampQuantity(requested, available int64) int64 {
	if available < 1 {
		return 0
	}
	if requested < 1 {
		requested = 1
	}
	if requested > available {
		return available
	}
	return requested
}

// NewSaleLine builds a sale line for the named item, taking the item's current
// unit price and clamping the quantity to its stock.
func NewSaleLine(snapshot []domain.InventoryItem, name string, requested int64) (domain.SaleLineItem, error) {
	item, _, ok := FindByName(snapshot, name)
	if !ok {
		return domain.SaleLineItem{}, apperr.Validationf("medicine", "Item %q is not in the inventory.", strings.TrimSpace(name))
	}
	if item.Stock <= 0 {
		return domain.SaleLineItem{}, apperr.Validationf("medicine", "%q is out of stock.", strings.TrimSpace(item.Name))
	}
	if item.UnitPrice <= 0 {
		return domain.SaleLineItem{}, apperr.Validationf("unitPrice", "Invalid unit price for %q.", strings.TrimSpace(item.Name))
	}
	return domain.SaleLineItem{
		Medicine:  strings.TrimSpace(item.Name),
		Quantity:  ClampQuantity(requested, item.Stock),
		UnitPrice: item.UnitPrice,
	}, nil
}

// LineSubtotal is quantity * unit price, rounded to cents.
func LineSubtotal(line domain.SaleLineItem) float64 {
	return money(lineAmount(line))
}

// GrandTotal sums the line subtotals. Line order does not matter.
func GrandTotal(lines []domain.SaleLineItem) float64 {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(lineAmount(line))
	}
	return money(total)
}

// Search keeps the items whose name contains nameSubstring (ignoring case)
// and whose computed status equals statusFilter. An empty filter matches
// every status.
func Search(snapshot []domain.InventoryItem, nameSubstring string, statusFilter domain.StockStatus) []domain.InventoryItem {
	needle := domain.NameKey(nameSubstring)
	matches := make([]domain.InventoryItem, 0, len(snapshot))
	for _, item := range snapshot {
		if needle != "" && !strings.Contains(item.Key(), needle) {
			continue
		}
		if statusFilter != "" && StatusOf(item) != statusFilter {
			continue
		}
		matches = append(matches, item)
	}
	return matches
}

// ShopWorth values the whole snapshot at cost.
func ShopWorth(snapshot []domain.InventoryItem) float64 {
	total := decimal.Zero
	for _, item := range snapshot {
		if item.Stock <= 0 {
			continue
		}
		total = total.Add(decimal.NewFromFloat(item.CostPrice).Mul(decimal.NewFromInt(item.Stock)))
	}
	return money(total)
}

// ShopWorthMessage renders the valuation the way the inventory screen shows it.
func ShopWorthMessage(snapshot []domain.InventoryItem, date string) string {
	return fmt.Sprintf("Your Shop's Worth as at %s is GHC%.2f", date, ShopWorth(snapshot))
}

func lineAmount(line domain.SaleLineItem) decimal.Decimal {
	return decimal.NewFromFloat(line.UnitPrice).Mul(decimal.NewFromInt(line.Quantity))
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
