package inventory

import (
	"math"
	"regexp"
	"strings"
	"time"

	"medsales/m/domain"
	"medsales/m/internal/apperr"
)

// DateLayout is the wire format of every date in the system.
const DateLayout = "2006-01-02"

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Mode selects the duplicate-name rule applied by ValidateItem.
type Mode int

const (
	// ModeAdd rejects any name already present in the snapshot.
	ModeAdd Mode = iota
	// ModeEdit rejects a name held by a different row.
	ModeEdit
)

// ValidateItem checks an item before it is sent to addMedicine or editMedicine.
func ValidateItem(item domain.InventoryItem, snapshot []domain.InventoryItem, mode Mode, now time.Time) error {
	if strings.TrimSpace(item.Name) == "" {
		return apperr.Validation("name", "Item name is required.")
	}
	if existing, _, ok := FindByName(snapshot, item.Name); ok {
		if mode == ModeAdd {
			return apperr.Validation("name", "Item already exists. Please select it to update.")
		}
		if existing.Row != item.Row {
			return apperr.Validation("name", "Another item already uses this name.")
		}
	}
	if item.Stock < 0 {
		return apperr.Validation("stock", "Stock must be a non-negative integer.")
	}
	if !finite(item.CostPrice) || item.CostPrice < 0 {
		return apperr.Validation("costPrice", "Cost must be a non-negative number.")
	}
	if !finite(item.UnitPrice) || item.UnitPrice <= 0 {
		return apperr.Validation("unitPrice", "Price must be a positive number.")
	}
	if err := validatePastDate("purchaseDate", item.PurchaseDate, now, "Please select a valid purchase date."); err != nil {
		return err
	}
	if item.ReorderLevel < 0 {
		return apperr.Validation("reorderLevel", "Reorder level must be a non-negative integer.")
	}
	return nil
}

// ValidateSale checks a sale against the stock known to the client. The
// backend re-checks against live stock.
func ValidateSale(sale domain.Sale, snapshot []domain.InventoryItem, now time.Time) error {
	if err := validatePastDate("date", sale.Date, now, "Please select a valid date."); err != nil {
		return err
	}
	if !sale.PaymentMethod.Valid() {
		return apperr.Validation("paymentMethod", "Please select a valid payment method.")
	}
	if len(sale.Items) == 0 {
		return apperr.Validation("items", "Please select at least one item.")
	}
	for i, line := range sale.Items {
		row := i + 1
		name := strings.TrimSpace(line.Medicine)
		if name == "" {
			return apperr.Validationf("items", "Please select an item for row %d.", row)
		}
		if line.Quantity <= 0 {
			return apperr.Validationf("quantity", "Invalid quantity for %q in row %d.", name, row)
		}
		item, _, ok := FindByName(snapshot, name)
		if !ok {
			return apperr.Validationf("items", "Item %q in row %d is not in the inventory.", name, row)
		}
		if line.Quantity > item.Stock {
			return apperr.Validationf("quantity", "Quantity for %q exceeds available stock (%d).", name, item.Stock)
		}
		if !finite(line.UnitPrice) || line.UnitPrice <= 0 {
			return apperr.Validationf("unitPrice", "Invalid unit price for %q in row %d.", name, row)
		}
	}
	return nil
}

// ValidateReportRange checks a report's date range.
func ValidateReportRange(startDate, endDate string) error {
	if strings.TrimSpace(startDate) == "" || strings.TrimSpace(endDate) == "" {
		return apperr.Validation("startDate", "Please select both start and end dates.")
	}
	start, err := ParseDate(startDate)
	if err != nil {
		return apperr.Validation("startDate", "Start date must be in YYYY-MM-DD format.")
	}
	end, err := ParseDate(endDate)
	if err != nil {
		return apperr.Validation("endDate", "End date must be in YYYY-MM-DD format.")
	}
	if start.After(end) {
		return apperr.Validation("startDate", "Start date must be before end date.")
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD date, rejecting anything looser.
func ParseDate(value string) (time.Time, error) {
	if !datePattern.MatchString(value) {
		return time.Time{}, &time.ParseError{Layout: DateLayout, Value: value, Message: ": expected YYYY-MM-DD"}
	}
	return time.Parse(DateLayout, value)
}

// Today formats now as a wire date in now's location.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}

func validatePastDate(field, value string, now time.Time, message string) error {
	date, err := ParseDate(value)
	if err != nil {
		return apperr.Validation(field, message)
	}
	today, _ := time.Parse(DateLayout, Today(now))
	if date.After(today) {
		return apperr.Validation(field, "Date cannot be in the future.")
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
