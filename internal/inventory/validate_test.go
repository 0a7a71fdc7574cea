package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medsales/m/domain"
	"medsales/m/internal/apperr"
)

var fixedNow = time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)

func validItem() domain.InventoryItem {
	return domain.InventoryItem{Name: "Aspirin", UnitPrice: 1.5, CostPrice: 0.9, Stock: 10, ReorderLevel: 2, PurchaseDate: "2025-05-30"}
}

func requireValidation(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %T", err)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Equal(t, field, appErr.Field)
}

func TestValidateItem_accepts(t *testing.T) {
	require.NoError(t, ValidateItem(validItem(), sampleSnapshot(), ModeAdd, fixedNow))

	today := validItem()
	today.PurchaseDate = "2025-06-01"
	require.NoError(t, ValidateItem(today, sampleSnapshot(), ModeAdd, fixedNow))

	free := validItem()
	free.CostPrice = 0
	free.Stock = 0
	free.ReorderLevel = 0
	require.NoError(t, ValidateItem(free, sampleSnapshot(), ModeAdd, fixedNow))
}

func TestValidateItem_rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.InventoryItem)
		field  string
	}{
		{"blank name", func(i *domain.InventoryItem) { i.Name = "   " }, "name"},
		{"duplicate name", func(i *domain.InventoryItem) { i.Name = " PARACETAMOL " }, "name"},
		{"negative stock", func(i *domain.InventoryItem) { i.Stock = -1 }, "stock"},
		{"negative cost", func(i *domain.InventoryItem) { i.CostPrice = -0.01 }, "costPrice"},
		{"zero price", func(i *domain.InventoryItem) { i.UnitPrice = 0 }, "unitPrice"},
		{"bad date format", func(i *domain.InventoryItem) { i.PurchaseDate = "30/05/2025" }, "purchaseDate"},
		{"impossible date", func(i *domain.InventoryItem) { i.PurchaseDate = "2025-02-30" }, "purchaseDate"},
		{"future date", func(i *domain.InventoryItem) { i.PurchaseDate = "2025-06-02" }, "purchaseDate"},
		{"negative reorder", func(i *domain.InventoryItem) { i.ReorderLevel = -2 }, "reorderLevel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := validItem()
			tt.mutate(&item)
			requireValidation(t, ValidateItem(item, sampleSnapshot(), ModeAdd, fixedNow), tt.field)
		})
	}
}

func TestValidateItem_editKeepsOwnName(t *testing.T) {
	item := sampleSnapshot()[0]
	item.Stock = 80
	require.NoError(t, ValidateItem(item, sampleSnapshot(), ModeEdit, fixedNow))

	item.Name = "ibuprofen"
	requireValidation(t, ValidateItem(item, sampleSnapshot(), ModeEdit, fixedNow), "name")
}

func validSale() domain.Sale {
	return domain.Sale{
		Date:          "2025-06-01",
		PaymentMethod: domain.PaymentCash,
		Items: []domain.SaleLineItem{
			{Medicine: "Paracetamol", Quantity: 2, UnitPrice: 2.5},
			{Medicine: "ibuprofen", Quantity: 15, UnitPrice: 3},
		},
	}
}

func TestValidateSale_accepts(t *testing.T) {
	require.NoError(t, ValidateSale(validSale(), sampleSnapshot(), fixedNow))

	momo := validSale()
	momo.PaymentMethod = domain.PaymentMomo
	require.NoError(t, ValidateSale(momo, sampleSnapshot(), fixedNow))
}

func TestValidateSale_rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Sale)
		field  string
	}{
		{"future date", func(s *domain.Sale) { s.Date = "2025-06-02" }, "date"},
		{"bad date", func(s *domain.Sale) { s.Date = "2025-6-1" }, "date"},
		{"payment", func(s *domain.Sale) { s.PaymentMethod = "Card" }, "paymentMethod"},
		{"no items", func(s *domain.Sale) { s.Items = nil }, "items"},
		{"blank item", func(s *domain.Sale) { s.Items[0].Medicine = "" }, "items"},
		{"zero quantity", func(s *domain.Sale) { s.Items[0].Quantity = 0 }, "quantity"},
		{"over stock", func(s *domain.Sale) { s.Items[1].Quantity = 16 }, "quantity"},
		{"unknown item", func(s *domain.Sale) { s.Items[0].Medicine = "Aspirin" }, "items"},
		{"zero price", func(s *domain.Sale) { s.Items[0].UnitPrice = 0 }, "unitPrice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sale := validSale()
			tt.mutate(&sale)
			requireValidation(t, ValidateSale(sale, sampleSnapshot(), fixedNow), tt.field)
		})
	}
}

func TestValidateReportRange(t *testing.T) {
	require.NoError(t, ValidateReportRange("2025-05-01", "2025-05-31"))
	require.NoError(t, ValidateReportRange("2025-05-01", "2025-05-01"))

	requireValidation(t, ValidateReportRange("", "2025-05-01"), "startDate")
	requireValidation(t, ValidateReportRange("2025-05-02", "2025-05-01"), "startDate")
	requireValidation(t, ValidateReportRange("May 1", "2025-05-01"), "startDate")
	requireValidation(t, ValidateReportRange("2025-05-01", "tomorrow"), "endDate")
}

func TestToday_usesClockLocation(t *testing.T) {
	accra := time.FixedZone("GMT", 0)
	late := time.Date(2025, 6, 1, 23, 59, 0, 0, accra)
	assert.Equal(t, "2025-06-01", Today(late))
}
