package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"medsales/m/domain"
	"medsales/m/internal/database"
	"medsales/m/internal/migrations"
	"medsales/m/internal/store"
)

type memStore struct {
	items map[string]domain.InventoryItem
	users []domain.User
}

func newMemStore() *memStore {
	return &memStore{items: make(map[string]domain.InventoryItem)}
}

func (m *memStore) InsertInventoryIfAbsent(_ context.Context, item domain.InventoryItem) (bool, error) {
	if _, exists := m.items[item.Key()]; exists {
		return false, nil
	}
	m.items[item.Key()] = item
	return true, nil
}

func (m *memStore) UpsertInventory(_ context.Context, item domain.InventoryItem) (bool, error) {
	_, exists := m.items[item.Key()]
	m.items[item.Key()] = item
	return !exists, nil
}

func (m *memStore) CountUsers(context.Context) (int, error) { return len(m.users), nil }

func (m *memStore) CreateUser(_ context.Context, u domain.User) (int64, error) {
	m.users = append(m.users, u)
	return int64(len(m.users)), nil
}

const sheet = `Name,Unit Price,Cost Price,Stock,Reorder Level,Purchase Date
Paracetamol,3.00,1.50,100,20,2025-01-10
Ibuprofen,5,2,15,15,2025-02-01
Broken,abc,1,1,1,2025-01-01
,1,1,1,1,2025-01-01
paracetamol,3.50,1.60,90,20,2025-01-12
`

func TestLoadInventoryCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.csv")
	require.NoError(t, os.WriteFile(path, []byte(sheet), 0o600))
	mem := newMemStore()

	stats, err := LoadInventory(context.Background(), mem, path, false, nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{Created: 2, Kept: 1, Skipped: 2}, stats)
	assert.Equal(t, 3.0, mem.items["paracetamol"].UnitPrice)
	assert.EqualValues(t, 15, mem.items["ibuprofen"].ReorderLevel)
}

func TestLoadInventoryCSVOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.csv")
	require.NoError(t, os.WriteFile(path, []byte(sheet), 0o600))
	mem := newMemStore()

	stats, err := LoadInventory(context.Background(), mem, path, true, nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{Created: 2, Updated: 1, Skipped: 2}, stats)
	assert.Equal(t, 3.5, mem.items["paracetamol"].UnitPrice)
}

func TestLoadInventoryKeepsStockAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	db, dialect, err := database.Connect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Run(db, dialect, nil))
	st := store.New(db, dialect)

	path := filepath.Join(t.TempDir(), "inventory.csv")
	require.NoError(t, os.WriteFile(path, []byte(sheet), 0o600))
	_, err = LoadInventory(ctx, st, path, false, nil)
	require.NoError(t, err)

	_, err = st.SubmitSale(ctx, domain.Sale{
		Date:          "2025-06-01",
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.SaleLineItem{{Medicine: "Paracetamol", Quantity: 40, UnitPrice: 3}},
	}, "ama")
	require.NoError(t, err)

	stats, err := LoadInventory(ctx, st, path, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Kept)
	assert.Zero(t, stats.Created)

	items, err := st.ListInventory(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Ibuprofen", items[0].Name)
	assert.Equal(t, "Paracetamol", items[1].Name)
	assert.EqualValues(t, 60, items[1].Stock)
	assert.Equal(t, 3.0, items[1].UnitPrice)
}

func TestLoadInventoryXLSX(t *testing.T) {
	f := excelize.NewFile()
	name := f.GetSheetName(f.GetActiveSheetIndex())
	rows := [][]interface{}{
		{"name", "unitPrice", "costPrice", "stock", "reorderLevel", "purchaseDate"},
		{"Amoxicillin", 8, 4, 0, 10, "2025-03-05"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(name, cell, &r))
	}
	path := filepath.Join(t.TempDir(), "inventory.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	mem := newMemStore()
	stats, err := LoadInventory(context.Background(), mem, path, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	assert.EqualValues(t, 10, mem.items["amoxicillin"].ReorderLevel)
}

func TestLoadInventoryMissingFile(t *testing.T) {
	stats, err := LoadInventory(context.Background(), newMemStore(), filepath.Join(t.TempDir(), "none.csv"), false, nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestEnsureAdmin(t *testing.T) {
	mem := newMemStore()

	require.NoError(t, EnsureAdmin(context.Background(), mem, "admin", "s3cret", nil))
	require.Len(t, mem.users, 1)
	assert.Equal(t, domain.RoleAdmin, mem.users[0].Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(mem.users[0].Password), []byte("s3cret")))

	require.NoError(t, EnsureAdmin(context.Background(), mem, "other", "pw", nil))
	assert.Len(t, mem.users, 1)

	assert.Error(t, EnsureAdmin(context.Background(), newMemStore(), "", "", nil))
}
