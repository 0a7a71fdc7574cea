package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"medsales/m/domain"
)

const inventoryColumns = `id, name, unit_price, cost_price, stock, reorder_level, purchase_date`

// ListInventory returns every item ordered by name.
func (s *Store) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	items := []domain.InventoryItem{}
	err := s.db.SelectContext(ctx, &items, `SELECT `+inventoryColumns+` FROM inventory ORDER BY name_key`)
	return items, err
}

// InventoryItem loads one item by row id.
func (s *Store) InventoryItem(ctx context.Context, row int64) (domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := s.db.GetContext(ctx, &item, s.q(`SELECT `+inventoryColumns+` FROM inventory WHERE id = ?`), row)
	return item, notFound(err)
}

// AddInventory inserts item. Names are unique ignoring case.
func (s *Store) AddInventory(ctx context.Context, item domain.InventoryItem) (int64, error) {
	id, err := s.insert(ctx, s.db,
		`INSERT INTO inventory (name, name_key, unit_price, cost_price, stock, reorder_level, purchase_date) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(item.Name), item.Key(), item.UnitPrice, item.CostPrice, item.Stock, item.ReorderLevel, item.PurchaseDate)
	if isUniqueViolation(err) {
		return 0, ErrDuplicate
	}
	return id, err
}

// UpdateInventory overwrites the item at item.Row. The last write wins.
func (s *Store) UpdateInventory(ctx context.Context, item domain.InventoryItem) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE inventory SET name = ?, name_key = ?, unit_price = ?, cost_price = ?, stock = ?, reorder_level = ?, purchase_date = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`),
		strings.TrimSpace(item.Name), item.Key(), item.UnitPrice, item.CostPrice, item.Stock, item.ReorderLevel, item.PurchaseDate, item.Row)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteInventory removes the item at row. Past sale lines keep their name.
func (s *Store) DeleteInventory(ctx context.Context, row int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE sale_items SET inventory_id = NULL WHERE inventory_id = ?`), row); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM inventory WHERE id = ?`), row)
		if err != nil {
			return err
		}
		return requireRow(res)
	})
}

// InsertInventoryIfAbsent inserts item unless its name is already taken, in
// which case the stored row is left as is. It reports whether a row was created.
func (s *Store) InsertInventoryIfAbsent(ctx context.Context, item domain.InventoryItem) (bool, error) {
	var existing int64
	err := notFound(s.db.GetContext(ctx, &existing, s.q(`SELECT id FROM inventory WHERE name_key = ?`), item.Key()))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	_, err = s.AddInventory(ctx, item)
	if errors.Is(err, ErrDuplicate) {
		return false, nil
	}
	return err == nil, err
}

// UpsertInventory inserts item or, when the name exists, replaces its values.
// It reports whether a new row was created.
func (s *Store) UpsertInventory(ctx context.Context, item domain.InventoryItem) (bool, error) {
	var existing int64
	err := notFound(s.db.GetContext(ctx, &existing, s.q(`SELECT id FROM inventory WHERE name_key = ?`), item.Key()))
	if errors.Is(err, ErrNotFound) {
		_, err := s.AddInventory(ctx, item)
		return err == nil, err
	}
	if err != nil {
		return false, err
	}
	item.Row = existing
	return false, s.UpdateInventory(ctx, item)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
