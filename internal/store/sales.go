package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"medsales/m/domain"
)

type stockRow struct {
	ID        int64   `db:"id"`
	Name      string  `db:"name"`
	Stock     int64   `db:"stock"`
	CostPrice float64 `db:"cost_price"`
}

// SubmitSale records sale and takes its quantities out of stock in one
// transaction. Every line is checked against live stock first; lines naming
// the same medicine are checked together.
func (s *Store) SubmitSale(ctx context.Context, sale domain.Sale, username string) (domain.StoredSale, error) {
	var stored domain.StoredSale
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		rows := make(map[string]stockRow, len(sale.Items))
		requested := make(map[string]int64, len(sale.Items))
		total := decimal.Zero
		for _, line := range sale.Items {
			key := domain.NameKey(line.Medicine)
			row, ok := rows[key]
			if !ok {
				err := tx.GetContext(ctx, &row, s.q(`SELECT id, name, stock, cost_price FROM inventory WHERE name_key = ?`), key)
				if err = notFound(err); err != nil {
					return fmt.Errorf("medicine %q: %w", strings.TrimSpace(line.Medicine), err)
				}
				rows[key] = row
			}
			requested[key] += line.Quantity
			if requested[key] > row.Stock {
				return &StockError{Medicine: row.Name, Requested: requested[key], Available: row.Stock}
			}
			total = total.Add(amount(line.UnitPrice, line.Quantity))
		}

		stored = domain.StoredSale{
			SaleDate:      sale.Date,
			PaymentMethod: string(sale.PaymentMethod),
			GrandTotal:    total.Round(2).InexactFloat64(),
			Username:      username,
		}
		id, err := s.insert(ctx, tx, `INSERT INTO sales (sale_date, payment_method, grand_total, username) VALUES (?, ?, ?, ?)`,
			stored.SaleDate, stored.PaymentMethod, stored.GrandTotal, stored.Username)
		if err != nil {
			return fmt.Errorf("unable to create sale: %w", err)
		}
		stored.ID = id

		for _, line := range sale.Items {
			row := rows[domain.NameKey(line.Medicine)]
			subtotal := amount(line.UnitPrice, line.Quantity).Round(2).InexactFloat64()
			if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO sale_items (sale_id, inventory_id, medicine, quantity, unit_price, cost_price, subtotal) VALUES (?, ?, ?, ?, ?, ?, ?)`),
				id, row.ID, row.Name, line.Quantity, line.UnitPrice, row.CostPrice, subtotal); err != nil {
				return fmt.Errorf("unable to save sale items: %w", err)
			}
			res, err := tx.ExecContext(ctx, s.q(`UPDATE inventory SET stock = stock - ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND stock >= ?`),
				line.Quantity, row.ID, line.Quantity)
			if err != nil {
				return fmt.Errorf("unable to update inventory: %w", err)
			}
			if err := requireRow(res); err != nil {
				return &StockError{Medicine: row.Name, Requested: line.Quantity}
			}
		}
		return nil
	})
	return stored, err
}

// DeleteLastSale removes the most recent sale and puts its quantities back
// into stock for items that still exist.
func (s *Store) DeleteLastSale(ctx context.Context) (domain.StoredSale, error) {
	var sale domain.StoredSale
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &sale, `SELECT id, sale_date, payment_method, grand_total, username FROM sales ORDER BY id DESC LIMIT 1`)
		if err = notFound(err); err != nil {
			return err
		}
		var items []domain.StoredSaleItem
		if err := tx.SelectContext(ctx, &items, s.q(`SELECT id, sale_id, inventory_id, medicine, quantity, unit_price, cost_price, subtotal FROM sale_items WHERE sale_id = ?`), sale.ID); err != nil {
			return err
		}
		for _, item := range items {
			if item.InventoryID == nil {
				continue
			}
			if _, err := tx.ExecContext(ctx, s.q(`UPDATE inventory SET stock = stock + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`), item.Quantity, *item.InventoryID); err != nil {
				return fmt.Errorf("unable to restore stock: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM sale_items WHERE sale_id = ?`), sale.ID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, s.q(`DELETE FROM sales WHERE id = ?`), sale.ID)
		return err
	})
	return sale, err
}

type reportLine struct {
	domain.SaleRecord
	CostPrice float64 `db:"cost_price"`
}

// SalesReport lists every sale line dated within [start, end] with its
// profit, plus totals per payment method.
func (s *Store) SalesReport(ctx context.Context, start, end string) (domain.SalesReport, error) {
	var lines []reportLine
	err := s.db.SelectContext(ctx, &lines, s.q(`SELECT s.sale_date, si.medicine, si.quantity, si.unit_price, si.subtotal, si.cost_price, s.payment_method
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE s.sale_date >= ? AND s.sale_date <= ?
		ORDER BY s.sale_date, s.id, si.id`), start, end)
	if err != nil {
		return domain.SalesReport{}, err
	}

	report := domain.SalesReport{StartDate: start, EndDate: end, Data: make([]domain.SaleRecord, 0, len(lines))}
	var cash, momo, sales, profit decimal.Decimal
	for _, line := range lines {
		subtotal := decimal.NewFromFloat(line.Subtotal)
		lineProfit := decimal.NewFromFloat(line.UnitPrice).Sub(decimal.NewFromFloat(line.CostPrice)).Mul(decimal.NewFromInt(line.Quantity))
		rec := line.SaleRecord
		rec.Profit = lineProfit.Round(2).InexactFloat64()
		report.Data = append(report.Data, rec)

		switch domain.PaymentMethod(line.PaymentMethod) {
		case domain.PaymentCash:
			cash = cash.Add(subtotal)
		case domain.PaymentMomo:
			momo = momo.Add(subtotal)
		}
		sales = sales.Add(subtotal)
		profit = profit.Add(lineProfit)
	}
	report.Summary = domain.ReportSummary{
		CashTotal:   cash.Round(2).InexactFloat64(),
		MomoTotal:   momo.Round(2).InexactFloat64(),
		TotalSales:  sales.Round(2).InexactFloat64(),
		TotalProfit: profit.Round(2).InexactFloat64(),
	}
	return report, nil
}

func amount(price float64, qty int64) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(qty))
}
