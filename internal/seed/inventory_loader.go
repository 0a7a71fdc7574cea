package seed

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"medsales/m/domain"
	"medsales/m/internal/inventory"
)

// Columns expected in an inventory sheet, matched case-insensitively.
var columns = []string{"name", "unitprice", "costprice", "stock", "reorderlevel", "purchasedate"}

// InventoryStore is what the loader needs from the store.
type InventoryStore interface {
	InsertInventoryIfAbsent(ctx context.Context, item domain.InventoryItem) (bool, error)
	UpsertInventory(ctx context.Context, item domain.InventoryItem) (bool, error)
}

// Stats counts what a load did. Kept rows already existed and were left alone.
type Stats struct {
	Created int
	Updated int
	Kept    int
	Skipped int
}

// LoadInventory reads a .csv or .xlsx inventory sheet and adds every valid
// row whose name is not stored yet. With overwrite, existing rows take the
// sheet's values instead. A missing file is not an error.
func LoadInventory(ctx context.Context, store InventoryStore, path string, overwrite bool, log *zap.Logger) (Stats, error) {
	if log == nil {
		log = zap.NewNop()
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Info("no inventory seed file", zap.String("path", path))
		return Stats{}, nil
	}
	if err != nil {
		return Stats{}, fmt.Errorf("unable to load inventory seed %s: %w", path, err)
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(data)
	default:
		rows, err = readCSV(data)
	}
	if err != nil {
		return Stats{}, fmt.Errorf("unable to read inventory seed %s: %w", path, err)
	}
	stats, err := Load(ctx, store, rows, overwrite, log)
	if err == nil {
		log.Info("seeded inventory",
			zap.String("path", path),
			zap.Bool("overwrite", overwrite),
			zap.Int("created", stats.Created),
			zap.Int("updated", stats.Updated),
			zap.Int("kept", stats.Kept),
			zap.Int("skipped", stats.Skipped))
	}
	return stats, err
}

// Load stores rows, the first of which is the header.
func Load(ctx context.Context, store InventoryStore, rows [][]string, overwrite bool, log *zap.Logger) (Stats, error) {
	var stats Stats
	if len(rows) == 0 {
		return stats, nil
	}
	index := headerIndex(rows[0])
	for i, record := range rows[1:] {
		item, err := parseRow(record, index)
		if err == nil {
			err = inventory.ValidateItem(item, nil, inventory.ModeAdd, time.Now())
		}
		if err != nil {
			log.Warn("skipping inventory row", zap.Int("line", i+2), zap.Error(err))
			stats.Skipped++
			continue
		}
		var created bool
		if overwrite {
			created, err = store.UpsertInventory(ctx, item)
		} else {
			created, err = store.InsertInventoryIfAbsent(ctx, item)
		}
		if err != nil {
			return stats, fmt.Errorf("unable to insert %s: %w", item.Name, err)
		}
		switch {
		case created:
			stats.Created++
		case overwrite:
			stats.Updated++
		default:
			stats.Kept++
		}
	}
	return stats, nil
}

func readCSV(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	return f.GetRows(sheet)
}

// headerIndex maps each known column to its position, falling back to the
// documented order when the header does not name it.
func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(columns))
	for i, h := range header {
		key := strings.ToLower(strings.NewReplacer(" ", "", "_", "").Replace(strings.TrimSpace(h)))
		index[key] = i
	}
	for i, col := range columns {
		if _, ok := index[col]; !ok {
			index[col] = i
		}
	}
	return index
}

func parseRow(record []string, index map[string]int) (domain.InventoryItem, error) {
	cell := func(col string) string {
		i := index[col]
		if i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}
	var item domain.InventoryItem
	var err error
	item.Name = cell("name")
	if item.UnitPrice, err = strconv.ParseFloat(cell("unitprice"), 64); err != nil {
		return item, fmt.Errorf("unit price: %w", err)
	}
	if v := cell("costprice"); v != "" {
		if item.CostPrice, err = strconv.ParseFloat(v, 64); err != nil {
			return item, fmt.Errorf("cost price: %w", err)
		}
	}
	if item.Stock, err = strconv.ParseInt(cell("stock"), 10, 64); err != nil {
		return item, fmt.Errorf("stock: %w", err)
	}
	if v := cell("reorderlevel"); v != "" {
		if item.ReorderLevel, err = strconv.ParseInt(v, 10, 64); err != nil {
			return item, fmt.Errorf("reorder level: %w", err)
		}
	}
	item.PurchaseDate = cell("purchasedate")
	return item, nil
}
