package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"medsales/m/domain"
)

func sampleReport() domain.SalesReport {
	return domain.SalesReport{
		StartDate: "2025-06-01",
		EndDate:   "2025-06-30",
		Data: []domain.SaleRecord{
			{Date: "2025-06-01", Medicine: "Paracetamol", Quantity: 2, UnitPrice: 3, Subtotal: 6, Profit: 3, PaymentMethod: "Cash"},
			{Date: "2025-06-02", Medicine: "Ibuprofen", Quantity: 3, UnitPrice: 5.5, Subtotal: 16.5, Profit: 10.5, PaymentMethod: "Momo"},
		},
		Summary: domain.ReportSummary{CashTotal: 6, MomoTotal: 16.5, TotalSales: 22.5, TotalProfit: 13.5},
	}
}

func TestPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PDF(&buf, sampleReport()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	buf.Reset()
	require.NoError(t, PDF(&buf, domain.SalesReport{StartDate: "2025-01-01", EndDate: "2025-01-02"}))
	assert.NotZero(t, buf.Len())
}

func TestXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, XLSX(&buf, sampleReport()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sales")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 7)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, "Paracetamol", rows[1][1])
	assert.Equal(t, "Momo", rows[2][6])
	assert.Equal(t, []string{"Total Sales", "22.5"}, rows[6])
}

func TestWriterWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	w := NewWriter(dir)

	name, err := w.Write(sampleReport(), FormatPDF)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "sales_report_2025-06-01_2025-06-30_"))
	assert.True(t, strings.HasSuffix(name, ".pdf"))
	_, err = os.Stat(filepath.Join(dir, name))
	assert.NoError(t, err)

	other, err := w.Write(sampleReport(), FormatXLSX)
	require.NoError(t, err)
	assert.NotEqual(t, name, other)

	_, err = w.Write(sampleReport(), Format("doc"))
	assert.Error(t, err)
}
