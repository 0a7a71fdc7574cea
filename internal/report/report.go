// Package report renders sales reports as files for download.
package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"medsales/m/domain"
)

// Format is a rendered file type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

var header = []string{"Date", "Medicine", "Quantity", "Unit Price", "Subtotal", "Profit", "Payment"}

// Writer saves rendered reports into a directory.
type Writer struct {
	dir string
}

// NewWriter writes into dir, creating it on first use.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir is the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Write renders rep as format and returns the file name inside Dir.
func (w *Writer) Write(rep domain.SalesReport, format Format) (string, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatPDF:
		err = PDF(&buf, rep)
	case FormatXLSX:
		err = XLSX(&buf, rep)
	default:
		return "", fmt.Errorf("unknown report format %q", format)
	}
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("sales_report_%s_%s_%s.%s", rep.StartDate, rep.EndDate, strings.Split(uuid.NewString(), "-")[0], format)
	if err := os.WriteFile(filepath.Join(w.dir, name), buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	return name, nil
}

// PDF renders rep as a single-table A4 document.
func PDF(w io.Writer, rep domain.SalesReport) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Sales Report %s to %s", rep.StartDate, rep.EndDate), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Sales Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("%s to %s", rep.StartDate, rep.EndDate), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	widths := []float64{30, 80, 25, 30, 30, 30, 30}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range header {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	if len(rep.Data) == 0 {
		pdf.CellFormat(sum(widths), 8, "No sales found for the selected period.", "1", 1, "C", false, 0, "")
	}
	for _, rec := range rep.Data {
		cells := []string{
			rec.Date,
			rec.Medicine,
			fmt.Sprintf("%d", rec.Quantity),
			money(rec.UnitPrice),
			money(rec.Subtotal),
			money(rec.Profit),
			rec.PaymentMethod,
		}
		for i, c := range cells {
			align := "L"
			if i >= 2 && i <= 5 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 7, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	for _, line := range summaryLines(rep.Summary) {
		pdf.CellFormat(0, 7, line, "", 1, "R", false, 0, "")
	}
	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

// XLSX renders rep as a workbook with one sheet of lines and the summary below.
func XLSX(w io.Writer, rep domain.SalesReport) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := "Sales"
	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), sheet); err != nil {
		return err
	}

	head := make([]interface{}, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return err
	}

	row := 2
	for _, rec := range rep.Data {
		values := []interface{}{rec.Date, rec.Medicine, rec.Quantity, rec.UnitPrice, rec.Subtotal, rec.Profit, rec.PaymentMethod}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
		row++
	}

	row++
	totals := [][]interface{}{
		{"Sales Cash", rep.Summary.CashTotal},
		{"Sales Momo", rep.Summary.MomoTotal},
		{"Total Sales", rep.Summary.TotalSales},
		{"Total Profit", rep.Summary.TotalProfit},
	}
	for _, t := range totals {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		values := t
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
		row++
	}
	return f.Write(w)
}

func summaryLines(s domain.ReportSummary) []string {
	return []string{
		"Sales Cash: GHC" + money(s.CashTotal),
		"Sales Momo: GHC" + money(s.MomoTotal),
		"Total Sales: GHC" + money(s.TotalSales),
		"Total Profit: GHC" + money(s.TotalProfit),
	}
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func sum(xs []float64) float64 {
	var t float64
	for _, x := range xs {
		t += x
	}
	return t
}
