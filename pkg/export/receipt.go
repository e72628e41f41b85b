package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ReceiptLine is one labelled value printed on a receipt.
type ReceiptLine struct {
	Label string
	Value string
}

// Receipt is the content of a single-page payment receipt.
type Receipt struct {
	Title    string
	Number   string
	IssuedAt time.Time
	Lines    []ReceiptLine
	Total    string
	Footer   string
}

// ReceiptRenderer renders receipts to PDF.
type ReceiptRenderer struct{}

// NewReceiptRenderer constructs a renderer.
func NewReceiptRenderer() *ReceiptRenderer {
	return &ReceiptRenderer{}
}

// Render creates an A5 PDF receipt.
func (r *ReceiptRenderer) Render(receipt Receipt) ([]byte, error) {
	if strings.TrimSpace(receipt.Number) == "" {
		return nil, fmt.Errorf("receipt number is required")
	}
	title := receipt.Title
	if title == "" {
		title = "Payment receipt"
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 15, 12)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, strings.ToUpper(tr(title)), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, tr("No. "+receipt.Number), "", 1, "C", false, 0, "")
	if !receipt.IssuedAt.IsZero() {
		pdf.CellFormat(0, 6, receipt.IssuedAt.UTC().Format("02 Jan 2006 15:04 MST"), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	width, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	labelWidth := (width - left - right) * 0.4
	valueWidth := (width - left - right) - labelWidth

	for _, line := range receipt.Lines {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(labelWidth, 8, tr(line.Label), "B", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(valueWidth, 8, tr(line.Value), "B", 1, "", false, 0, "")
	}

	if receipt.Total != "" {
		pdf.Ln(2)
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(labelWidth, 10, "Total", "", 0, "", false, 0, "")
		pdf.CellFormat(valueWidth, 10, tr(receipt.Total), "", 1, "R", false, 0, "")
	}
	if receipt.Footer != "" {
		pdf.Ln(6)
		pdf.SetFont("Arial", "I", 8)
		pdf.MultiCell(0, 5, tr(receipt.Footer), "", "C", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
