package payments

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
)

// RenderPDF lays the receipt out on a single A4 page.
func RenderPDF(r Receipt) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Order Receipt - "+r.OrderID, true)
	if !r.PaidAt.IsZero() {
		pdf.SetCreationDate(r.PaidAt)
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "Order Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	for _, kv := range [][2]string{
		{"Order ID", r.OrderID},
		{"Customer", r.Customer},
		{"Email", r.Email},
		{"Payment ID", r.PaymentID},
		{"Method", r.Method},
	} {
		pdf.CellFormat(35, 7, kv[0]+":", "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, tr(kv[1]), "", 1, "L", false, 0, "")
	}
	if !r.PaidAt.IsZero() {
		pdf.CellFormat(35, 7, "Paid at:", "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, r.PaidAt.Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	widths := []float64{70, 20, 30, 30, 40}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"Product", "Qty", "Price", "GST 18%", "Price incl. GST"} {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, l := range r.Lines {
		pdf.CellFormat(widths[0], 7, tr(l.Title), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprintf("%d", l.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 7, l.Price.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, l.GST.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 7, l.LineTotal.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	totals := [][2]string{
		{"Subtotal", r.Subtotal.StringFixed(2)},
		{"GST (18%)", r.GST.StringFixed(2)},
	}
	for _, kv := range totals {
		pdf.CellFormat(150, 7, kv[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, "INR "+kv[1], "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(150, 8, "Total", "", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, "INR "+r.Total.StringFixed(2), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "render receipt pdf")
	}
	return buf.Bytes(), nil
}
