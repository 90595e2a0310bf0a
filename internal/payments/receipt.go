package payments

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-storefront/internal/orders"
)

// gstRate is the flat GST applied on receipts. It is independent of the tax
// stored on the order.
var gstRate = decimal.RequireFromString("0.18")

// ReceiptLine is one product on a receipt. GST and LineTotal are per unit.
type ReceiptLine struct {
	Title     string
	Quantity  int
	Price     decimal.Decimal
	GST       decimal.Decimal
	LineTotal decimal.Decimal
}

// Receipt is the GST-inclusive breakdown mailed after payment.
type Receipt struct {
	OrderID   string
	Customer  string
	Email     string
	PaymentID string
	Method    string
	PaidAt    time.Time
	Lines     []ReceiptLine
	Subtotal  decimal.Decimal
	GST       decimal.Decimal
	Total     decimal.Decimal
}

// BuildReceipt computes the receipt for a paid order.
func BuildReceipt(o *orders.Order) Receipt {
	r := Receipt{
		OrderID:   o.OrderID,
		Customer:  o.Customer.Name,
		Email:     o.Customer.Email,
		PaymentID: o.PaymentID,
		Method:    o.PaymentMethod,
		Subtotal:  decimal.Zero,
	}
	if o.PaidAt != nil {
		r.PaidAt = *o.PaidAt
	}
	for _, it := range o.Items {
		price := decimal.NewFromFloat(it.Price)
		gst := price.Mul(gstRate)
		r.Lines = append(r.Lines, ReceiptLine{
			Title:     it.Title,
			Quantity:  it.Quantity,
			Price:     price,
			GST:       gst,
			LineTotal: price.Add(gst),
		})
		r.Subtotal = r.Subtotal.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	r.GST = r.Subtotal.Mul(gstRate)
	r.Total = r.Subtotal.Add(r.GST)
	return r
}

// Text renders the receipt as the e-mail body.
func (r Receipt) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nThank you for your payment. Your receipt is attached.\n\n", r.Customer)
	fmt.Fprintf(&b, "Order: %s\nPayment: %s (%s)\n\n", r.OrderID, r.PaymentID, r.Method)
	for _, l := range r.Lines {
		fmt.Fprintf(&b, "%s x%d  %s + GST %s = %s\n", l.Title, l.Quantity,
			l.Price.StringFixed(2), l.GST.StringFixed(2), l.LineTotal.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nSubtotal: INR %s\nGST (18%%): INR %s\nTotal: INR %s\n",
		r.Subtotal.StringFixed(2), r.GST.StringFixed(2), r.Total.StringFixed(2))
	return b.String()
}
