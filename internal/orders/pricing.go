package orders

import (
	"github.com/pkg/errors"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/catalog"
)

// RequestedItem is a product and quantity asked for by the customer.
type RequestedItem struct {
	ProductID string
	Quantity  int
}

// priceLines resolves every requested item against products and freezes its
// current price. Any id missing from products fails the whole request.
// Quantities below 1 are raised to 1.
func priceLines(requested []RequestedItem, products []catalog.Product) ([]LineItem, error) {
	byID := make(map[string]*catalog.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	lines := make([]LineItem, 0, len(requested))
	for _, r := range requested {
		p, ok := byID[r.ProductID]
		if !ok {
			return nil, errors.Wrapf(apperr.ErrInvalidProduct, "product %s", r.ProductID)
		}
		qty := r.Quantity
		if qty < 1 {
			qty = 1
		}
		lines = append(lines, LineItem{
			ProductID: p.ID,
			Title:     p.Title,
			Quantity:  qty,
			Price:     p.Price,
		})
	}
	return lines, nil
}

// applyTotals sets Subtotal and Total from the line items and the given
// discount and tax.
func applyTotals(o *Order, discount, tax float64) {
	var subtotal float64
	for _, it := range o.Items {
		subtotal += it.Price * float64(it.Quantity)
	}
	o.Subtotal = subtotal
	o.Discount = discount
	o.Tax = tax
	o.Total = subtotal - discount + tax
}
