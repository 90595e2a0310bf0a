package cart

import "time"

// Item is one cart line. A cart never holds two lines for the same product
// and never holds a line with Quantity < 1.
type Item struct {
	ProductID string `dynamodbav:"product_id" json:"product_id"`
	Quantity  int    `dynamodbav:"quantity" json:"quantity"`
}

// Cart is the item stored in the carts table, one per user.
type Cart struct {
	UserID    string    `dynamodbav:"user_id" json:"user_id"` // PK
	Items     []Item    `dynamodbav:"items" json:"items"`
	UpdatedAt time.Time `dynamodbav:"updated_at" json:"updated_at"`
}

// Quantity returns the quantity held for productID, or 0.
func (c *Cart) Quantity(productID string) int {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it.Quantity
		}
	}
	return 0
}

// set replaces the line for productID. qty <= 0 drops the line.
func (c *Cart) set(productID string, qty int) {
	for i, it := range c.Items {
		if it.ProductID != productID {
			continue
		}
		if qty <= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		} else {
			c.Items[i].Quantity = qty
		}
		return
	}
	if qty > 0 {
		c.Items = append(c.Items, Item{ProductID: productID, Quantity: qty})
	}
}

// Line is a cart item priced against the current catalog.
type Line struct {
	ProductID string  `json:"product_id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	LineTotal float64 `json:"line_total"`
}

// View is the priced cart returned to clients.
type View struct {
	UserID    string    `json:"user_id"`
	Items     []Line    `json:"items"`
	Subtotal  float64   `json:"subtotal"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}
