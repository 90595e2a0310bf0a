package orders

import (
	"time"

	"github.com/pkg/errors"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/notify"
)

// Status is the order lifecycle stage.
type Status string

// Order statuses
const (
	StatusPending   Status = "Pending"
	StatusPaid      Status = "Paid"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

// Statuses lists every valid status.
var Statuses = []Status{StatusPending, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled}

// ParseStatus validates s against the known statuses.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", errors.Wrapf(apperr.ErrInvalidStatus, "status %q", s)
}

// LineItem is a product captured with its unit price at creation time.
type LineItem struct {
	ProductID string  `dynamodbav:"product_id" json:"product_id"`
	Title     string  `dynamodbav:"title" json:"title"`
	Quantity  int     `dynamodbav:"quantity" json:"quantity"`
	Price     float64 `dynamodbav:"price" json:"price"`
}

// ShippingAddress is where the order is delivered.
type ShippingAddress struct {
	Line1      string `dynamodbav:"line1" json:"line1"`
	Line2      string `dynamodbav:"line2,omitempty" json:"line2,omitempty"`
	City       string `dynamodbav:"city" json:"city"`
	State      string `dynamodbav:"state,omitempty" json:"state,omitempty"`
	Country    string `dynamodbav:"country" json:"country"`
	PostalCode string `dynamodbav:"postal_code" json:"postal_code"`
}

// Customer is the owner's contact snapshot, used for notifications.
type Customer struct {
	Name  string `dynamodbav:"name" json:"name"`
	Email string `dynamodbav:"email" json:"email"`
	Phone string `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
}

// Order represents the item stored in the orders table.
type Order struct {
	OrderID  string     `dynamodbav:"order_id" json:"id"` // PK
	UserID   string     `dynamodbav:"user_id" json:"user_id"`
	Customer Customer   `dynamodbav:"customer" json:"customer"`
	Items    []LineItem `dynamodbav:"items" json:"items"`

	Subtotal float64 `dynamodbav:"subtotal" json:"subtotal"`
	Discount float64 `dynamodbav:"discount" json:"discount"`
	Tax      float64 `dynamodbav:"tax" json:"tax"`
	Total    float64 `dynamodbav:"total" json:"total"`

	Status Status `dynamodbav:"status" json:"status"`

	PaymentProvider string     `dynamodbav:"payment_provider,omitempty" json:"payment_provider,omitempty"`
	PaymentMethod   string     `dynamodbav:"payment_method,omitempty" json:"payment_method,omitempty"`
	PaymentID       string     `dynamodbav:"payment_id,omitempty" json:"payment_id,omitempty"`
	PaidAt          *time.Time `dynamodbav:"paid_at,omitempty" json:"paid_at,omitempty"`

	ShippingAddress ShippingAddress `dynamodbav:"shipping_address" json:"shipping_address"`

	CreatedAt time.Time `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt time.Time `dynamodbav:"updated_at" json:"updated_at"`
}

// ItemCount is the total number of units in the order.
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// Info is the notification view of the order.
func (o *Order) Info() notify.OrderInfo {
	return notify.OrderInfo{
		ID:        o.OrderID,
		Name:      o.Customer.Name,
		Email:     o.Customer.Email,
		Phone:     o.Customer.Phone,
		Total:     o.Total,
		ItemCount: o.ItemCount(),
	}
}

// Payment is recorded on an order when it is paid.
type Payment struct {
	ID       string
	Method   string
	Provider string
	PaidAt   time.Time
}
