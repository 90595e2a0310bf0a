// Package notify formats customer notifications and hands them to a
// delivery channel: the SQS queue, direct e-mail/SMS senders, or the log.
package notify

import "fmt"

// Kinds of Message.
const (
	KindStatusUpdate = "status_update"
	KindReceipt      = "receipt"
)

// OrderInfo is the slice of an order a notification needs.
type OrderInfo struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone,omitempty"`
	Total     float64 `json:"total"`
	ItemCount int     `json:"item_count"`
}

// Attachment is a file sent with an e-mail.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Message is one notification, addressed to a customer by e-mail and,
// when a phone number is known, by SMS. It is also the SQS message body.
type Message struct {
	Kind    string `json:"kind"`
	OrderID string `json:"order_id"`

	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`

	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	SMS   string `json:"sms,omitempty"`

	Attachment *Attachment `json:"attachment,omitempty"`
}

// Summary is the short text reported back to the admin who triggered a
// status change.
type Summary struct {
	Email string `json:"email"`
	SMS   string `json:"sms"`
}

// StatusUpdate builds the notification for order moving to status.
func StatusUpdate(o OrderInfo, status string) Message {
	return Message{
		Kind:    KindStatusUpdate,
		OrderID: o.ID,
		To:      o.Email,
		Subject: fmt.Sprintf("Order %s is now %s", o.ID, status),
		Body: fmt.Sprintf("Hi %s,\n\nYour order %s status is now %q.\n\nItems: %d\nTotal: %.2f\n\nThank you for shopping with us.",
			o.Name, o.ID, status, o.ItemCount, o.Total),
		Name:  o.Name,
		Phone: o.Phone,
		SMS:   fmt.Sprintf("Order %s → %s", o.ID, status),
	}
}

// StatusSummary renders the one-line texts for a status change.
func StatusSummary(o OrderInfo, status string) Summary {
	return Summary{
		Email: fmt.Sprintf("Email sent to %s: Your order %s status is now %q", o.Email, o.ID, status),
		SMS:   fmt.Sprintf("SMS sent to %s: Order %s → %s", o.Name, o.ID, status),
	}
}

// Receipt builds the payment receipt e-mail carrying pdf.
func Receipt(o OrderInfo, body string, pdf []byte) Message {
	return Message{
		Kind:    KindReceipt,
		OrderID: o.ID,
		To:      o.Email,
		Subject: "Order Receipt - " + o.ID,
		Body:    body,
		Name:    o.Name,
		Attachment: &Attachment{
			Filename:    fmt.Sprintf("receipt-%s.pdf", o.ID),
			ContentType: "application/pdf",
			Data:        pdf,
		},
	}
}
