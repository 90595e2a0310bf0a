// Package payments is a mock payment provider: it marks orders paid and
// mails a GST receipt.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/notify"
	"github.com/imrishuroy/go-storefront/internal/orders"
)

const (
	DefaultMethod = "Card"
	Provider      = "mock"
	Currency      = "INR"
)

// Orders is the order storage Pay works against.
type Orders interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	MarkPaid(ctx context.Context, orderID string, p orders.Payment) (*orders.Order, error)
}

// Counter records business metrics.
type Counter interface {
	Count(ctx context.Context, name string, value float64, dims map[string]string) error
}

// Result is returned to the payer.
type Result struct {
	PaymentID string        `json:"payment_id"`
	Method    string        `json:"method"`
	Amount    float64       `json:"amount"`
	Currency  string        `json:"currency"`
	Status    string        `json:"status"`
	Order     *orders.Order `json:"order"`
}

// Service settles orders.
type Service struct {
	orders     Orders
	dispatcher notify.Dispatcher
	metrics    Counter
	nowFunc    func() time.Time
}

// NewService returns a payment Service. metrics may be nil.
func NewService(store Orders, dispatcher notify.Dispatcher, metrics Counter) *Service {
	if dispatcher == nil {
		dispatcher = notify.LogDispatcher{}
	}
	return &Service{orders: store, dispatcher: dispatcher, metrics: metrics, nowFunc: time.Now}
}

// Pay marks the requester's order as paid with method (default "Card") and
// sends the receipt. An order that is already paid is rejected; of two
// concurrent calls exactly one succeeds.
func (s *Service) Pay(ctx context.Context, userID, orderID, method string) (*Result, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil || o.UserID != userID {
		return nil, pkgerrors.Wrap(apperr.ErrNotFound, "Order not found for this user")
	}
	if o.Status == orders.StatusPaid {
		return nil, pkgerrors.Wrapf(apperr.ErrAlreadyPaid, "order %s", orderID)
	}

	method = strings.TrimSpace(method)
	if method == "" {
		method = DefaultMethod
	}
	now := s.nowFunc().UTC()
	payment := orders.Payment{
		ID:       NewPaymentID(now),
		Method:   method,
		Provider: Provider,
		PaidAt:   now,
	}

	paid, err := s.orders.MarkPaid(ctx, orderID, payment)
	if errors.Is(err, orders.ErrStatusMismatch) {
		return nil, pkgerrors.Wrapf(apperr.ErrAlreadyPaid, "order %s", orderID)
	}
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"orderId":   orderID,
		"paymentId": payment.ID,
		"method":    method,
		"amount":    paid.Total,
	}).Info("order paid")
	if s.metrics != nil {
		if err := s.metrics.Count(ctx, "PaymentsCompleted", 1, map[string]string{"Method": method}); err != nil {
			log.WithError(err).Warn("metric publish failed")
		}
	}

	if err := s.sendReceipt(ctx, paid); err != nil {
		log.WithError(err).WithField("orderId", orderID).Error("receipt delivery failed")
	}

	return &Result{
		PaymentID: payment.ID,
		Method:    method,
		Amount:    paid.Total,
		Currency:  Currency,
		Status:    string(orders.StatusPaid),
		Order:     paid,
	}, nil
}

func (s *Service) sendReceipt(ctx context.Context, o *orders.Order) error {
	receipt := BuildReceipt(o)
	pdf, err := RenderPDF(receipt)
	if err != nil {
		return err
	}
	return s.dispatcher.Dispatch(ctx, notify.Receipt(o.Info(), receipt.Text(), pdf))
}

// NewPaymentID returns PAY-<unix millis>-<random suffix>.
func NewPaymentID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("PAY-%d-%s", now.UnixMilli(), suffix)
}
