package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/cart"
	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/idempotency"
	"github.com/imrishuroy/go-storefront/internal/notify"
)

// Catalog resolves product ids to their current state.
type Catalog interface {
	ListByIDs(ctx context.Context, ids []string) ([]catalog.Product, error)
}

// Carts is the cart ledger used by Checkout.
type Carts interface {
	Get(ctx context.Context, userID string) (*cart.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// Counter records business metrics.
type Counter interface {
	Count(ctx context.Context, name string, value float64, dims map[string]string) error
}

// Requester is the authenticated caller of an order operation.
type Requester struct {
	UserID string
	Admin  bool
}

// CreateInput is a customer's order request.
type CreateInput struct {
	Items           []RequestedItem
	Discount        float64
	Tax             float64
	ShippingAddress ShippingAddress
	// IdempotencyKey, when set, makes retries of the same request return
	// the order created by the first one.
	IdempotencyKey string
}

// EngineConfig groups dependencies for the order engine. Carts, Metrics,
// Idempotency and Transitions are optional.
type EngineConfig struct {
	Store       *Store
	Catalog     Catalog
	Carts       Carts
	Dispatcher  notify.Dispatcher
	Metrics     Counter
	Idempotency *idempotency.Store
	Transitions TransitionPolicy
}

// Engine owns order creation and the order status lifecycle.
type Engine struct {
	store       *Store
	catalog     Catalog
	carts       Carts
	dispatcher  notify.Dispatcher
	metrics     Counter
	idem        *idempotency.Store
	transitions TransitionPolicy
}

func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		store:       cfg.Store,
		catalog:     cfg.Catalog,
		carts:       cfg.Carts,
		dispatcher:  cfg.Dispatcher,
		metrics:     cfg.Metrics,
		idem:        cfg.Idempotency,
		transitions: cfg.Transitions,
	}
	if e.dispatcher == nil {
		e.dispatcher = notify.LogDispatcher{}
	}
	if e.transitions == nil {
		e.transitions = AllowAnyTransition
	}
	return e
}

// Create prices the requested items at their current catalog price and
// persists a Pending order. All items must resolve or nothing is written.
func (e *Engine) Create(ctx context.Context, userID string, customer Customer, in CreateInput) (*Order, error) {
	if len(in.Items) == 0 {
		return nil, apperr.Validation("no order items")
	}
	if in.Discount < 0 || in.Tax < 0 {
		return nil, apperr.Validation("discount and tax must not be negative")
	}

	var idemKey string
	if in.IdempotencyKey != "" && e.idem != nil {
		idemKey = idempotency.StorageKey(idempotency.ScopeCreateOrder, userID, in.IdempotencyKey)
		if prior, err := e.replay(ctx, idemKey); prior != nil || err != nil {
			return prior, err
		}
	}

	ids := make([]string, 0, len(in.Items))
	for _, it := range in.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := e.catalog.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	lines, err := priceLines(in.Items, products)
	if err != nil {
		return nil, err
	}

	order := &Order{
		OrderID:         uuid.NewString(),
		UserID:          userID,
		Customer:        customer,
		Items:           lines,
		Status:          StatusPending,
		ShippingAddress: in.ShippingAddress,
	}
	applyTotals(order, in.Discount, in.Tax)

	if idemKey == "" {
		if err := e.store.Create(ctx, order); err != nil {
			return nil, err
		}
	} else {
		rec := e.idem.NewRecord(idempotency.ScopeCreateOrder, userID, in.IdempotencyKey, order.OrderID)
		rec.Status = idempotency.StatusDone
		err := e.store.CreateWithIdempotencyTransaction(ctx, e.idem.TableName(), rec, order, e.idem.TTL())
		if errors.Is(err, ErrDuplicateRequest) {
			// a concurrent request with the same key won
			prior, rerr := e.replay(ctx, idemKey)
			if rerr != nil {
				return nil, rerr
			}
			if prior == nil {
				return nil, pkgerrors.Wrap(apperr.ErrConflict, "idempotency key in use")
			}
			return prior, nil
		}
		if err != nil {
			return nil, err
		}
	}

	log.WithFields(log.Fields{
		"orderId": order.OrderID,
		"userId":  userID,
		"items":   len(order.Items),
		"total":   order.Total,
	}).Info("order created")
	e.count(ctx, "OrdersCreated", nil)
	return order, nil
}

// replay returns the order a previous request with idemKey created, or nil
// if the key is unused.
func (e *Engine) replay(ctx context.Context, idemKey string) (*Order, error) {
	rec, err := e.idem.Get(ctx, idemKey)
	if err != nil || rec == nil {
		return nil, err
	}
	o, err := e.store.Get(ctx, rec.ResourceID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperr.NotFound("order %s", rec.ResourceID)
	}
	log.WithFields(log.Fields{"orderId": o.OrderID, "userId": rec.UserID}).Info("order create replayed")
	return o, nil
}

// CheckoutInput is the order-level part of a checkout; the items come from
// the cart.
type CheckoutInput struct {
	Discount        float64
	Tax             float64
	ShippingAddress ShippingAddress
	IdempotencyKey  string
}

// Checkout creates an order from the user's cart and then clears the cart.
// The order stands even if clearing fails.
func (e *Engine) Checkout(ctx context.Context, userID string, customer Customer, in CheckoutInput) (*Order, error) {
	if e.carts == nil {
		return nil, pkgerrors.New("checkout: no cart ledger configured")
	}
	// a retried checkout finds the cart already cleared
	if in.IdempotencyKey != "" && e.idem != nil {
		idemKey := idempotency.StorageKey(idempotency.ScopeCreateOrder, userID, in.IdempotencyKey)
		if prior, err := e.replay(ctx, idemKey); prior != nil || err != nil {
			return prior, err
		}
	}
	c, err := e.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c == nil || len(c.Items) == 0 {
		return nil, apperr.Validation("cart is empty")
	}

	items := make([]RequestedItem, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, RequestedItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	order, err := e.Create(ctx, userID, customer, CreateInput{
		Items:           items,
		Discount:        in.Discount,
		Tax:             in.Tax,
		ShippingAddress: in.ShippingAddress,
		IdempotencyKey:  in.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}

	if err := e.carts.Clear(ctx, userID); err != nil {
		log.WithError(err).WithField("userId", userID).Error("failed to clear cart after checkout")
	}
	return order, nil
}

// SetStatus moves an order to status and notifies the customer. Delivery
// failures are logged; the status change stands.
func (e *Engine) SetStatus(ctx context.Context, orderID, status string) (*Order, notify.Summary, error) {
	next, err := ParseStatus(status)
	if err != nil {
		return nil, notify.Summary{}, err
	}
	current, err := e.store.Get(ctx, orderID)
	if err != nil {
		return nil, notify.Summary{}, err
	}
	if current == nil {
		return nil, notify.Summary{}, apperr.NotFound("order %s", orderID)
	}
	if !e.transitions(current.Status, next) {
		return nil, notify.Summary{}, pkgerrors.Wrapf(apperr.ErrInvalidStatus, "cannot move order from %s to %s", current.Status, next)
	}

	updated, err := e.store.UpdateStatus(ctx, orderID, current.Status, next)
	if errors.Is(err, ErrStatusMismatch) {
		return nil, notify.Summary{}, pkgerrors.Wrapf(apperr.ErrVersionConflict, "order %s changed concurrently", orderID)
	}
	if err != nil {
		return nil, notify.Summary{}, err
	}

	info := updated.Info()
	summary := notify.StatusSummary(info, string(next))
	if err := e.dispatcher.Dispatch(ctx, notify.StatusUpdate(info, string(next))); err != nil {
		log.WithError(err).WithField("orderId", orderID).Warn("status notification failed")
	}

	log.WithFields(log.Fields{
		"orderId": orderID,
		"from":    current.Status,
		"to":      next,
	}).Info("order status changed")
	e.count(ctx, "OrderStatusChanged", map[string]string{"Status": string(next)})
	return updated, summary, nil
}

// Get returns an order visible to the requester: its owner or an admin.
func (e *Engine) Get(ctx context.Context, orderID string, r Requester) (*Order, error) {
	o, err := e.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperr.NotFound("order %s", orderID)
	}
	if o.UserID != r.UserID && !r.Admin {
		return nil, pkgerrors.Wrapf(apperr.ErrForbidden, "order %s", orderID)
	}
	return o, nil
}

// ListMine returns the user's orders, newest first.
func (e *Engine) ListMine(ctx context.Context, userID string) ([]Order, error) {
	return e.store.ListByUser(ctx, userID)
}

// ListAll returns all orders, newest first. status, when not empty, must
// be a valid status and restricts the result to it.
func (e *Engine) ListAll(ctx context.Context, status string) ([]Order, error) {
	var filter Status
	if status != "" {
		st, err := ParseStatus(status)
		if err != nil {
			return nil, err
		}
		filter = st
	}
	return e.store.ListAll(ctx, filter)
}

func (e *Engine) count(ctx context.Context, name string, dims map[string]string) {
	if e.metrics == nil {
		return
	}
	if err := e.metrics.Count(ctx, name, 1, dims); err != nil {
		log.WithError(err).WithField("metric", name).Warn("metric publish failed")
	}
}
