// Package cart keeps each user's product → quantity ledger.
package cart

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/catalog"
)

// Catalog resolves products referenced by cart lines.
type Catalog interface {
	Get(ctx context.Context, id string) (*catalog.Product, error)
	ListByIDs(ctx context.Context, ids []string) ([]catalog.Product, error)
}

// Service implements the cart operations on top of Store.
type Service struct {
	store   *Store
	catalog Catalog
	nowFunc func() time.Time
}

func NewService(store *Store, products Catalog) *Service {
	return &Service{store: store, catalog: products, nowFunc: time.Now}
}

// Get returns the user's cart, or an empty one if none exists yet.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return &Cart{UserID: userID, Items: []Item{}}, nil
	}
	return c, nil
}

// Add puts qty more of productID in the cart. The cart is created on first use.
func (s *Service) Add(ctx context.Context, userID, productID string, qty int) (*Cart, error) {
	if qty < 1 {
		return nil, apperr.Validation("quantity must be at least 1")
	}
	if _, err := s.catalog.Get(ctx, productID); err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.set(productID, c.Quantity(productID)+qty)
	return c, s.save(ctx, c)
}

// SetQuantity replaces the quantity of productID. qty <= 0 removes the line.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, qty int) (*Cart, error) {
	if qty <= 0 {
		return s.remove(ctx, userID, productID, false)
	}
	if _, err := s.catalog.Get(ctx, productID); err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.set(productID, qty)
	return c, s.save(ctx, c)
}

// Remove drops productID from the cart. It fails if the user has no cart.
func (s *Service) Remove(ctx context.Context, userID, productID string) (*Cart, error) {
	return s.remove(ctx, userID, productID, true)
}

func (s *Service) remove(ctx context.Context, userID, productID string, requireCart bool) (*Cart, error) {
	c, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		if requireCart {
			return nil, apperr.NotFound("cart for user %s", userID)
		}
		return &Cart{UserID: userID, Items: []Item{}}, nil
	}
	c.set(productID, 0)
	return c, s.save(ctx, c)
}

// Merge folds a guest cart into the user's cart, summing quantities per
// product. Every referenced product must exist; nothing is written otherwise.
func (s *Service) Merge(ctx context.Context, userID string, items []Item) (*Cart, error) {
	if len(items) == 0 {
		return s.Get(ctx, userID)
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, apperr.Validation("quantity for product %s must be at least 1", it.ProductID)
		}
		ids = append(ids, it.ProductID)
	}
	found, err := s.catalog.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(found))
	for _, p := range found {
		known[p.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return nil, errors.Wrapf(apperr.ErrInvalidProduct, "product %s", id)
		}
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		c.set(it.ProductID, c.Quantity(it.ProductID)+it.Quantity)
	}
	return c, s.save(ctx, c)
}

// Clear deletes the user's cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID)
}

// Price resolves each line against the catalog. Lines whose product has since
// been deleted are left out.
func (s *Service) Price(ctx context.Context, c *Cart) (*View, error) {
	v := &View{UserID: c.UserID, Items: []Line{}, UpdatedAt: c.UpdatedAt}
	if len(c.Items) == 0 {
		return v, nil
	}
	ids := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.ProductID)
	}
	found, err := s.catalog.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]catalog.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	for _, it := range c.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			log.WithField("productId", it.ProductID).Warn("cart references a missing product")
			continue
		}
		line := Line{
			ProductID: p.ID,
			Title:     p.Title,
			Price:     p.Price,
			Quantity:  it.Quantity,
			LineTotal: p.Price * float64(it.Quantity),
		}
		v.Items = append(v.Items, line)
		v.Subtotal += line.LineTotal
	}
	return v, nil
}

func (s *Service) save(ctx context.Context, c *Cart) error {
	c.UpdatedAt = s.nowFunc().UTC()
	return s.store.Put(ctx, c)
}
