package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/apperr"
)

// maxReviewAttempts bounds the read-modify-write loop in AddReview.
const maxReviewAttempts = 3

// ReviewInput is a new review submitted by an authenticated user.
type ReviewInput struct {
	ProductID string
	UserID    string
	UserName  string
	Rating    float64
	Comment   string
}

// ProductStore is the subset of Store the aggregator needs.
type ProductStore interface {
	Get(ctx context.Context, id string) (*Product, error)
	Save(ctx context.Context, p *Product, expectedVersion int) error
}

// Aggregator appends reviews to products and keeps their rating aggregate
// consistent.
type Aggregator struct {
	products ProductStore
	nowFunc  func() time.Time
}

func NewAggregator(products ProductStore) *Aggregator {
	return &Aggregator{products: products, nowFunc: time.Now}
}

// AddReview records in.UserID's review of in.ProductID and returns the updated
// product. Concurrent writers are serialized through the product version; a
// writer that loses the race re-reads and retries.
func (a *Aggregator) AddReview(ctx context.Context, in ReviewInput) (*Product, error) {
	if !(in.Rating >= 1 && in.Rating <= 5) {
		return nil, errors.WithStack(apperr.ErrInvalidRating)
	}

	for attempt := 1; ; attempt++ {
		p, err := a.products.Get(ctx, in.ProductID)
		if err != nil {
			return nil, err
		}
		if p.ReviewedBy(in.UserID) {
			return nil, errors.Wrapf(apperr.ErrDuplicateReview, "product %s", in.ProductID)
		}

		p.Reviews = append(p.Reviews, Review{
			UserID:    in.UserID,
			Name:      in.UserName,
			Rating:    in.Rating,
			Comment:   strings.TrimSpace(in.Comment),
			CreatedAt: a.nowFunc().UTC(),
		})
		Recompute(p)

		err = a.products.Save(ctx, p, p.Version)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, apperr.ErrVersionConflict) || attempt == maxReviewAttempts {
			return nil, err
		}
		log.WithFields(log.Fields{
			"productId": in.ProductID,
			"attempt":   attempt,
		}).Warn("review write lost version race, retrying")
	}
}

// ListReviews returns the reviews of a product in submission order.
func (a *Aggregator) ListReviews(ctx context.Context, productID string) ([]Review, error) {
	p, err := a.products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.Reviews == nil {
		return []Review{}, nil
	}
	return p.Reviews, nil
}
