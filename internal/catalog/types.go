package catalog

import (
	"strings"
	"time"
)

// Review is a customer's rating of a product. It is owned by the product.
type Review struct {
	UserID    string    `dynamodbav:"user_id" json:"user_id"`
	Name      string    `dynamodbav:"name" json:"name"` // display name at review time
	Rating    float64   `dynamodbav:"rating" json:"rating"`
	Comment   string    `dynamodbav:"comment" json:"comment"`
	CreatedAt time.Time `dynamodbav:"created_at" json:"created_at"`
}

// Product is the item stored in the products table.
// Rating and NumReviews are derived from Reviews; see Recompute.
type Product struct {
	ID          string            `dynamodbav:"product_id" json:"id"` // PK
	Title       string            `dynamodbav:"title" json:"title"`
	Description string            `dynamodbav:"description" json:"description"`
	Price       float64           `dynamodbav:"price" json:"price"`
	Stock       int               `dynamodbav:"stock" json:"stock"`
	Rating      float64           `dynamodbav:"rating" json:"rating"`
	NumReviews  int               `dynamodbav:"num_reviews" json:"num_reviews"`
	Reviews     []Review          `dynamodbav:"reviews,omitempty" json:"reviews"`
	CategoryID  string            `dynamodbav:"category_id" json:"category_id"`
	Brand       string            `dynamodbav:"brand,omitempty" json:"brand,omitempty"`
	Images      []string          `dynamodbav:"images,omitempty" json:"images,omitempty"`
	Attributes  map[string]string `dynamodbav:"attributes,omitempty" json:"attributes,omitempty"`
	SearchText  string            `dynamodbav:"search_text" json:"-"` // lower-cased title + description
	Version     int               `dynamodbav:"version" json:"version"`
	CreatedAt   time.Time         `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `dynamodbav:"updated_at" json:"updated_at"`
}

// ReviewedBy reports whether userID already reviewed the product.
func (p *Product) ReviewedBy(userID string) bool {
	for _, r := range p.Reviews {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// Recompute derives NumReviews and Rating from Reviews. The sum runs in review
// order so the same review sequence always yields the same float.
func Recompute(p *Product) {
	p.NumReviews = len(p.Reviews)
	if p.NumReviews == 0 {
		p.Rating = 0
		return
	}
	var sum float64
	for _, r := range p.Reviews {
		sum += r.Rating
	}
	p.Rating = sum / float64(p.NumReviews)
}

func searchText(p *Product) string {
	return strings.ToLower(p.Title + " " + p.Description)
}

// Category groups products.
type Category struct {
	ID        string    `dynamodbav:"category_id" json:"id"` // PK
	Name      string    `dynamodbav:"name" json:"name"`
	Slug      string    `dynamodbav:"slug" json:"slug"`
	CreatedAt time.Time `dynamodbav:"created_at" json:"created_at"`
}

// Slugify lower-cases name and joins its words with dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ProductUpdate carries the fields an admin may change. Nil fields are kept.
type ProductUpdate struct {
	Title       *string
	Description *string
	Price       *float64
	Stock       *int
	CategoryID  *string
	Brand       *string
	Images      []string
}

func (u ProductUpdate) apply(p *Product) {
	if u.Title != nil && *u.Title != "" {
		p.Title = *u.Title
	}
	if u.Description != nil && *u.Description != "" {
		p.Description = *u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	if u.CategoryID != nil && *u.CategoryID != "" {
		p.CategoryID = *u.CategoryID
	}
	if u.Brand != nil && *u.Brand != "" {
		p.Brand = *u.Brand
	}
	if len(u.Images) > 0 {
		p.Images = u.Images
	}
}
