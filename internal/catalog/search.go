package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"

	"github.com/imrishuroy/go-storefront/internal/apperr"
)

// Sort fields accepted by Search.
const (
	SortCreatedAt  = "created_at"
	SortPrice      = "price"
	SortRating     = "rating"
	SortTitle      = "title"
	SortNumReviews = "num_reviews"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Query selects and orders products. Zero values mean "no constraint".
type Query struct {
	Keyword    string
	CategoryID string
	MinPrice   *float64
	MaxPrice   *float64
	MinRating  *float64
	IDs        []string

	SortField string
	Desc      bool

	Page  int
	Limit int
}

// Page is one page of search results.
type Page struct {
	Items []Product `json:"products"`
	Total int       `json:"total"`
	Page  int       `json:"page"`
	Pages int       `json:"pages"`
	Count int       `json:"count"`
}

// normalize fills defaults and rejects unknown sort fields.
func (q *Query) normalize() error {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	switch q.SortField {
	case "":
		q.SortField = SortCreatedAt
		q.Desc = true
	case SortCreatedAt, SortPrice, SortRating, SortTitle, SortNumReviews:
	default:
		return apperr.Validation("unsupported sort field %q", q.SortField)
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return apperr.Validation("minPrice must not exceed maxPrice")
	}
	return nil
}

// filter renders the query's constraints as a DynamoDB filter expression.
func (q *Query) filter() (string, map[string]types.AttributeValue, error) {
	var clauses []string
	values := map[string]types.AttributeValue{}
	add := func(clause, ref string, v interface{}) error {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return errors.Wrapf(err, "marshal %s", ref)
		}
		clauses = append(clauses, clause)
		values[ref] = av
		return nil
	}

	if kw := strings.ToLower(strings.TrimSpace(q.Keyword)); kw != "" {
		if err := add("contains(search_text, :kw)", ":kw", kw); err != nil {
			return "", nil, err
		}
	}
	if q.CategoryID != "" {
		if err := add("category_id = :cat", ":cat", q.CategoryID); err != nil {
			return "", nil, err
		}
	}
	if q.MinPrice != nil {
		if err := add("price >= :minPrice", ":minPrice", *q.MinPrice); err != nil {
			return "", nil, err
		}
	}
	if q.MaxPrice != nil {
		if err := add("price <= :maxPrice", ":maxPrice", *q.MaxPrice); err != nil {
			return "", nil, err
		}
	}
	if q.MinRating != nil {
		if err := add("rating >= :minRating", ":minRating", *q.MinRating); err != nil {
			return "", nil, err
		}
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return strings.Join(clauses, " AND "), values, nil
}

// Search returns the requested page of products matching q.
//
// DynamoDB has no server-side ordering for scans, so matching items are
// collected, sorted and then paginated in memory. When q.IDs is set the
// candidates come from a batched key lookup instead of a scan.
func (s *Store) Search(ctx context.Context, q Query) (*Page, error) {
	if err := q.normalize(); err != nil {
		return nil, err
	}

	var products []Product
	if len(q.IDs) > 0 {
		found, err := s.ListByIDs(ctx, q.IDs)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			if q.matches(&p) {
				products = append(products, p)
			}
		}
	} else {
		filter, values, err := q.filter()
		if err != nil {
			return nil, err
		}
		items, err := s.scan(ctx, s.productsTable, filter, values, nil)
		if err != nil {
			return nil, err
		}
		if products, err = unmarshalProducts(items); err != nil {
			return nil, err
		}
	}

	sortProducts(products, q.SortField, q.Desc)

	total := len(products)
	page := &Page{
		Total: total,
		Page:  q.Page,
		Pages: (total + q.Limit - 1) / q.Limit,
		Items: []Product{},
	}
	start := (q.Page - 1) * q.Limit
	if start < total {
		end := start + q.Limit
		if end > total {
			end = total
		}
		page.Items = products[start:end]
	}
	page.Count = len(page.Items)
	return page, nil
}

// matches applies the filter in memory, for candidates fetched by key.
func (q *Query) matches(p *Product) bool {
	if kw := strings.ToLower(strings.TrimSpace(q.Keyword)); kw != "" && !strings.Contains(searchText(p), kw) {
		return false
	}
	if q.CategoryID != "" && p.CategoryID != q.CategoryID {
		return false
	}
	if q.MinPrice != nil && p.Price < *q.MinPrice {
		return false
	}
	if q.MaxPrice != nil && p.Price > *q.MaxPrice {
		return false
	}
	if q.MinRating != nil && p.Rating < *q.MinRating {
		return false
	}
	return true
}

// sortProducts orders products by field, breaking ties by id so pages are
// stable across requests.
func sortProducts(products []Product, field string, desc bool) {
	less := func(a, b *Product) int {
		switch field {
		case SortPrice:
			return cmpFloat(a.Price, b.Price)
		case SortRating:
			return cmpFloat(a.Rating, b.Rating)
		case SortTitle:
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		case SortNumReviews:
			return a.NumReviews - b.NumReviews
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(products, func(i, j int) bool {
		c := less(&products[i], &products[j])
		if c == 0 {
			return products[i].ID < products[j].ID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
