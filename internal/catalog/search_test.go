package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-storefront/internal/apperr"
)

func seedSearchFixtures(t *testing.T, s *Store) (*Category, []*Product) {
	t.Helper()
	phones := seedCategory(t, s, "Phones")
	other := seedCategory(t, s, "Other")
	products := []*Product{
		seedProduct(t, s, Product{Title: "Pixel Phone", Description: "android flagship", Price: 699, CategoryID: phones.ID,
			Reviews: []Review{{UserID: "u1", Rating: 5}, {UserID: "u2", Rating: 4}}}),
		seedProduct(t, s, Product{Title: "Budget Phone", Description: "cheap android", Price: 99, CategoryID: phones.ID,
			Reviews: []Review{{UserID: "u1", Rating: 3}}}),
		seedProduct(t, s, Product{Title: "Phone Case", Description: "silicone", Price: 15, CategoryID: other.ID}),
		seedProduct(t, s, Product{Title: "Charger", Description: "usb-c fast charger", Price: 25, CategoryID: other.ID,
			Reviews: []Review{{UserID: "u3", Rating: 4}}}),
	}
	return phones, products
}

func titles(page *Page) []string {
	var out []string
	for _, p := range page.Items {
		out = append(out, p.Title)
	}
	return out
}

func TestSearch_DefaultsNewestFirst(t *testing.T) {
	s, _ := newTestStore(t)
	seedSearchFixtures(t, s)

	page, err := s.Search(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, page.Pages)
	assert.Equal(t, 4, page.Count)
	assert.Equal(t, []string{"Charger", "Phone Case", "Budget Phone", "Pixel Phone"}, titles(page))
}

func TestSearch_KeywordIsCaseInsensitive(t *testing.T) {
	s, _ := newTestStore(t)
	seedSearchFixtures(t, s)

	page, err := s.Search(context.Background(), Query{Keyword: "ANDROID", SortField: SortPrice})
	require.NoError(t, err)
	assert.Equal(t, []string{"Budget Phone", "Pixel Phone"}, titles(page))
}

func TestSearch_Filters(t *testing.T) {
	s, _ := newTestStore(t)
	phones, _ := seedSearchFixtures(t, s)
	ctx := context.Background()

	page, err := s.Search(ctx, Query{CategoryID: phones.ID, MaxPrice: ptr(500)})
	require.NoError(t, err)
	assert.Equal(t, []string{"Budget Phone"}, titles(page))

	page, err = s.Search(ctx, Query{MinPrice: ptr(20), MaxPrice: ptr(100), SortField: SortPrice, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Budget Phone", "Charger"}, titles(page))

	page, err = s.Search(ctx, Query{MinRating: ptr(4), SortField: SortRating, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Pixel Phone", "Charger"}, titles(page))
}

func TestSearch_ByIDs(t *testing.T) {
	s, _ := newTestStore(t)
	_, products := seedSearchFixtures(t, s)

	page, err := s.Search(context.Background(), Query{
		IDs:       []string{products[0].ID, products[2].ID, "missing"},
		SortField: SortTitle,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Phone Case", "Pixel Phone"}, titles(page))
}

func TestSearch_Pagination(t *testing.T) {
	s, _ := newTestStore(t)
	seedSearchFixtures(t, s)
	ctx := context.Background()

	page, err := s.Search(ctx, Query{SortField: SortPrice, Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Equal(t, 1, page.Count)
	assert.Equal(t, []string{"Pixel Phone"}, titles(page))

	page, err = s.Search(ctx, Query{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
}

func TestSearch_RejectsBadInput(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Search(ctx, Query{SortField: "stock"})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = s.Search(ctx, Query{MinPrice: ptr(10), MaxPrice: ptr(5)})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestQuery_LimitClamped(t *testing.T) {
	q := Query{Limit: 1000}
	require.NoError(t, q.normalize())
	assert.Equal(t, MaxLimit, q.Limit)
	assert.Equal(t, DefaultPage, q.Page)
	assert.Equal(t, SortCreatedAt, q.SortField)
	assert.True(t, q.Desc)
}
