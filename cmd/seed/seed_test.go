package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-storefront/internal/aws/awstest"
	"github.com/imrishuroy/go-storefront/internal/catalog"
)

const seedJSON = `{
  "categories": [{"name": "Kitchen"}, {"name": "Tea & Coffee", "slug": "tea"}],
  "products": [
    {"title": "Mug", "price": 10, "stock": 5, "category": "kitchen"},
    {"title": "Assam", "description": "Strong black tea", "price": 4.5, "stock": 40, "category": "tea"},
    {"title": "Gift card", "price": 25}
  ]
}`

func newSeedStore() (*catalog.Store, *awstest.DynamoDB) {
	db := awstest.NewDynamoDB()
	db.CreateTable("products", "product_id")
	db.CreateTable("categories", "category_id")
	return catalog.NewStore(db, "products", "categories"), db
}

func writeSeedFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestSeed(t *testing.T) {
	store, db := newSeedStore()
	data, err := readSeedFile(writeSeedFile(t, seedJSON))
	require.NoError(t, err)

	res, err := seed(context.Background(), store, data)
	require.NoError(t, err)
	assert.Equal(t, Result{Categories: 2, Products: 3}, res)
	assert.Equal(t, 3, db.Len("products"))

	page, err := store.Search(context.Background(), catalog.Query{Keyword: "black tea"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Assam", page.Items[0].Title)

	// a second run reuses the categories
	res, err = seed(context.Background(), store, &SeedFile{Categories: data.Categories})
	require.NoError(t, err)
	assert.Equal(t, Result{SkippedCategories: 2}, res)
	assert.Equal(t, 2, db.Len("categories"))
}

func TestSeed_UnknownCategory(t *testing.T) {
	store, db := newSeedStore()
	_, err := seed(context.Background(), store, &SeedFile{Products: []SeedProduct{{Title: "Mug", Category: "nope"}}})
	require.ErrorContains(t, err, `unknown category "nope"`)
	assert.Equal(t, 0, db.Len("products"))
}

func TestReadSeedFile_Invalid(t *testing.T) {
	_, err := readSeedFile(writeSeedFile(t, `{"products":[{"title":"","price":1}]}`))
	require.ErrorContains(t, err, "title is required")

	_, err = readSeedFile(writeSeedFile(t, `{"products":[{"title":"x","price":-1}]}`))
	require.Error(t, err)

	_, err = readSeedFile(writeSeedFile(t, `{`))
	require.Error(t, err)

	_, err = readSeedFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
