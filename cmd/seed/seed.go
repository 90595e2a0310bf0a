package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/imrishuroy/go-storefront/internal/catalog"
)

// SeedFile is the seed file layout. Products refer to categories by slug.
type SeedFile struct {
	Categories []SeedCategory `json:"categories"`
	Products   []SeedProduct  `json:"products"`
}

type SeedCategory struct {
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

type SeedProduct struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Stock       int      `json:"stock"`
	Category    string   `json:"category"` // slug
	Brand       string   `json:"brand,omitempty"`
	Images      []string `json:"images,omitempty"`
}

// Result counts what a seed run wrote.
type Result struct {
	Categories        int
	SkippedCategories int
	Products          int
}

func (f *SeedFile) validate() error {
	for i, c := range f.Categories {
		if c.Name == "" {
			return errors.Errorf("category %d: name is required", i)
		}
	}
	for i, p := range f.Products {
		if p.Title == "" {
			return errors.Errorf("product %d: title is required", i)
		}
		if p.Price < 0 || p.Stock < 0 {
			return errors.Errorf("product %q: price and stock must not be negative", p.Title)
		}
	}
	return nil
}

// seed creates the file's categories, skipping slugs that already exist,
// then its products. It stops at the first write error.
func seed(ctx context.Context, store Catalog, data *SeedFile) (Result, error) {
	var res Result
	existing, err := store.ListCategories(ctx)
	if err != nil {
		return res, err
	}
	bySlug := make(map[string]string, len(existing))
	for _, c := range existing {
		bySlug[c.Slug] = c.ID
	}

	for _, sc := range data.Categories {
		slug := sc.Slug
		if slug == "" {
			slug = catalog.Slugify(sc.Name)
		}
		if _, ok := bySlug[slug]; ok {
			res.SkippedCategories++
			continue
		}
		c := &catalog.Category{Name: sc.Name, Slug: slug}
		if err := store.CreateCategory(ctx, c); err != nil {
			return res, errors.Wrapf(err, "create category %q", sc.Name)
		}
		bySlug[slug] = c.ID
		res.Categories++
	}

	for _, sp := range data.Products {
		p := &catalog.Product{
			Title:       sp.Title,
			Description: sp.Description,
			Price:       sp.Price,
			Stock:       sp.Stock,
			Brand:       sp.Brand,
			Images:      sp.Images,
		}
		if sp.Category != "" {
			id, ok := bySlug[sp.Category]
			if !ok {
				return res, errors.Errorf("product %q: unknown category %q", sp.Title, sp.Category)
			}
			p.CategoryID = id
		}
		if err := store.Create(ctx, p); err != nil {
			return res, errors.Wrapf(err, "create product %q", sp.Title)
		}
		res.Products++
	}
	return res, nil
}
