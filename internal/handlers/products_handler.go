package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/validation"
)

const recommendationLimit = 5

func (h *api) searchProducts(c *gin.Context) {
	var q validation.SearchQuery
	if err := validation.BindQueryAndValidate(c, &q, h.v); err != nil {
		return
	}

	query := catalog.Query{
		Keyword:    q.Keyword,
		CategoryID: q.CategoryID,
		MinPrice:   q.MinPrice,
		MaxPrice:   q.MaxPrice,
		MinRating:  q.MinRating,
		SortField:  q.Sort,
		Desc:       q.Order != "asc",
		Page:       q.Page,
		Limit:      q.Limit,
	}
	if query.SortField == "" && q.Order != "" {
		query.SortField = catalog.SortCreatedAt
	}
	if q.IDs != "" {
		for _, id := range strings.Split(q.IDs, ",") {
			if id = strings.TrimSpace(id); id != "" {
				query.IDs = append(query.IDs, id)
			}
		}
	}

	page, err := h.cfg.Catalog.Search(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *api) getProduct(c *gin.Context) {
	p, err := h.cfg.Catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *api) createProduct(c *gin.Context) {
	var req validation.ProductRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	p := &catalog.Product{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
		Brand:       req.Brand,
		Images:      req.Images,
	}
	if err := h.cfg.Catalog.Create(c.Request.Context(), p); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *api) updateProduct(c *gin.Context) {
	var req validation.UpdateProductRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	p, err := h.cfg.Catalog.Update(c.Request.Context(), c.Param("id"), catalog.ProductUpdate{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
		Brand:       req.Brand,
		Images:      req.Images,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *api) deleteProduct(c *gin.Context) {
	if err := h.cfg.Catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product removed"})
}

func (h *api) recommendations(c *gin.Context) {
	list, err := h.cfg.Catalog.Recommendations(c.Request.Context(), c.Param("id"), recommendationLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *api) listReviews(c *gin.Context) {
	reviews, err := h.cfg.Reviews.ListReviews(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

func (h *api) addReview(c *gin.Context) {
	var req validation.ReviewRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	id := identity(c)
	p, err := h.cfg.Reviews.AddReview(c.Request.Context(), catalog.ReviewInput{
		ProductID: c.Param("id"),
		UserID:    id.UserID,
		UserName:  id.Name,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":     "Review added",
		"rating":      p.Rating,
		"num_reviews": p.NumReviews,
	})
}

func (h *api) listCategories(c *gin.Context) {
	cats, err := h.cfg.Catalog.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cats)
}

func (h *api) createCategory(c *gin.Context) {
	var req validation.CategoryRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	cat := &catalog.Category{Name: req.Name, Slug: req.Slug}
	if err := h.cfg.Catalog.CreateCategory(c.Request.Context(), cat); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}
