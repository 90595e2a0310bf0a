// Package handlers exposes the storefront over HTTP with gin.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/auth"
	"github.com/imrishuroy/go-storefront/internal/cart"
	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/idempotency"
	"github.com/imrishuroy/go-storefront/internal/orders"
	"github.com/imrishuroy/go-storefront/internal/payments"
	"github.com/imrishuroy/go-storefront/internal/users"
	"github.com/imrishuroy/go-storefront/internal/validation"
)

// HandlerConfig groups dependencies for the API handlers.
type HandlerConfig struct {
	Auth        auth.Provider
	Users       *users.Service // optional; enables /auth/signup and /auth/login
	Catalog     *catalog.Store
	Reviews     *catalog.Aggregator
	Carts       *cart.Service
	Orders      *orders.Engine
	Payments    *payments.Service
	Idempotency *idempotency.Store // optional; enables Idempotency-Key on POST /payments/pay
}

type api struct {
	cfg HandlerConfig
	v   *validatorv10.Validate
}

// RegisterRoutes registers every route under /api.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	h := &api{cfg: cfg, v: validation.New()}
	authn := auth.RequireAuth(cfg.Auth)
	admin := auth.RequireAdmin()

	g := r.Group("/api")
	g.GET("/health", h.health)

	if cfg.Users != nil {
		g.POST("/auth/signup", h.signup)
		g.POST("/auth/login", h.login)
	}
	g.GET("/auth/me", authn, h.me)

	g.GET("/products", h.searchProducts)
	g.GET("/products/:id", h.getProduct)
	g.GET("/products/:id/reviews", h.listReviews)
	g.GET("/products/:id/recommendations", h.recommendations)
	g.POST("/products/:id/reviews", authn, h.addReview)
	g.POST("/products", authn, admin, h.createProduct)
	g.PUT("/products/:id", authn, admin, h.updateProduct)
	g.DELETE("/products/:id", authn, admin, h.deleteProduct)

	g.GET("/categories", h.listCategories)
	g.POST("/categories", authn, admin, h.createCategory)

	c := g.Group("/cart", authn)
	c.GET("", h.getCart)
	c.POST("/add", h.addToCart)
	c.DELETE("/remove/:productId", h.removeFromCart)
	c.PUT("/items/:productId", h.setCartQuantity)
	c.POST("/merge", h.mergeCart)
	c.DELETE("", h.clearCart)

	o := g.Group("/orders", authn)
	o.POST("", h.createOrder)
	o.POST("/checkout", h.checkout)
	o.GET("/mine", h.listMyOrders)
	o.GET("/:id", h.getOrder)
	o.GET("", admin, h.listOrders)
	o.PUT("/:id/status", admin, h.updateStatus)

	g.POST("/payments/pay", authn, h.pay)
}

func (h *api) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// identity returns the caller set by auth.RequireAuth.
func identity(c *gin.Context) auth.Identity {
	id, _ := auth.FromContext(c)
	return id
}

// respondError maps err to its status and the common error body.
func respondError(c *gin.Context, err error) {
	e := apperr.As(err)
	status := apperr.HTTPStatus(e.Kind)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   e.Code,
		"message": apperr.PublicMessage(err),
	})
}
