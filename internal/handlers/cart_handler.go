package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront/internal/cart"
	"github.com/imrishuroy/go-storefront/internal/validation"
)

// respondCart writes the priced view of c.
func (h *api) respondCart(ctx *gin.Context, c *cart.Cart, err error) {
	if err != nil {
		respondError(ctx, err)
		return
	}
	view, err := h.cfg.Carts.Price(ctx.Request.Context(), c)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, view)
}

func (h *api) getCart(c *gin.Context) {
	ct, err := h.cfg.Carts.Get(c.Request.Context(), identity(c).UserID)
	h.respondCart(c, ct, err)
}

func (h *api) addToCart(c *gin.Context) {
	var req validation.CartAddRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	ct, err := h.cfg.Carts.Add(c.Request.Context(), identity(c).UserID, req.ProductID, req.Quantity)
	h.respondCart(c, ct, err)
}

func (h *api) removeFromCart(c *gin.Context) {
	ct, err := h.cfg.Carts.Remove(c.Request.Context(), identity(c).UserID, c.Param("productId"))
	h.respondCart(c, ct, err)
}

func (h *api) setCartQuantity(c *gin.Context) {
	var req validation.CartSetRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	ct, err := h.cfg.Carts.SetQuantity(c.Request.Context(), identity(c).UserID, c.Param("productId"), req.Quantity)
	h.respondCart(c, ct, err)
}

func (h *api) mergeCart(c *gin.Context) {
	var req validation.CartMergeRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	items := make([]cart.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, cart.Item{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	ct, err := h.cfg.Carts.Merge(c.Request.Context(), identity(c).UserID, items)
	h.respondCart(c, ct, err)
}

func (h *api) clearCart(c *gin.Context) {
	if err := h.cfg.Carts.Clear(c.Request.Context(), identity(c).UserID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
