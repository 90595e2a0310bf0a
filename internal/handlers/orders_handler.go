package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront/internal/auth"
	"github.com/imrishuroy/go-storefront/internal/orders"
	"github.com/imrishuroy/go-storefront/internal/validation"
)

func customerOf(id auth.Identity) orders.Customer {
	return orders.Customer{Name: id.Name, Email: id.Email, Phone: id.Phone}
}

func shippingAddress(a *validation.ShippingAddress) orders.ShippingAddress {
	if a == nil {
		return orders.ShippingAddress{}
	}
	return orders.ShippingAddress{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		Country:    a.Country,
		PostalCode: a.PostalCode,
	}
}

func (h *api) createOrder(c *gin.Context) {
	// Bind + validate request
	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		// BindAndValidate already wrote a 400
		return
	}

	items := make([]orders.RequestedItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, orders.RequestedItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	id := identity(c)
	order, err := h.cfg.Orders.Create(c.Request.Context(), id.UserID, customerOf(id), orders.CreateInput{
		Items:           items,
		Discount:        req.Discount,
		Tax:             req.Tax,
		ShippingAddress: shippingAddress(req.ShippingAddress),
		IdempotencyKey:  c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Location", fmt.Sprintf("/api/orders/%s", order.OrderID))
	c.JSON(http.StatusCreated, order)
}

func (h *api) checkout(c *gin.Context) {
	var req validation.CheckoutRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}

	id := identity(c)
	order, err := h.cfg.Orders.Checkout(c.Request.Context(), id.UserID, customerOf(id), orders.CheckoutInput{
		Discount:        req.Discount,
		Tax:             req.Tax,
		ShippingAddress: shippingAddress(req.ShippingAddress),
		IdempotencyKey:  c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Location", fmt.Sprintf("/api/orders/%s", order.OrderID))
	c.JSON(http.StatusCreated, order)
}

func (h *api) listMyOrders(c *gin.Context) {
	list, err := h.cfg.Orders.ListMine(c.Request.Context(), identity(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *api) getOrder(c *gin.Context) {
	id := identity(c)
	order, err := h.cfg.Orders.Get(c.Request.Context(), c.Param("id"), orders.Requester{UserID: id.UserID, Admin: id.IsAdmin()})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *api) listOrders(c *gin.Context) {
	var q validation.StatusQuery
	if err := validation.BindQueryAndValidate(c, &q, h.v); err != nil {
		return
	}
	list, err := h.cfg.Orders.ListAll(c.Request.Context(), q.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *api) updateStatus(c *gin.Context) {
	var req validation.UpdateStatusRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	order, summary, err := h.cfg.Orders.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":         order,
		"notifications": summary,
	})
}
