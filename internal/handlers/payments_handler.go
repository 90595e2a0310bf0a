package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/idempotency"
	"github.com/imrishuroy/go-storefront/internal/validation"
)

func (h *api) pay(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.PayRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	userID := identity(c).UserID

	idempKey := c.GetHeader("Idempotency-Key")
	if idempKey == "" || h.cfg.Idempotency == nil {
		res, err := h.cfg.Payments.Pay(ctx, userID, req.OrderID, req.Method)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
		return
	}

	rec := h.cfg.Idempotency.NewRecord(idempotency.ScopePay, userID, idempKey, req.OrderID)
	prior, err := h.cfg.Idempotency.Begin(ctx, rec)
	if err != nil {
		respondError(c, err)
		return
	}
	if prior != nil {
		replayPayment(c, prior, req.OrderID)
		return
	}

	res, err := h.cfg.Payments.Pay(ctx, userID, req.OrderID, req.Method)
	if err != nil {
		// let client retry
		if merr := h.cfg.Idempotency.MarkFailed(ctx, rec.IdempotencyKey, err.Error()); merr != nil {
			log.WithError(merr).Warn("failed to release idempotency key")
		}
		respondError(c, err)
		return
	}

	responseBody, err := json.Marshal(res)
	if err == nil {
		err = h.cfg.Idempotency.MarkDone(ctx, rec.IdempotencyKey, string(responseBody), http.StatusOK)
	}
	if err != nil {
		log.WithError(err).WithField("orderId", req.OrderID).Warn("failed to store idempotent response")
	}
	c.JSON(http.StatusOK, res)
}

// replayPayment answers a repeated Idempotency-Key from the stored record.
func replayPayment(c *gin.Context, rec *idempotency.Record, orderID string) {
	if rec.ResourceID != orderID {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error":   "idempotency_key_reused",
			"message": fmt.Sprintf("key was used for order %s", rec.ResourceID),
		})
		return
	}
	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" {
			c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_id": rec.ResourceID})
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress", "order_id": rec.ResourceID})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "unknown_idempotency_status"})
	}
}
