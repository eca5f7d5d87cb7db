package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tillpoint/go-pos-sync/internal/checkout"
	"github.com/tillpoint/go-pos-sync/internal/orders"
	"github.com/tillpoint/go-pos-sync/internal/syncer"
	"github.com/tillpoint/go-pos-sync/internal/validation"
)

// HandlerConfig groups dependencies for the HTTP surface. Everything is
// injected; handlers hold no state of their own.
type HandlerConfig struct {
	Coordinator *checkout.Coordinator
	Scheduler   *syncer.Scheduler
	Store       *orders.Store
}

// RegisterCheckoutRoutes registers the cart/UI boundary: start checkout, mark
// payment processing, complete payment, and the read-only order queries.
func RegisterCheckoutRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()

	r.POST("/checkout", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.StartCheckoutRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		items := make([]checkout.CartItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, checkout.CartItem{
				ProductID:      it.ProductID,
				Name:           it.Name,
				SKU:            it.SKU,
				Quantity:       it.Quantity,
				UnitPriceCents: it.UnitPriceCents,
			})
		}
		cart := checkout.Cart{
			Items:         items,
			TaxRate:       req.TaxRate,
			DiscountCents: req.DiscountCents,
			CustomerEmail: req.CustomerEmail,
			CustomerName:  req.CustomerName,
			CashierID:     req.CashierID,
		}

		order, err := cfg.Coordinator.StartCheckout(ctx, cart, req.Platform)
		if err != nil {
			if errors.Is(err, checkout.ErrEmptyCart) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "empty_cart"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "checkout_failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, order)
	})

	r.POST("/checkout/:id/processing", func(c *gin.Context) {
		err := cfg.Coordinator.MarkPaymentProcessing(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, orders.ErrOrderNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "mark_processing_failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/checkout/:id/complete", func(c *gin.Context) {
		var req validation.CompletePaymentRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		result, err := cfg.Coordinator.CompletePayment(c.Request.Context(), c.Param("id"), req.PaymentMethod)
		if err != nil {
			switch {
			case errors.Is(err, orders.ErrOrderNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
			case errors.Is(err, orders.ErrInvalidState):
				c.JSON(http.StatusConflict, gin.H{"error": "invalid_order_state"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "complete_payment_failed", "detail": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": result.Success, "open_drawer": result.OpenDrawer})
	})

	r.GET("/orders", func(c *gin.Context) {
		ctx := c.Request.Context()
		var list []orders.Order
		var err error
		if status := c.Query("status"); status != "" {
			list, err = cfg.Store.ListByStatus(ctx, status)
		} else {
			list, err = cfg.Store.ListByStatus(ctx)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list_orders_failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": list, "count": len(list)})
	})

	r.GET("/orders/unsynced-count", func(c *gin.Context) {
		count, err := cfg.Store.CountUnsynced(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "count_failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"unsynced": count})
	})
}
