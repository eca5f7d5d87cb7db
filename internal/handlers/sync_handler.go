package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tillpoint/go-pos-sync/internal/orders"
	"github.com/tillpoint/go-pos-sync/internal/validation"
)

// RegisterSyncRoutes registers the operator-facing sync queue surface and the
// app lifecycle hooks that pause/resume the background scheduler.
func RegisterSyncRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()

	r.GET("/sync/queue", func(c *gin.Context) {
		snap, err := cfg.Scheduler.Snapshot(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot_failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	r.POST("/sync/orders/:id/retry", func(c *gin.Context) {
		synced, err := cfg.Scheduler.RetryOrder(c.Request.Context(), c.Param("id"))
		if err != nil {
			switch {
			case errors.Is(err, orders.ErrOrderNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
			case errors.Is(err, orders.ErrInvalidState):
				c.JSON(http.StatusConflict, gin.H{"error": "invalid_order_state"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "retry_failed", "detail": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"synced": synced})
	})

	r.POST("/sync/retry-all", func(c *gin.Context) {
		res, err := cfg.Scheduler.RetryAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "retry_all_failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	})

	r.POST("/sync/orders/:id/discard", func(c *gin.Context) {
		var req validation.DiscardRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		err := cfg.Scheduler.DiscardOrder(c.Request.Context(), c.Param("id"), req.Reason)
		if err != nil {
			switch {
			case errors.Is(err, orders.ErrOrderNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
			case errors.Is(err, orders.ErrInvalidState):
				c.JSON(http.StatusConflict, gin.H{"error": "invalid_order_state"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "discard_failed", "detail": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "discarded"})
	})

	r.POST("/lifecycle/background", func(c *gin.Context) {
		cfg.Scheduler.Pause()
		c.JSON(http.StatusOK, gin.H{"status": "paused"})
	})

	r.POST("/lifecycle/foreground", func(c *gin.Context) {
		cfg.Scheduler.Resume()
		c.JSON(http.StatusOK, gin.H{"status": "resumed"})
	})
}
