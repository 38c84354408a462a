package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"notification-engine/internal/config"
)

// NewRouter builds the management API router.
func NewRouter(cfg config.Config, h *Handler) *gin.Engine {
	r := gin.Default()

	g := r.Group(cfg.API.BasePath, TenantRequired())
	{
		g.POST("/rules", h.CreateRule)
		g.GET("/rules", h.ListRules)
		g.GET("/rules/:id", h.GetRule)
		g.PUT("/rules/:id", h.UpdateRule)
		g.PATCH("/rules/:id/toggle", h.ToggleRule)
		g.DELETE("/rules/:id", h.DeleteRule)
		g.POST("/rules/:id/test", h.TestRule)

		g.GET("/notifications", h.ListNotifications)
		g.POST("/notifications/:id/read", h.MarkRead)
		g.POST("/notifications/read-all", h.MarkAllRead)
		g.POST("/notifications/:id/retry", h.RetryNotification)

		g.GET("/stats", h.GetStats)
		g.POST("/chat/register", h.RegisterChat)
		g.GET("/ws", h.WebSocket)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
