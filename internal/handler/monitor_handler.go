package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Stevy64/Kongossa/internal/hub"
)

// MonitorHandler handles monitoring API endpoints
type MonitorHandler interface {
	GetHubStats(c *gin.Context)
}

type monitorHandler struct {
	registry  hub.Registry
	startedAt time.Time
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(registry hub.Registry) MonitorHandler {
	return &monitorHandler{
		registry:  registry,
		startedAt: time.Now(),
	}
}

// GetHubStats returns current registry statistics
func (h *monitorHandler) GetHubStats(c *gin.Context) {
	stats := h.registry.Stats()

	c.JSON(http.StatusOK, gin.H{
		"HttpStatusCode": http.StatusOK,
		"ResponseBody": gin.H{
			"rooms":         stats.Rooms,
			"clients":       stats.Clients,
			"uptimeSeconds": int64(time.Since(h.startedAt).Seconds()),
		},
		"IsSuccess": true,
		"Message":   "Hub statistics retrieved successfully",
	})
}
