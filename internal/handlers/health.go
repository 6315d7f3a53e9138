package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/filebridge/internal/monitoring"
)

// HealthHandler serves liveness and readiness reports.
type HealthHandler struct {
	manager *monitoring.HealthManager
}

// NewHealthHandler constructs a health handler around the probe manager.
func NewHealthHandler(manager *monitoring.HealthManager) *HealthHandler {
	return &HealthHandler{manager: manager}
}

// Live reports process liveness.
func (h *HealthHandler) Live(c *gin.Context) {
	if h == nil || h.manager == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "status": monitoring.StatusUp})
		return
	}
	writeHealthReport(c, h.manager.EvaluateLiveness(requestContext(c)))
}

// Ready reports dependency readiness.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h == nil || h.manager == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "status": monitoring.StatusUp})
		return
	}
	writeHealthReport(c, h.manager.EvaluateReadiness(requestContext(c)))
}

func writeHealthReport(c *gin.Context, report monitoring.HealthReport) {
	status := http.StatusOK
	if !report.Success {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checks":     report.Checks,
		"checked_at": time.Now().UTC(),
	})
}
