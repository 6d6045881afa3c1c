package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/weddingdesk/internal/monitoring"
)

// HealthHandler reports liveness and readiness probes.
type HealthHandler struct {
	manager *monitoring.HealthManager
}

// NewHealthHandler wraps a health manager.
func NewHealthHandler(manager *monitoring.HealthManager) *HealthHandler {
	return &HealthHandler{manager: manager}
}

// Summary returns the aggregate readiness status without per-check detail.
func (h *HealthHandler) Summary(c *gin.Context) {
	report := h.manager.EvaluateReadiness(requestContext(c))
	c.JSON(reportStatus(report), gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checked_at": time.Now().UTC(),
	})
}

// Live evaluates liveness checks.
func (h *HealthHandler) Live(c *gin.Context) {
	writeHealthReport(c, h.manager.EvaluateLiveness(requestContext(c)))
}

// Ready evaluates readiness checks.
func (h *HealthHandler) Ready(c *gin.Context) {
	writeHealthReport(c, h.manager.EvaluateReadiness(requestContext(c)))
}

func writeHealthReport(c *gin.Context, report monitoring.HealthReport) {
	c.JSON(reportStatus(report), gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checks":     report.Checks,
		"checked_at": time.Now().UTC(),
	})
}

func reportStatus(report monitoring.HealthReport) int {
	if !report.Success {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
