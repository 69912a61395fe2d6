package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/campscout/internal/metrics"
	"github.com/jonesrussell/campscout/internal/orchestrator"
)

// HealthHandler serves liveness and metrics endpoints.
type HealthHandler struct {
	orch    *orchestrator.Orchestrator
	metrics *metrics.Metrics
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(orch *orchestrator.Orchestrator, m *metrics.Metrics) *HealthHandler {
	return &HealthHandler{orch: orch, metrics: m}
}

// Check reports service health including worker pool state.
func (h *HealthHandler) Check(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.orch != nil {
		resp["workers"] = h.orch.Pool().Health()
	}
	c.JSON(http.StatusOK, resp)
}

// Metrics returns a snapshot of scrape counters.
func (h *HealthHandler) Metrics(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}
