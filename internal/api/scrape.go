package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/campscout/internal/domain"
	"github.com/jonesrussell/campscout/internal/logger"
	"github.com/jonesrussell/campscout/internal/orchestrator"
)

// ScrapeService is the slice of the orchestrator the API drives.
type ScrapeService interface {
	RunDueSources(ctx context.Context) (int, error)
	CreateJob(ctx context.Context, sourceID, triggeredBy string) (*domain.Job, error)
}

// ScrapeHandler exposes the orchestrator's inbound triggers.
type ScrapeHandler struct {
	orch   ScrapeService
	logger logger.Logger
}

// NewScrapeHandler creates a new scrape trigger handler.
func NewScrapeHandler(orch ScrapeService, log logger.Logger) *ScrapeHandler {
	return &ScrapeHandler{orch: orch, logger: log}
}

// RunDue triggers a run-due pass: one job per due source.
func (h *ScrapeHandler) RunDue(c *gin.Context) {
	created, err := h.orch.RunDueSources(c.Request.Context())
	if err != nil {
		h.logger.Error("run-due trigger failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to run due sources"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"jobs_created": created})
}

// RunSource triggers a manual scrape of one source.
func (h *ScrapeHandler) RunSource(c *gin.Context) {
	id := c.Param("id")

	job, err := h.orch.CreateJob(c.Request.Context(), id, domain.TriggerManual)
	switch {
	case errors.Is(err, orchestrator.ErrSourceInactive) || errors.Is(err, orchestrator.ErrSourceNoLogic):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("manual run failed",
			logger.String("source_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job"})
		return
	case job == nil:
		// A job is already in flight; the manual trigger is satisfied.
		c.JSON(http.StatusOK, gin.H{"status": "already running"})
		return
	}

	c.JSON(http.StatusAccepted, job)
}
