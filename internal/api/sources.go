package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/campscout/internal/alerts"
	"github.com/jonesrussell/campscout/internal/database"
	"github.com/jonesrussell/campscout/internal/domain"
	"github.com/jonesrussell/campscout/internal/logger"
)

// SourceHandler serves source read and lifecycle endpoints.
type SourceHandler struct {
	repo   database.SourceRepositoryInterface
	alerts *alerts.Service
	logger logger.Logger
}

// NewSourceHandler creates a new source handler.
func NewSourceHandler(repo database.SourceRepositoryInterface, alertSvc *alerts.Service, log logger.Logger) *SourceHandler {
	return &SourceHandler{repo: repo, alerts: alertSvc, logger: log}
}

// List returns sources, all or active only (?active=true).
func (h *SourceHandler) List(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.Query("active"))

	sources, err := h.repo.List(c.Request.Context(), activeOnly)
	if err != nil {
		h.logger.Error("failed to list sources", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sources"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"count":   len(sources),
	})
}

// GetByID returns one source with its health counters.
func (h *SourceHandler) GetByID(c *gin.Context) {
	id := c.Param("id")

	source, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Debug("source not found",
			logger.String("source_id", id),
			logger.Error(err),
		)
		abortNotFound(c, "Source")
		return
	}

	c.JSON(http.StatusOK, source)
}

// Deactivate turns a source off and raises a scraper_disabled alert so
// the dashboard shows who turned it off and why.
func (h *SourceHandler) Deactivate(c *gin.Context) {
	id := c.Param("id")

	var body struct {
		Reason string `json:"reason"`
		By     string `json:"by"`
	}
	_ = c.ShouldBindJSON(&body)

	if err := h.repo.SetActive(c.Request.Context(), id, false); err != nil {
		h.logger.Error("failed to deactivate source",
			logger.String("source_id", id),
			logger.Error(err),
		)
		abortNotFound(c, "Source")
		return
	}

	msg := "source deactivated"
	if body.By != "" {
		msg = fmt.Sprintf("source deactivated by %s", body.By)
	}
	if body.Reason != "" {
		msg += ": " + body.Reason
	}
	h.alerts.Raise(c.Request.Context(), id, domain.AlertScraperDisabled, domain.SeverityInfo, msg)

	h.logger.Info("source deactivated", logger.String("source_id", id))
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}
