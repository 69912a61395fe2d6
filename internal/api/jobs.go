package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/campscout/internal/database"
	"github.com/jonesrussell/campscout/internal/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// JobHandler serves job read endpoints.
type JobHandler struct {
	repo   database.JobRepositoryInterface
	logger logger.Logger
}

// NewJobHandler creates a new job handler.
func NewJobHandler(repo database.JobRepositoryInterface, log logger.Logger) *JobHandler {
	return &JobHandler{repo: repo, logger: log}
}

// List returns jobs, optionally filtered by ?status=.
func (h *JobHandler) List(c *gin.Context) {
	status := c.Query("status")
	limit, offset := pagination(c)

	jobs, err := h.repo.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error("failed to list jobs", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetByID returns one job.
func (h *JobHandler) GetByID(c *gin.Context) {
	id := c.Param("id")

	job, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		abortNotFound(c, "Job")
		return
	}

	c.JSON(http.StatusOK, job)
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if limit < 1 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
