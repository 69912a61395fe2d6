package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/campscout/internal/database"
	"github.com/jonesrussell/campscout/internal/logger"
)

// PipelineActions is the slice of the development pipeline the API drives.
type PipelineActions interface {
	SubmitFeedback(ctx context.Context, requestID, author, text string) error
	ForceReset(ctx context.Context, requestID string, clearCode bool) error
}

// RequestHandler serves extraction-development request endpoints.
type RequestHandler struct {
	repo     database.RequestRepositoryInterface
	pipeline PipelineActions
	logger   logger.Logger
}

// NewRequestHandler creates a new request handler.
func NewRequestHandler(
	repo database.RequestRepositoryInterface,
	svc PipelineActions,
	log logger.Logger,
) *RequestHandler {
	return &RequestHandler{repo: repo, pipeline: svc, logger: log}
}

// List returns development requests, optionally filtered by ?status= and ?market=.
func (h *RequestHandler) List(c *gin.Context) {
	status := c.Query("status")
	market := c.Query("market")
	limit, offset := pagination(c)

	requests, err := h.repo.List(c.Request.Context(), status, market, limit, offset)
	if err != nil {
		h.logger.Error("failed to list requests", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list requests"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requests": requests,
		"count":    len(requests),
	})
}

// GetByID returns one development request.
func (h *RequestHandler) GetByID(c *gin.Context) {
	id := c.Param("id")

	req, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		abortNotFound(c, "Request")
		return
	}

	c.JSON(http.StatusOK, req)
}

type feedbackBody struct {
	Author string `json:"author" binding:"required"`
	Text   string `json:"text" binding:"required"`
}

// SubmitFeedback attaches human feedback to a request and requeues it.
func (h *RequestHandler) SubmitFeedback(c *gin.Context) {
	id := c.Param("id")

	var body feedbackBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "author and text are required"})
		return
	}

	if err := h.pipeline.SubmitFeedback(c.Request.Context(), id, body.Author, body.Text); err != nil {
		h.logger.Error("failed to submit feedback",
			logger.String("request_id", id),
			logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit feedback"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "feedback accepted"})
}

type resetBody struct {
	ClearCode bool `json:"clear_code"`
}

// Reset returns a request to pending with a fresh retry budget.
func (h *RequestHandler) Reset(c *gin.Context) {
	id := c.Param("id")

	var body resetBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	if err := h.pipeline.ForceReset(c.Request.Context(), id, body.ClearCode); err != nil {
		h.logger.Error("failed to reset request",
			logger.String("request_id", id),
			logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset request"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
