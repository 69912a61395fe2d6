package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/campscout/internal/alerts"
	"github.com/jonesrussell/campscout/internal/logger"
)

// AlertHandler serves alert endpoints.
type AlertHandler struct {
	service *alerts.Service
	logger  logger.Logger
}

// NewAlertHandler creates a new alert handler.
func NewAlertHandler(service *alerts.Service, log logger.Logger) *AlertHandler {
	return &AlertHandler{service: service, logger: log}
}

// List returns alerts, unacknowledged only when ?unacknowledged=true.
func (h *AlertHandler) List(c *gin.Context) {
	unackedOnly := c.Query("unacknowledged") == "true"
	limit, offset := pagination(c)

	list, err := h.service.List(c.Request.Context(), unackedOnly, limit, offset)
	if err != nil {
		h.logger.Error("failed to list alerts", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": list,
		"count":  len(list),
	})
}

type acknowledgeBody struct {
	By string `json:"by" binding:"required"`
}

// Acknowledge marks an alert as handled.
func (h *AlertHandler) Acknowledge(c *gin.Context) {
	id := c.Param("id")

	var body acknowledgeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "by is required"})
		return
	}

	if err := h.service.Acknowledge(c.Request.Context(), id, body.By); err != nil {
		abortNotFound(c, "Alert")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "acknowledged"})
}
