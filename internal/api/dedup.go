package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/campscout/internal/dedup"
	"github.com/jonesrussell/campscout/internal/logger"
)

// DedupHandler serves duplicate-detection endpoints.
type DedupHandler struct {
	scanner *dedup.Scanner
	merger  *dedup.Merger
	logger  logger.Logger
}

// NewDedupHandler creates a new dedup handler.
func NewDedupHandler(scanner *dedup.Scanner, merger *dedup.Merger, log logger.Logger) *DedupHandler {
	return &DedupHandler{scanner: scanner, merger: merger, logger: log}
}

// Scan reports cross-source duplicate session groups without modifying anything.
func (h *DedupHandler) Scan(c *gin.Context) {
	groups, err := h.scanner.Scan(c.Request.Context())
	if err != nil {
		h.logger.Error("duplicate scan failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Scan failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"groups": groups,
		"count":  len(groups),
	})
}

// Merge collapses duplicate camps within each organization.
func (h *DedupHandler) Merge(c *gin.Context) {
	results, err := h.merger.MergeDuplicates(c.Request.Context())
	if err != nil {
		h.logger.Error("camp merge failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Merge failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"merged": results,
		"count":  len(results),
	})
}
