// Package api exposes the HTTP surface: scrape triggers, source and
// request management, alerts, and the dedup operations.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/campscout/internal/logger"
)

const corsMaxAgeHours = 12

// Handlers groups the route handlers mounted by NewRouter.
type Handlers struct {
	Scrape   *ScrapeHandler
	Sources  *SourceHandler
	Jobs     *JobHandler
	Requests *RequestHandler
	Alerts   *AlertHandler
	Dedup    *DedupHandler
	Health   *HealthHandler
}

// NewRouter builds the gin engine with all routes mounted.
func NewRouter(h Handlers, log logger.Logger) *gin.Engine {
	router := gin.New()

	// CORS middleware - must be first
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"http://localhost:3000"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Content-Length", "Accept-Encoding",
			"X-CSRF-Token", "Authorization", "accept", "origin",
			"Cache-Control", "X-Requested-With",
		},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           corsMaxAgeHours * time.Hour,
	}))

	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	router.GET("/health", h.Health.Check)

	v1 := router.Group("/api/v1")

	scrape := v1.Group("/scrape")
	scrape.POST("/run-due", h.Scrape.RunDue)

	sources := v1.Group("/sources")
	sources.GET("", h.Sources.List)
	sources.GET("/:id", h.Sources.GetByID)
	sources.POST("/:id/run", h.Scrape.RunSource)
	sources.POST("/:id/deactivate", h.Sources.Deactivate)

	jobs := v1.Group("/jobs")
	jobs.GET("", h.Jobs.List)
	jobs.GET("/:id", h.Jobs.GetByID)

	requests := v1.Group("/requests")
	requests.GET("", h.Requests.List)
	requests.GET("/:id", h.Requests.GetByID)
	requests.POST("/:id/feedback", h.Requests.SubmitFeedback)
	requests.POST("/:id/reset", h.Requests.Reset)

	alertRoutes := v1.Group("/alerts")
	alertRoutes.GET("", h.Alerts.List)
	alertRoutes.POST("/:id/acknowledge", h.Alerts.Acknowledge)

	dedupRoutes := v1.Group("/dedup")
	dedupRoutes.POST("/scan", h.Dedup.Scan)

	v1.POST("/camps/merge", h.Dedup.Merge)

	v1.GET("/metrics", h.Health.Metrics)

	return router
}

func ginLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		log.Info("HTTP request",
			logger.String("method", method),
			logger.String("path", path),
			logger.Int("status_code", statusCode),
			logger.String("client_ip", c.ClientIP()),
			logger.Duration("duration", duration),
		)
	}
}

func abortNotFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}
