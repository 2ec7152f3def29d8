package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/be-confident-group/ccapp-tracking/internal/handler"
	"github.com/be-confident-group/ccapp-tracking/internal/middleware"
)

// Handlers bundles everything the router mounts
type Handlers struct {
	Tracking *handler.TrackingHandler
	Trips    *handler.TripHandler
	Sync     *handler.SyncHandler
	Ingest   *handler.IngestHandler
}

// SetupRouter builds the local control API
func SetupRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.NewRateLimiter(300, time.Minute).Middleware())

	// CORS for the embedding app's local webviews
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Tracking engine is running",
		})
	})

	api := r.Group("/api/v1")
	{
		tracking := api.Group("/tracking")
		{
			tracking.POST("/start", h.Tracking.Start)
			tracking.POST("/stop", h.Tracking.Stop)
			tracking.GET("/status", h.Tracking.Status)
			tracking.POST("/manual", h.Tracking.StartManual)
			tracking.POST("/lifecycle", h.Tracking.Lifecycle)
			tracking.POST("/connectivity", h.Tracking.Connectivity)
		}

		trips := api.Group("/trips")
		{
			trips.GET("", h.Trips.List)
			trips.GET("/:id", h.Trips.Get)
			trips.GET("/:id/samples", h.Trips.Samples)
			trips.DELETE("/:id", h.Trips.Delete)
		}

		sync := api.Group("/sync")
		{
			sync.POST("", h.Sync.SyncNow)
			sync.GET("/pending", h.Sync.Pending)
		}

		api.POST("/samples", h.Ingest.Ingest)
	}

	return r
}
