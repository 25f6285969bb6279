package router

import (
	"github.com/gin-gonic/gin"

	"claimlens/internal/handler"
	"claimlens/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	allowedOrigins []string,
	extractionH *handler.ExtractionHandler,
	documentH *handler.DocumentHandler,
	realtimeH *handler.RealtimeHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(allowedOrigins))

	// Health check
	r.GET("/healthz", healthH.Liveness)

	v1 := r.Group("/api/v1")

	// Claim tracking and merged extraction
	claims := v1.Group("/claims")
	claims.POST("/:id/documents/track", extractionH.Track)
	claims.GET("/:id/documents/status", extractionH.Statuses)
	claims.GET("/:id/extraction", extractionH.Record)
	claims.POST("/:id/conflicts/resolve", extractionH.ResolveConflict)
	claims.DELETE("/:id/track", extractionH.StopTracking)

	// One-shot document fetches
	documents := v1.Group("/documents")
	documents.GET("/:id/status", documentH.Status)
	documents.GET("/:id/extracted-data", documentH.ExtractedData)

	// Push channel health
	rt := v1.Group("/realtime")
	rt.GET("/state", realtimeH.State)
	rt.GET("/metrics", realtimeH.Metrics)

	return r
}
