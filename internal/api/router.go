package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resumebuilder/internal/api/middleware"
	"resumebuilder/internal/metrics"
)

// NewRouter builds the gin engine with the shared middleware chain, the
// health and metrics endpoints and every /api route.
func NewRouter(deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.Recovery(),
		middleware.CorrelationIDMiddleware(),
		middleware.SlogLoggerMiddleware(deps.logger()),
		metrics.GinMiddleware("/health", "/metrics"),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	RegisterRoutes(router.Group("/api"), deps)
	return router
}
