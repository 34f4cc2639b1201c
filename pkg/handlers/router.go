package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouterConfig wires handlers and middleware into the HTTP router.
type RouterConfig struct {
	Query     *QueryHandler
	Documents *DocumentHandler
	Health    *HealthHandler
	// Metrics, when set, is mounted at GET /metrics.
	Metrics http.Handler
	// Middleware applies to every route.
	Middleware []gin.HandlerFunc
	// Auth, when set, guards the API routes. /health and /metrics stay
	// public so probes and scrapers work without credentials.
	Auth gin.HandlerFunc
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cfg.Middleware...)

	r.GET("/health", cfg.Health.Health)
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := r.Group("/")
	if cfg.Auth != nil {
		api.Use(cfg.Auth)
	}

	api.POST("/query", cfg.Query.Execute)
	api.GET("/stats", cfg.Health.Stats)

	api.GET("/documents", cfg.Documents.List)
	api.POST("/documents", cfg.Documents.Create)
	api.POST("/documents/bulk", cfg.Documents.BulkCreate)
	api.GET("/documents/:id", cfg.Documents.Get)
	api.PUT("/documents/:id", cfg.Documents.Update)

	return r
}
