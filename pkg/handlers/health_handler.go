package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/docfusion/docfusion/pkg/cache"
	"github.com/docfusion/docfusion/pkg/infrastructure/pool"
)

// HealthChecker reports store reachability and pool usage. Implemented by
// the connection pool.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	Stats() pool.Stats
}

// HealthHandler serves liveness and operational statistics.
type HealthHandler struct {
	checker HealthChecker
	cache   *cache.QueryCache
	started time.Time
	logger  zerolog.Logger
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(checker HealthChecker, queryCache *cache.QueryCache, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		cache:   queryCache,
		started: time.Now(),
		logger:  logger.With().Str("component", "health_handler").Logger(),
	}
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	if err := h.checker.HealthCheck(c.Request.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "down",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "up",
	})
}

// Stats handles GET /stats.
func (h *HealthHandler) Stats(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"cache":          h.cache.Stats(),
		"pool":           h.checker.Stats(),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}
