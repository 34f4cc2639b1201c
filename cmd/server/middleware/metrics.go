package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docfusion/docfusion/pkg/infrastructure/metrics"
)

// Metrics records request counts and latencies per route and status.
func Metrics(collector metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		collector.IncCounter("http_requests_total",
			"method", c.Request.Method, "path", path, "status", status)
		collector.ObserveHistogram("http_request_duration_seconds",
			time.Since(start).Seconds(),
			"method", c.Request.Method, "path", path)
	}
}
