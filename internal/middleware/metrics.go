package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopdesk/shopdesk/internal/telemetry"
)

// MetricsMiddleware records http_requests_total and http_request_duration_seconds for every request.
//
// The path label is the matched route template from c.FullPath()
// (e.g. /api/v1/shops/:shopID/approvals/:id), never the raw URL. Unmatched requests use
// "<no-route>". Register after gin.Recovery and RequestIDMiddleware so the final status is captured.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		status := strconv.Itoa(c.Writer.Status())
		telemetry.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
