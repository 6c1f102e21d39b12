package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orbitcal/orbitcal-api/internal/service"
)

// Metrics observes every request on the shared metrics service. Unmatched
// routes are recorded under their raw path so 404 noise stays visible.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
