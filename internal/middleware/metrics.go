package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scahts-api/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics records one latency observation per request, labelled by route
// template so ids in paths do not explode label cardinality. Health check paths in
// skip are not observed.
func Metrics(metrics *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}
		if _, ok := skipped[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
