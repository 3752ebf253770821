package middleware

import (
	"time"

	"catalog/internal/logger"
	"catalog/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Logger writes one structured line per request and records the request in
// the HTTP metrics.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordRequest(c.Request.Method, endpoint, c.Writer.Status(), latency)

		entry := log.WithFields(logger.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   latency.String(),
			"client_ip": c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry.Warn("%s %s: %s", c.Request.Method, c.Request.URL.Path, c.Errors.String())
			return
		}
		entry.Debug("%s %s", c.Request.Method, c.Request.URL.Path)
	}
}
