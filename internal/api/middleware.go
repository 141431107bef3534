package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/awssidogiri-web/AWS-Sidogiri/internal/logger"
)

// RequestLoggingMiddleware logs one line per handled request.
func RequestLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.InfoKV(c.Request.Context(), "HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP())
	}
}
