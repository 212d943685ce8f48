// Package middleware provides HTTP middleware functions for request logging and processing.
package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"shufflecast/internal/logger"
)

// RequestLogger returns a Gin middleware for logging HTTP requests. Segment
// fetches are logged at debug level so steady-state playback does not flood
// the log.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)

		event := logger.Log.Info()
		if c.Writer.Status() < 400 && isStreamPath(path) {
			event = logger.Log.Debug()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")

		if len(c.Errors) > 0 {
			logger.Log.Error().
				Strs("errors", c.Errors.Errors()).
				Str("path", path).
				Msg("Request completed with errors")
		}
	}
}

// isStreamPath reports whether a request path is a playlist or segment fetch
func isStreamPath(path string) bool {
	return strings.HasSuffix(path, ".ts") || strings.HasSuffix(path, ".m3u8")
}
