// Package httpapi exposes the indicator/enrichment/feed surface over
// HTTP using gin-gonic/gin.
//
// Grounded on AditS-H-VIGILUM/backend/internal/api/routes.go for route
// grouping and middleware shape.
package httpapi

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// LoggingMiddleware logs each request's method/path/status.
func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger.Info("api request received",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("remote_addr", c.RemoteIP()),
		)

		c.Next()

		logger.Info("api response sent",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status_code", c.Writer.Status()),
		)
	}
}

// ErrorHandlingMiddleware recovers from panics in handlers and
// returns a 500 instead of crashing the process.
func ErrorHandlingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("api panic recovered",
					slog.String("method", c.Request.Method),
					slog.String("path", c.Request.URL.Path),
					slog.Any("panic", r),
				)
				c.JSON(500, gin.H{"error": "internal_server_error", "message": "an unexpected error occurred"})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware allows cross-origin access for the dashboard/API clients.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
