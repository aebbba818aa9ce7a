package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggerMiddleware stores a request-scoped logger on the context and logs
// one line per request once the chain has run.
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		reqLogger := logger.With("request_id", c.GetString("request_id"))
		c.Set("logger", reqLogger)

		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if p, ok := GetPrincipal(c); ok && p.ID != "" {
			attrs = append(attrs, "principal", p.ID)
		}
		reqLogger.Debug("request completed", attrs...)
	}
}

// Logger returns the request-scoped logger, falling back to slog.Default.
func Logger(c *gin.Context) *slog.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
