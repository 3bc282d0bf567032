package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/saloncore/booking-core/pkg/logger"
)

// LoggingConfig holds logging middleware configuration.
type LoggingConfig struct {
	SkipPaths []string
}

// DefaultLoggingConfig returns default logging configuration.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths: []string{"/health", "/healthz", "/metrics"},
	}
}

// RequestLogging returns a logging middleware that tags each request with a
// correlation id and logs method, path, status, and duration.
func RequestLogging(log *logger.Logger, config LoggingConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, skipPath := range config.SkipPaths {
			if c.Request.URL.Path == skipPath {
				c.Next()
				return
			}
		}

		correlationID := c.GetHeader("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		c.Set("correlation_id", correlationID)
		c.Header("X-Request-ID", correlationID)

		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		requestLogger := log.With(
			"correlation_id", correlationID,
			"method", method,
			"path", path,
			"client_ip", c.ClientIP(),
		)
		requestLogger.Info("request started")

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		responseLogger := requestLogger.With(
			"status_code", statusCode,
			"duration_ms", duration.Milliseconds(),
		)

		switch {
		case statusCode >= 500:
			responseLogger.Error("request completed with server error")
		case statusCode >= 400:
			responseLogger.Warn("request completed with client error")
		default:
			responseLogger.Info("request completed")
		}
	}
}

// DefaultRequestLogging returns a logging middleware with default configuration.
func DefaultRequestLogging(log *logger.Logger) gin.HandlerFunc {
	return RequestLogging(log, DefaultLoggingConfig())
}

// ErrorLogging logs any errors gin handlers attached to the context via
// c.Error, after the handler chain has run.
func ErrorLogging(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		errorLogger := log.With(
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"client_ip", c.ClientIP(),
		)
		if correlationID, exists := c.Get("correlation_id"); exists {
			errorLogger = errorLogger.With("correlation_id", correlationID)
		}
		for _, err := range c.Errors {
			errorLogger.Error("request error", "error", err.Error())
		}
	}
}
