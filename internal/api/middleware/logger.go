package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/timmy/memehub/internal/logger"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

// RequestLogger returns a Gin middleware that injects a request-scoped
// logger and logs each completed request.
// Parameters:
//   - log: base logger to enrich with request fields.
//
// Returns:
//   - gin.HandlerFunc: middleware handler.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.GetDefault()
	}
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}

		ctx := log.WithContext(c.Request.Context())
		ctx = logger.WithFields(ctx, logger.Fields{
			logger.FieldRequestID: requestID,
			logger.FieldComponent: "api",
		})
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderRequestID, requestID)

		c.Next()

		entry := logger.With(logger.Fields{
			logger.FieldStatus:     c.Writer.Status(),
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
			logger.FieldSize:       c.Writer.Size(),
		})
		// GET routes carry the owner in the query string
		if owner := c.Query("userEmail"); owner != "" {
			entry = entry.With(logger.Fields{logger.FieldOwner: owner})
		}
		msg := "Request completed: method=%s, path=%s"
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error(ctx, msg, c.Request.Method, c.Request.URL.Path)
		case status >= 400:
			entry.Warn(ctx, msg, c.Request.Method, c.Request.URL.Path)
		default:
			entry.Info(ctx, msg, c.Request.Method, c.Request.URL.Path)
		}
	}
}

// RequestID returns the id assigned by RequestLogger.
func RequestID(c *gin.Context) string {
	return logger.GetRequestID(c.Request.Context())
}
