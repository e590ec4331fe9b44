package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Key types for context values
type contextKey string

const (
	// RequestIDKey is the key for request ID values in contexts
	RequestIDKey contextKey = "requestID"
	// UserIDKey is the key for user ID values in contexts
	UserIDKey contextKey = "userID"
)

// RequestID adds a unique request ID to each request and sets it in
// both the context and response headers
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Keep an upstream ID if one was already assigned
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(c.Request.Context(), RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)
		c.Set("requestID", requestID)

		c.Next()
	}
}
