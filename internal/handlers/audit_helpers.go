package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-client/internal/observability"
)

const requestIDContextKey = "request_id"

// RequestIDMiddleware stamps every local API request with a request id.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header(observability.RequestIDHeader, requestIDFromContext(c))
		c.Next()
	}
}

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader(observability.RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}
