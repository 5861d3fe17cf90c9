// Package middleware contains the HTTP middleware chain: recovery, request
// id, logging, metrics, the idempotency gate and optional JWT auth.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coinvault/coinvault/internal/adapters/http/common"
	"github.com/coinvault/coinvault/internal/pkg/logger"
)

// RequestID assigns each request an id, honoring a client-provided
// X-Request-ID, and threads it into the request context for log correlation.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(common.HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(common.RequestIDContextKey, requestID)
		c.Header(common.HeaderRequestID, requestID)

		ctx := logger.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
