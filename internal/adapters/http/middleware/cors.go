package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coinvault/coinvault/internal/adapters/http/common"
)

// CORS applies a permissive policy suitable for an internal service fronted
// by a gateway. Preflight requests are answered directly.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers",
			"Content-Type, Authorization, "+common.HeaderIdempotencyKey+", "+common.HeaderRequestID)
		c.Header("Access-Control-Expose-Headers",
			common.HeaderRequestID+", "+common.HeaderIdempotencyReplay)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
