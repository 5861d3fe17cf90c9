package middleware

import (
	"bytes"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coinvault/coinvault/internal/adapters/http/common"
	"github.com/coinvault/coinvault/internal/application/fingerprint"
	apperrors "github.com/coinvault/coinvault/internal/domain/errors"
	"github.com/coinvault/coinvault/internal/pkg/logger"
)

// IdempotencyGate guards mutation routes: it demands an Idempotency-Key
// header, fingerprints the request, and hands both to the handler via the
// gin context. The body is restored for downstream binding.
func IdempotencyGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(common.HeaderIdempotencyKey))
		if key == "" {
			common.WriteError(c, apperrors.IdempotencyKeyMissing())
			c.Abort()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			common.WriteError(c, apperrors.Validation("failed to read request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		fp, err := fingerprint.Compute(c.Request.Method, c.Request.URL.Path, body)
		if err != nil {
			common.WriteError(c, apperrors.Validation("request body is not valid JSON"))
			c.Abort()
			return
		}

		c.Set(common.IdempotencyKeyContextKey, key)
		c.Set(common.FingerprintContextKey, fp)

		ctx := logger.WithIdempotencyKey(c.Request.Context(), key)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
