// Package common holds the shared HTTP response plumbing. It is the single
// boundary where application errors become wire envelopes.
package common

import (
	"encoding/json"
	"log/slog"

	"github.com/gin-gonic/gin"

	apperrors "github.com/coinvault/coinvault/internal/domain/errors"
)

// Wire headers.
const (
	HeaderRequestID         = "X-Request-ID"
	HeaderIdempotencyKey    = "Idempotency-Key"
	HeaderIdempotencyReplay = "Idempotency-Replayed"
)

// Gin context keys.
const (
	RequestIDContextKey      = "request_id"
	IdempotencyKeyContextKey = "idempotency_key"
	FingerprintContextKey    = "request_fingerprint"
	AuthSubjectContextKey    = "auth_subject"
)

// GetRequestID returns the request id set by the middleware.
func GetRequestID(c *gin.Context) string {
	if id, ok := c.Get(RequestIDContextKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// WriteError renders any error as the {"error":{...}} envelope. Errors that
// are not AppErrors are logged and masked as INTERNAL_SERVER_ERROR.
func WriteError(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		slog.ErrorContext(c.Request.Context(), "unhandled error reached http boundary",
			slog.String("error", err.Error()))
		appErr = apperrors.Internal(err)
	}
	c.JSON(appErr.HTTPStatus, appErr.ToEnvelope())
}

// WriteRaw replays pre-marshaled bytes unchanged, so replayed responses are
// byte-identical to the first execution. Replays are flagged via header.
func WriteRaw(c *gin.Context, status int, body json.RawMessage, replayed bool) {
	if replayed {
		c.Header(HeaderIdempotencyReplay, "true")
	}
	if len(body) == 0 {
		c.Status(status)
		return
	}
	c.Data(status, "application/json; charset=utf-8", body)
}

// WriteJSON marshals and sends a payload, for endpoints outside the replay
// path (balance, health).
func WriteJSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// NotFoundHandler is the catch-all for unmatched routes.
func NotFoundHandler(c *gin.Context) {
	WriteError(c, apperrors.RouteNotFound(c.Request.Method, c.Request.URL.Path))
}
