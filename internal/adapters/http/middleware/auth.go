package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/coinvault/coinvault/internal/adapters/http/common"
	apperrors "github.com/coinvault/coinvault/internal/domain/errors"
)

// AuthConfig configures the optional bearer-token check. With an empty
// Secret the middleware is a passthrough, which is how local development
// and the test suite run.
type AuthConfig struct {
	Secret string
	Issuer string
}

// Auth validates an HS256 bearer token when a secret is configured.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	if cfg.Secret == "" {
		return func(c *gin.Context) { c.Next() }
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(parserOpts...)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			common.WriteError(c, apperrors.Unauthorized("missing Authorization header"))
			c.Abort()
			return
		}

		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			common.WriteError(c, apperrors.Unauthorized("Authorization header must use the Bearer scheme"))
			c.Abort()
			return
		}

		token, err := parser.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			return []byte(cfg.Secret), nil
		})
		if err != nil || !token.Valid {
			common.WriteError(c, apperrors.Unauthorized("invalid or expired token"))
			c.Abort()
			return
		}

		if sub, err := token.Claims.GetSubject(); err == nil && sub != "" {
			c.Set(common.AuthSubjectContextKey, sub)
		}

		c.Next()
	}
}
