package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coinvault/coinvault/internal/adapters/http/common"
)

// LoggingConfig configures the access log middleware.
type LoggingConfig struct {
	Logger    *slog.Logger
	SkipPaths []string
}

// Logging writes one structured record per request. Probe and metrics paths
// are skipped to keep the log usable.
func Logging(cfg *LoggingConfig) gin.HandlerFunc {
	if cfg == nil {
		cfg = &LoggingConfig{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.Int("size", c.Writer.Size()),
		}
		if replayed := c.Writer.Header().Get(common.HeaderIdempotencyReplay); replayed == "true" {
			attrs = append(attrs, slog.Bool("replayed", true))
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			log.ErrorContext(ctx, "request failed", attrs...)
		case status >= 400:
			log.WarnContext(ctx, "request rejected", attrs...)
		default:
			log.InfoContext(ctx, "request completed", attrs...)
		}
	}
}
