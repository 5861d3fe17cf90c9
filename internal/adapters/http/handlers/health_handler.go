package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinvault/coinvault/internal/adapters/http/common"
	"github.com/coinvault/coinvault/internal/infrastructure/persistence/postgres"
	"github.com/coinvault/coinvault/internal/infrastructure/redis"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	pool    *pgxpool.Pool
	redis   redis.Commands
	version string
	log     *slog.Logger
}

// NewHealthHandler builds a HealthHandler. Either dependency may be nil, in
// which case its readiness check is skipped.
func NewHealthHandler(pool *pgxpool.Pool, rdb redis.Commands, version string, log *slog.Logger) *HealthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &HealthHandler{pool: pool, redis: rdb, version: version, log: log}
}

// Live handles GET /health. It answers as long as the process runs.
func (h *HealthHandler) Live(c *gin.Context) {
	common.WriteJSON(c, http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready handles GET /ready. It probes the database and Redis and reports
// per-dependency status.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{}
	healthy := true

	if h.pool != nil {
		if err := postgres.HealthCheck(ctx, h.pool); err != nil {
			h.log.WarnContext(ctx, "readiness: postgres unavailable", slog.String("error", err.Error()))
			checks["postgres"] = "unavailable"
			healthy = false
		} else {
			checks["postgres"] = "ok"
		}
	}

	if h.redis != nil {
		if err := redis.HealthCheck(ctx, h.redis); err != nil {
			h.log.WarnContext(ctx, "readiness: redis unavailable", slog.String("error", err.Error()))
			checks["redis"] = "unavailable"
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	common.WriteJSON(c, status, gin.H{
		"status": overall,
		"checks": checks,
	})
}
