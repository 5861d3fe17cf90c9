// Package http wires handlers and middleware into the service's HTTP
// surface. The router is the composition point: handlers receive only the
// use cases they need, and the idempotency gate is applied to the mutation
// group only.
package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/coinvault/coinvault/internal/adapters/http/common"
	"github.com/coinvault/coinvault/internal/adapters/http/handlers"
	"github.com/coinvault/coinvault/internal/adapters/http/middleware"
	"github.com/coinvault/coinvault/internal/infrastructure/redis"
)

// probePaths are excluded from the access log.
var probePaths = []string{"/health", "/live", "/ready", "/metrics"}

// RouterConfig carries everything the HTTP surface depends on.
type RouterConfig struct {
	Logger      *slog.Logger
	Pool        *pgxpool.Pool
	Redis       redis.Commands
	Engine      handlers.WalletService
	Version     string
	Environment string
	Auth        middleware.AuthConfig

	// EnableTracing adds the otelgin span middleware. The global tracer
	// provider must be installed separately.
	EnableTracing bool
}

// NewRouter builds the gin engine with the full middleware chain and all
// routes registered.
func NewRouter(cfg *RouterConfig) *gin.Engine {
	if cfg == nil {
		cfg = &RouterConfig{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	handlers.SetupValidator()

	router := gin.New()

	// Recovery first so every later middleware is covered.
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	if cfg.EnableTracing {
		router.Use(otelgin.Middleware("coinvault"))
	}
	router.Use(middleware.Logging(&middleware.LoggingConfig{
		Logger:    log,
		SkipPaths: probePaths,
	}))
	router.Use(middleware.Metrics())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Redis, cfg.Version, log)
	router.GET("/health", healthHandler.Live)
	router.GET("/live", healthHandler.Live)
	router.GET("/ready", healthHandler.Ready)

	if cfg.Engine != nil {
		walletHandler := handlers.NewWalletHandler(cfg.Engine, log)

		walletGroup := router.Group("/wallet")
		walletGroup.Use(middleware.Auth(cfg.Auth))

		mutations := walletGroup.Group("")
		mutations.Use(middleware.IdempotencyGate())
		{
			mutations.POST("/topup", walletHandler.Topup)
			mutations.POST("/bonus", walletHandler.Bonus)
			mutations.POST("/spend", walletHandler.Spend)
		}

		walletGroup.GET("/:userId/balance", walletHandler.GetBalance)
	}

	router.NoRoute(common.NotFoundHandler)

	return router
}
