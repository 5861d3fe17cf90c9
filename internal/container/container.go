// Package container is the composition root. All dependencies are created,
// wired and closed here; nothing else constructs infrastructure.
package container

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"

	httpadapter "github.com/coinvault/coinvault/internal/adapters/http"
	"github.com/coinvault/coinvault/internal/adapters/http/middleware"
	"github.com/coinvault/coinvault/internal/application/ports"
	"github.com/coinvault/coinvault/internal/application/usecases/wallet"
	"github.com/coinvault/coinvault/internal/config"
	"github.com/coinvault/coinvault/internal/infrastructure/events"
	"github.com/coinvault/coinvault/internal/infrastructure/persistence/postgres"
	"github.com/coinvault/coinvault/internal/infrastructure/redis"
	"github.com/coinvault/coinvault/internal/pkg/logger"
	"github.com/coinvault/coinvault/internal/pkg/tracing"
)

// Container owns the application's dependency graph.
type Container struct {
	config *config.Config
	logger *slog.Logger

	pool        *pgxpool.Pool
	redisClient *goredis.Client
	natsConn    *nats.Conn

	userRepo   ports.UserRepository
	assetRepo  ports.AssetTypeRepository
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	ledgerRepo ports.LedgerRepository
	uow        ports.UnitOfWork

	cache     ports.IdempotencyCache
	lock      ports.WalletLock
	publisher ports.EventPublisher

	engine *wallet.Engine

	httpServer      *httpadapter.Server
	tracingShutdown tracing.ShutdownFunc
}

// New creates an empty container; call Initialize before use.
func New(cfg *config.Config) *Container {
	return &Container{config: cfg}
}

// Initialize builds the full dependency graph. On error the container is
// left partially built; call Shutdown to release whatever was opened.
func (c *Container) Initialize(ctx context.Context) error {
	c.initLogger()
	c.logger.Info("initializing container",
		slog.String("app", c.config.App.Name),
		slog.String("version", c.config.App.Version),
		slog.String("environment", c.config.App.Environment),
	)

	shutdown, err := tracing.Setup(ctx, tracing.Config{
		Endpoint:    c.config.Tracing.OTLPEndpoint,
		ServiceName: c.config.App.Name,
		Version:     c.config.App.Version,
		Environment: c.config.App.Environment,
		SampleRatio: c.config.Tracing.SampleRatio,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	c.tracingShutdown = shutdown

	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	c.logger.Info("database connected")

	if err := c.initRedis(ctx); err != nil {
		return fmt.Errorf("init redis: %w", err)
	}
	c.logger.Info("redis connected")

	if err := c.initEvents(); err != nil {
		return fmt.Errorf("init events: %w", err)
	}

	c.initRepositories()
	c.initEngine()
	c.initHTTPServer()

	c.logger.Info("container initialized")
	return nil
}

func (c *Container) initLogger() {
	cfg := &logger.Config{
		Level:     c.config.Log.Level,
		Format:    c.config.Log.Format,
		Output:    os.Stdout,
		AddSource: !c.config.App.IsProduction(),
	}
	c.logger = logger.New(cfg)
	slog.SetDefault(c.logger)
}

func (c *Container) initDatabase(ctx context.Context) error {
	pool, err := postgres.NewConnectionPool(ctx, postgres.DefaultPoolConfig(c.config.Database.URL))
	if err != nil {
		return err
	}
	c.pool = pool
	return nil
}

func (c *Container) initRedis(ctx context.Context) error {
	client, err := redis.NewClient(ctx, c.config.Redis.URL)
	if err != nil {
		return err
	}
	c.redisClient = client

	c.cache = redis.NewIdempotencyCache(client, c.config.Idempotency.CacheTTL(), c.logger)
	c.lock = redis.NewWalletLock(
		client,
		c.config.Lock.TTL(),
		c.config.Lock.RetryCount,
		c.config.Lock.RetryDelay(),
		c.logger,
	)
	return nil
}

func (c *Container) initEvents() error {
	if c.config.NATS.URL == "" {
		c.publisher = events.NoopPublisher{}
		c.logger.Info("event publishing disabled")
		return nil
	}

	conn, err := events.Connect(c.config.NATS.URL, c.logger)
	if err != nil {
		return err
	}
	c.natsConn = conn
	c.publisher = events.NewNATSPublisher(conn, c.logger)
	c.logger.Info("nats connected", slog.String("url", c.config.NATS.URL))
	return nil
}

func (c *Container) initRepositories() {
	c.userRepo = postgres.NewUserRepository(c.pool)
	c.assetRepo = postgres.NewAssetTypeRepository(c.pool)
	c.walletRepo = postgres.NewWalletRepository(c.pool)
	c.txRepo = postgres.NewTransactionRepository(c.pool)
	c.ledgerRepo = postgres.NewLedgerRepository(c.pool)
	c.uow = postgres.NewUnitOfWork(c.pool)
}

func (c *Container) initEngine() {
	c.engine = wallet.NewEngine(
		c.userRepo,
		c.assetRepo,
		c.walletRepo,
		c.txRepo,
		c.ledgerRepo,
		c.cache,
		c.lock,
		c.uow,
		c.publisher,
		c.logger,
	)
}

func (c *Container) initHTTPServer() {
	router := httpadapter.NewRouter(&httpadapter.RouterConfig{
		Logger:      c.logger,
		Pool:        c.pool,
		Redis:       c.redisClient,
		Engine:      c.engine,
		Version:     c.config.App.Version,
		Environment: c.config.App.Environment,
		Auth: middleware.AuthConfig{
			Secret: c.config.Auth.JWTSecret,
			Issuer: c.config.Auth.JWTIssuer,
		},
		EnableTracing: c.config.Tracing.OTLPEndpoint != "",
	})

	c.httpServer = httpadapter.NewServer(&httpadapter.ServerConfig{
		Addr:            c.config.Server.Address(),
		ReadTimeout:     c.config.Server.ReadTimeout,
		WriteTimeout:    c.config.Server.WriteTimeout,
		IdleTimeout:     c.config.Server.IdleTimeout,
		ShutdownTimeout: c.config.Server.ShutdownTimeout,
		Logger:          c.logger,
	}, router)
}

// Logger returns the container's logger.
func (c *Container) Logger() *slog.Logger { return c.logger }

// Pool returns the database pool.
func (c *Container) Pool() *pgxpool.Pool { return c.pool }

// Engine returns the wallet engine.
func (c *Container) Engine() *wallet.Engine { return c.engine }

// HTTPServer returns the HTTP server.
func (c *Container) HTTPServer() *httpadapter.Server { return c.httpServer }

// Run serves HTTP until a shutdown signal arrives.
func (c *Container) Run() error {
	c.logger.Info("starting server",
		slog.String("address", c.config.Server.Address()),
	)
	return c.httpServer.Run()
}

// Shutdown releases everything in reverse initialization order. Safe to call
// on a partially initialized container.
func (c *Container) Shutdown(ctx context.Context) error {
	if c.logger != nil {
		c.logger.Info("shutting down container")
	}

	var errs []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}
	if c.natsConn != nil {
		c.natsConn.Close()
	}
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if c.pool != nil {
		c.pool.Close()
	}
	if c.tracingShutdown != nil {
		if err := c.tracingShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
