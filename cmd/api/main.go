// The api binary runs the wallet service HTTP server.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/coinvault/coinvault/internal/config"
	"github.com/coinvault/coinvault/internal/container"
)

func main() {
	// Optional; the environment wins over the file.
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	app := container.New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := app.Initialize(ctx); err != nil {
		cancel()
		slog.Error("failed to initialize application", slog.String("error", err.Error()))
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = app.Shutdown(shutdownCtx)
		shutdownCancel()
		os.Exit(1)
	}
	cancel()

	runErr := app.Run()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		app.Logger().Error("shutdown finished with errors", slog.String("error", err.Error()))
	}

	if runErr != nil {
		app.Logger().Error("server error", slog.String("error", runErr.Error()))
		os.Exit(1)
	}

	app.Logger().Info("server stopped")
}
