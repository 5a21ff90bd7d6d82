package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/mkoval/chatpoint/internal/adapters/mcp"
	"github.com/mkoval/chatpoint/internal/bootstrap"
	"github.com/mkoval/chatpoint/internal/config"
	"github.com/mkoval/chatpoint/internal/observability/logging"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	// stdout carries the MCP protocol, logs must stay on stderr.
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := mcpadapter.New(app.Pipeline, version)
	slog.Info("mcp server started", "transport", "stdio")
	if err := srv.ServeStdio(ctx); err != nil && ctx.Err() == nil {
		slog.Error("mcp server failed", "error", err)
		os.Exit(1)
	}
}
