package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkoval/chatpoint/internal/bootstrap"
	"github.com/mkoval/chatpoint/internal/config"
	"github.com/mkoval/chatpoint/internal/core/domain"
	"github.com/mkoval/chatpoint/internal/infrastructure/repository/postgres"
	"github.com/mkoval/chatpoint/internal/observability/logging"
	"github.com/mkoval/chatpoint/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	usageRepo := postgres.NewUsageRepository(app.DB)
	workerMetrics := metrics.NewWorkerMetrics(service)

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		slog.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker subscribed", "subject", cfg.NATSUsageSubject)
	err = app.Usage.Subscribe(ctx, func(handlerCtx context.Context, event domain.UsageEvent) error {
		workerMetrics.StartUsageEvent()
		start := time.Now()

		insertCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()
		insertErr := usageRepo.Insert(insertCtx, event)

		workerMetrics.FinishUsageEvent(service, time.Since(start), insertErr)
		if insertErr == nil {
			workerMetrics.RecordTokenUsage(service, event.Provider, event.Model, event.InputTokens, event.OutputTokens)
		}
		if created, parseErr := time.Parse(time.RFC3339Nano, event.CreatedAt); parseErr == nil {
			workerMetrics.ObserveQueueLag(service, time.Since(created))
		}
		return insertErr
	})
	if err != nil {
		slog.Error("worker subscribe failed", "error", err)
		os.Exit(1)
	}
}
