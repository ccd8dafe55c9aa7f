package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/eatwise/labelscan/internal/bootstrap"
	"github.com/eatwise/labelscan/internal/config"
	"github.com/eatwise/labelscan/internal/core/domain"
	"github.com/eatwise/labelscan/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer worker.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           worker.Metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	cleanupLog := logging.Component(logger, "image_cleanup")
	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "metrics_port", cfg.WorkerMetricsPort)
	err = worker.Queue.SubscribeReportDeleted(ctx, func(handlerCtx context.Context, event domain.ReportDeleted) error {
		outcome, err := worker.Metrics.ObserveCleanup(event, func() (domain.CleanupOutcome, error) {
			return worker.Cleaner.HandleReportDeleted(handlerCtx, event)
		})
		if err == nil {
			cleanupLog.Debug("image_cleanup_done", "report_id", event.ReportID, "key", event.ImageKey, "outcome", outcome)
		}
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
