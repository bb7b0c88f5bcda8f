package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budget/internal/amqp"
	"budget/internal/clock"
	"budget/internal/config"
	applog "budget/internal/log"
	"budget/internal/services"
	"budget/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	logger.Info("Starting limit-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var notifier services.Notifier
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, notifications disabled", "error", err)
	} else {
		defer amqpClient.Close()
		notifier = amqpClient
	}

	limits := services.NewLimitService(repo, notifier, clock.System{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Limit check configured",
		"interval", cfg.LimitCheckInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	// Run the check once on startup so a period that ended while the worker
	// was down is handled immediately.
	if err := limits.CheckAndResetLimitIfNeeded(ctx); err != nil {
		logger.Error("Initial limit check failed", "error", err)
	}

	ticker := time.NewTicker(cfg.LimitCheckInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if err := limits.CheckAndResetLimitIfNeeded(ctx); err != nil {
					logger.Error("Periodic limit check failed", "error", err)
				} else {
					logger.Debug("Limit check complete",
						"next_check", now.Add(cfg.LimitCheckInterval).Format("15:04:05"))
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down limit-worker...")
	cancel()
	logger.Info("Limit-worker shutdown complete")
}
