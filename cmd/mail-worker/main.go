package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budget/internal/amqp"
	"budget/internal/config"
	applog "budget/internal/log"
	"budget/internal/mail"
	"budget/internal/mail/gmail"
	"budget/internal/mail/memory"
	"budget/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	logger.Info("Starting mail-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var sender mail.Sender
	switch cfg.MailBackend {
	case "gmail":
		client, err := gmail.NewFromConfig(context.Background(), cfg)
		if err != nil {
			logger.Error("Failed to initialize Gmail client", "error", err)
			os.Exit(1)
		}
		sender = client
		logger.Info("Gmail backend initialized", "recipient", cfg.MailRecipient)
	default:
		sender = memory.NewLogSender()
		logger.Info("Log backend initialized, mail will only be logged")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	notifyWorker := worker.NewNotifyWorker(sender)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		err := amqpClient.ConsumeNotifications(ctx, func(msg *amqp.NotificationMessage) error {
			return notifyWorker.HandleNotification(ctx, msg)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Notification consumption failed", "error", err)
		}
		cancel()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down mail-worker...")
	cancel()

	// Give the consumer a moment to ack in-flight deliveries.
	time.Sleep(2 * time.Second)
	logger.Info("Mail-worker shutdown complete")
}
