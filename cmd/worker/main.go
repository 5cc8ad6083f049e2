// Command worker consumes sync and mail tasks from NATS JetStream.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudbday/cloudbday/internal/app"
	"github.com/cloudbday/cloudbday/internal/config"
	"github.com/cloudbday/cloudbday/internal/observability/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName + "-worker",
	})

	if err := run(cfg); err != nil {
		slog.Error("worker failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	stopConsumers, err := a.Consume(ctx)
	if err != nil {
		return err
	}
	defer stopConsumers()

	slog.Info("worker started", logger.Count("handlers", len(a.Dispatcher.Kinds())))
	<-ctx.Done()
	slog.Info("shutting down worker")
	return nil
}
