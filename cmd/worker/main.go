package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joao-fontenele/tableside/internal/config"
	"github.com/joao-fontenele/tableside/internal/messaging"
	"github.com/joao-fontenele/tableside/internal/printer"
	"github.com/joao-fontenele/tableside/internal/telemetry"
	"github.com/joao-fontenele/tableside/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		logger.Error("KAFKA_BROKERS is required")
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid business timezone", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, "print-worker", cfg.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	settings, err := config.LoadPrinterSettings(cfg.PrintersFile, logger)
	if err != nil {
		logger.Error("failed to load printer settings", "error", err)
		os.Exit(1)
	}

	dispatcher, err := printer.NewDispatcher(settings, logger,
		printer.WithTimeout(cfg.PrintTimeout),
		printer.WithLocation(loc),
	)
	if err != nil {
		logger.Error("failed to create printer dispatcher", "error", err)
		os.Exit(1)
	}

	consumer := messaging.NewConsumer(brokers, cfg.LifecycleTopic, cfg.ConsumerGroup)
	defer func() { _ = consumer.Close() }()

	handler := worker.NewPrintHandler(dispatcher, logger)

	logger.Info("starting print worker", "brokers", brokers, "topic", cfg.LifecycleTopic, "group", cfg.ConsumerGroup)

	if err := consumer.Consume(ctx, handler.Handle); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
