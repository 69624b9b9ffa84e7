package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joao-fontenele/cartflow/internal/catalog"
	"github.com/joao-fontenele/cartflow/internal/compensation"
	"github.com/joao-fontenele/cartflow/internal/config"
	"github.com/joao-fontenele/cartflow/internal/messaging"
	"github.com/joao-fontenele/cartflow/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load("")
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Require("KAFKA_BROKERS", "CATALOG_SERVICE_URL"); err != nil {
		logger.Error("missing configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "compensator", cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	catalogClient := catalog.NewClient(cfg.CatalogServiceURL,
		&http.Client{Transport: telemetry.Transport(nil)},
		catalog.WithTimeout(cfg.CatalogTimeout),
	)
	handler := compensation.NewHandler(catalogClient, logger,
		compensation.WithBackOff(compensation.DefaultInitialInterval, cfg.CompensationMaxElapsed))

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, messaging.TopicStockCompensation, "stock-compensator", logger)
	defer func() { _ = consumer.Close() }()

	logger.Info("starting compensation worker", "brokers", cfg.KafkaBrokers)

	if err := consumer.Run(ctx, handler.Handle); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
