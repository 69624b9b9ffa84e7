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

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/cartflow/internal/cart"
	"github.com/joao-fontenele/cartflow/internal/catalog"
	"github.com/joao-fontenele/cartflow/internal/checkout"
	"github.com/joao-fontenele/cartflow/internal/config"
	"github.com/joao-fontenele/cartflow/internal/messaging"
	"github.com/joao-fontenele/cartflow/internal/orders"
	"github.com/joao-fontenele/cartflow/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load("8081")
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Require("POSTGRES_URL", "CATALOG_SERVICE_URL"); err != nil {
		logger.Error("missing configuration", "error", err)
		os.Exit(1)
	}
	schema := cfg.PostgresSchema
	if schema == "" {
		schema = "shop"
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "cartd", cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("cartd")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL, schema)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	catalogClient := catalog.NewClient(cfg.CatalogServiceURL,
		&http.Client{Transport: telemetry.Transport(nil)},
		catalog.WithTimeout(cfg.CatalogTimeout),
		catalog.WithConcurrency(cfg.CatalogConcurrency),
	)

	checkoutMetrics, err := checkout.NewMetrics(otel.Meter("checkout"))
	if err != nil {
		logger.Error("failed to create checkout metrics", "error", err)
		os.Exit(1)
	}

	engineOpts := []checkout.Option{
		checkout.WithDeadline(cfg.CheckoutDeadline),
		checkout.WithCompensationTimeout(cfg.CatalogTimeout),
		checkout.WithMetrics(checkoutMetrics),
	}
	if len(cfg.KafkaBrokers) > 0 {
		orderEvents := messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicOrderCreated)
		defer func() { _ = orderEvents.Close() }()
		compensationEvents := messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicStockCompensation,
			messaging.WithRequiredAcks(kafka.RequireAll))
		defer func() { _ = compensationEvents.Close() }()

		engineOpts = append(engineOpts,
			checkout.WithOrderEvents(orderEvents),
			checkout.WithCompensationEvents(compensationEvents),
		)
	} else {
		logger.Warn("KAFKA_BROKERS not set, order events and queued compensations are disabled")
	}

	carts := cart.NewRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	engine := checkout.NewEngine(checkout.NewPostgresStore(db, carts, orderRepo), catalogClient, logger, engineOpts...)

	cartHandler := cart.NewHandler(
		cart.NewService(carts, catalogClient, logger),
		cart.NewProjector(carts, catalogClient, logger),
		logger,
	)
	checkoutHandler := checkout.NewHandler(engine, logger)
	ordersHandler := orders.NewHandler(orderRepo, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(cartHandler.HandleView))
	mux.HandleFunc("GET /cart/count", telemetry.WithHTTPRoute(cartHandler.HandleCount))
	mux.HandleFunc("POST /cart/items", telemetry.WithHTTPRoute(cartHandler.HandleAdd))
	mux.HandleFunc("PATCH /cart/items/{id}", telemetry.WithHTTPRoute(cartHandler.HandleUpdate))
	mux.HandleFunc("DELETE /cart/items/{id}", telemetry.WithHTTPRoute(cartHandler.HandleRemove))
	mux.HandleFunc("DELETE /cart", telemetry.WithHTTPRoute(cartHandler.HandleClear))
	mux.HandleFunc("POST /checkout", telemetry.WithHTTPRoute(checkoutHandler.HandleCheckout))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(ordersHandler.HandleList))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(ordersHandler.HandleGet))
	mux.HandleFunc("PATCH /orders/{id}/status", telemetry.WithHTTPRoute(ordersHandler.HandleUpdateStatus))
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     telemetry.ServerHandler(mux, "cartd"),
		ReadTimeout: 10 * time.Second,
		// Checkout may run up to its deadline plus compensation.
		WriteTimeout: cfg.CheckoutDeadline + cfg.CatalogTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("starting cart service", "port", cfg.Port, "schema", schema)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.CheckoutDeadline)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
