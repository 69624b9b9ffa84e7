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

	"github.com/joao-fontenele/cartflow/internal/config"
	"github.com/joao-fontenele/cartflow/internal/gateway"
	"github.com/joao-fontenele/cartflow/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load("8080")
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Require("CART_SERVICE_URL", "CATALOG_SERVICE_URL"); err != nil {
		logger.Error("missing configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "gateway", cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	// No client timeout: checkout is bounded by the cart service deadline.
	httpClient := &http.Client{Transport: telemetry.Transport(nil)}

	handler := gateway.NewHandler(
		gateway.NewServiceProxy(cfg.CartServiceURL, httpClient),
		gateway.NewServiceProxy(cfg.CatalogServiceURL, httpClient),
		logger,
	)

	mux := http.NewServeMux()
	for _, pattern := range []string{
		"GET /cart",
		"GET /cart/count",
		"POST /cart/items",
		"PATCH /cart/items/{id}",
		"DELETE /cart/items/{id}",
		"DELETE /cart",
		"POST /checkout",
		"GET /orders",
		"GET /orders/{id}",
		"PATCH /orders/{id}/status",
	} {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(handler.HandleShop))
	}
	mux.HandleFunc("GET /catalog/products", telemetry.WithHTTPRoute(handler.HandleCatalog))
	mux.HandleFunc("GET /catalog/products/{id}", telemetry.WithHTTPRoute(handler.HandleCatalog))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      telemetry.ServerHandler(mux, "gateway"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.CheckoutDeadline + cfg.CatalogTimeout + 10*time.Second,
	}

	go func() {
		logger.Info("starting gateway service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
