package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/joao-fontenele/foodflow/internal/config"
	"github.com/joao-fontenele/foodflow/internal/database"
	"github.com/joao-fontenele/foodflow/internal/deliveries"
	"github.com/joao-fontenele/foodflow/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var cfg config.Deliveries
	if err := config.Parse(&cfg); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	providers, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:    "deliveries",
		ServiceVersion: cfg.ServiceVersion,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Metrics:        true,
	})
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = providers.Shutdown(context.Background()) }()

	db, err := database.Connect(ctx, "pgx", cfg.PostgresURL, cfg.MaxWait, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	handler := deliveries.NewHandler(deliveries.NewDeliveryRepository(db), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /deliveries", telemetry.WithHTTPRoute(handler.HandleCreate))
	mux.HandleFunc("GET /deliveries/all", telemetry.WithHTTPRoute(handler.HandleList))
	mux.HandleFunc("GET /deliveries/{id}", telemetry.WithHTTPRoute(handler.HandleGet))
	mux.HandleFunc("POST /deliveries/{id}/assign", telemetry.WithHTTPRoute(handler.HandleAssign))
	mux.HandleFunc("PATCH /deliveries/{id}/status", telemetry.WithHTTPRoute(handler.HandleUpdateStatus))
	mux.HandleFunc("GET /health", database.HealthHandler(db))
	mux.Handle("GET /metrics", providers.MetricsHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      telemetry.NewHandler(mux, "deliveries"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting deliveries service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
