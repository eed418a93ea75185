package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/foodflow/internal/client"
	"github.com/joao-fontenele/foodflow/internal/config"
	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/messaging"
	"github.com/joao-fontenele/foodflow/internal/telemetry"
	"github.com/joao-fontenele/foodflow/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var cfg config.Worker
	if err := config.Parse(&cfg); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	providers, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:    "dispatch-worker",
		ServiceVersion: cfg.ServiceVersion,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = providers.Shutdown(context.Background()) }()

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, domain.OrderStatusTopic, cfg.GroupID,
		messaging.WithLogger(logger),
		messaging.WithEventTypes(domain.OrderStatusEvent{}.EventType()),
		messaging.WithRetry(cfg.MaxTries, messaging.DefaultRetryInterval),
	)
	defer func() { _ = consumer.Close() }()

	api := client.New(cfg.GatewayURL, client.WithLogger(logger))
	dispatcher := worker.NewDispatcher(api, api, logger)

	logger.Info("starting dispatch worker", "brokers", cfg.KafkaBrokers, "group_id", cfg.GroupID,
		"sweep_interval", cfg.SweepInterval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Consume(ctx, dispatcher.Handle) })
	g.Go(func() error { return dispatcher.RunSweeps(ctx, cfg.SweepInterval) })

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("worker stopped")
			return
		}
		logger.Error("worker error", "error", err)
		os.Exit(1)
	}
}
