package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joao-fontenele/foodflow/internal/client"
	"github.com/joao-fontenele/foodflow/internal/config"
	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/messaging"
	"github.com/joao-fontenele/foodflow/internal/notify"
	"github.com/joao-fontenele/foodflow/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var cfg config.Notifier
	if err := config.Parse(&cfg); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	providers, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:    "order-notifier",
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
	notifier := notify.NewNotifier(api, notify.NewLogSender(logger), logger)

	logger.Info("starting order notifier", "brokers", cfg.KafkaBrokers, "group_id", cfg.GroupID)

	if err := consumer.Consume(ctx, notifier.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("notifier error", "error", err)
		os.Exit(1)
	}
	logger.Info("notifier stopped")
}
