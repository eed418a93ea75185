// Package config reads each binary's settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

type Telemetry struct {
	OTLPEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"0.1.0"`
}

type Database struct {
	PostgresURL string        `env:"POSTGRES_URL,required"`
	MaxWait     time.Duration `env:"DB_MAX_WAIT" envDefault:"30s"`
}

type Orders struct {
	Telemetry
	Database
	Port         string   `env:"PORT" envDefault:"8081"`
	KafkaBrokers []string `env:"KAFKA_BROKERS,required,notEmpty" envSeparator:","`
}

type Deliveries struct {
	Telemetry
	Database
	Port string `env:"PORT" envDefault:"8082"`
}

type Payments struct {
	Telemetry
	Port      string          `env:"PORT" envDefault:"8083"`
	MaxAmount decimal.Decimal `env:"PAYMENTS_MAX_AMOUNT" envDefault:"500"`
	MinDelay  time.Duration   `env:"PAYMENTS_MIN_DELAY" envDefault:"50ms"`
	Jitter    time.Duration   `env:"PAYMENTS_JITTER" envDefault:"150ms"`
}

type Gateway struct {
	Telemetry
	Port                 string        `env:"PORT" envDefault:"8080"`
	OrdersServiceURL     string        `env:"ORDERS_SERVICE_URL,required"`
	DeliveriesServiceURL string        `env:"DELIVERIES_SERVICE_URL,required"`
	PaymentsServiceURL   string        `env:"PAYMENTS_SERVICE_URL,required"`
	UpstreamTimeout      time.Duration `env:"GATEWAY_UPSTREAM_TIMEOUT" envDefault:"10s"`
}

type Worker struct {
	Telemetry
	KafkaBrokers  []string      `env:"KAFKA_BROKERS,required" envSeparator:","`
	GroupID       string        `env:"WORKER_GROUP_ID" envDefault:"dispatch-worker"`
	GatewayURL    string        `env:"GATEWAY_URL" envDefault:"http://localhost:8080"`
	MaxTries      uint          `env:"WORKER_MAX_TRIES" envDefault:"5"`
	SweepInterval time.Duration `env:"WORKER_SWEEP_INTERVAL" envDefault:"30s"`
}

type Notifier struct {
	Telemetry
	KafkaBrokers []string `env:"KAFKA_BROKERS,required" envSeparator:","`
	GroupID      string   `env:"NOTIFIER_GROUP_ID" envDefault:"order-notifier"`
	GatewayURL   string   `env:"GATEWAY_URL" envDefault:"http://localhost:8080"`
	MaxTries     uint     `env:"NOTIFIER_MAX_TRIES" envDefault:"3"`
}

type Migrate struct {
	Database
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"file://migrations"`
}

// Storefront configures the command-line client. RedisURL switches cart
// storage from the local bbolt file to Redis.
type Storefront struct {
	GatewayURL   string        `env:"STOREFRONT_GATEWAY_URL" envDefault:"http://localhost:8080"`
	DataFile     string        `env:"STOREFRONT_DATA_FILE" envDefault:"storefront.db"`
	RedisURL     string        `env:"STOREFRONT_REDIS_URL"`
	RedisPrefix  string        `env:"STOREFRONT_REDIS_PREFIX" envDefault:"storefront"`
	CartTTL      time.Duration `env:"STOREFRONT_CART_TTL" envDefault:"168h"`
	MenuFile     string        `env:"STOREFRONT_MENU_FILE"`
	DriverID     string        `env:"STOREFRONT_DRIVER_ID"`
	CustomerID   string        `env:"STOREFRONT_CUSTOMER_ID"`
	RestaurantID string        `env:"STOREFRONT_RESTAURANT_ID"`
}

// Parse fills cfg, a pointer to one of the structs above, from the
// environment.
func Parse(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
