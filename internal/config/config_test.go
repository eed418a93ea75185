package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://localhost/foodflow")
	t.Setenv("KAFKA_BROKERS", "k1:9092")

	var cfg Orders
	require.NoError(t, Parse(&cfg))

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, 30*time.Second, cfg.MaxWait)
	assert.Equal(t, []string{"k1:9092"}, cfg.KafkaBrokers)
}

func TestParseOrdersNeedsBrokers(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://localhost/foodflow")
	t.Setenv("KAFKA_BROKERS", "")

	var cfg Orders
	err := Parse(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("WORKER_MAX_TRIES", "9")

	var cfg Worker
	require.NoError(t, Parse(&cfg))

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, uint(9), cfg.MaxTries)
	assert.Equal(t, "dispatch-worker", cfg.GroupID)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
}

func TestParseNotifier(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092")

	var cfg Notifier
	require.NoError(t, Parse(&cfg))

	assert.Equal(t, "order-notifier", cfg.GroupID)
	assert.Equal(t, uint(3), cfg.MaxTries)
	assert.Equal(t, "http://localhost:8080", cfg.GatewayURL)
}

func TestParseDecimal(t *testing.T) {
	t.Setenv("PAYMENTS_MAX_AMOUNT", "99.50")

	var cfg Payments
	require.NoError(t, Parse(&cfg))

	assert.True(t, cfg.MaxAmount.Equal(decimal.RequireFromString("99.50")))
	assert.Equal(t, 50*time.Millisecond, cfg.MinDelay)
}

func TestParseRequired(t *testing.T) {
	t.Setenv("ORDERS_SERVICE_URL", "http://orders")

	var cfg Gateway
	err := Parse(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "DELIVERIES_SERVICE_URL")
}
