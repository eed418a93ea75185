// Package database opens instrumented Postgres pools, waiting for the server
// to come up.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/joao-fontenele/foodflow/internal/telemetry"
)

const pingTimeout = 5 * time.Second

// Connect opens dsn with driver ("postgres" or "pgx") and pings until the
// database answers or maxWait elapses.
func Connect(ctx context.Context, driver, dsn string, maxWait time.Duration, logger *slog.Logger) (*sql.DB, error) {
	db, err := telemetry.OpenDB(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := db.PingContext(pctx); err != nil {
			logger.Warn("database not ready", "error", err, "attempt", attempt)
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxWait),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database unreachable after %d attempts: %w", attempt, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}
