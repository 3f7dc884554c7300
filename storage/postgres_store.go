package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"rental-pricer/utils"
)

// NewPostgresStore opens a PostgreSQL connection, waits for the server to
// answer, runs schema migrations and returns a ready-to-use store.
func NewPostgresStore(ctx context.Context, dsn string, retry *utils.RetryConfig, logger *utils.Logger) (*SQLStore, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	err = retry.Do(ctx, "postgres-ping", func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return newSQLStore(ctx, postgresDialect, db, logger)
}
