package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"rental-pricer/utils"
)

// NewSQLiteStore opens (or creates) a SQLite database file. ":memory:"
// gives a private in-memory database.
func NewSQLiteStore(ctx context.Context, path string, logger *utils.Logger) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("sqlite3: create dir: %w", err)
		}
	}
	db, err := sql.Open(sqliteDialect.driver, path)
	if err != nil {
		return nil, fmt.Errorf("sqlite3: open: %w", err)
	}
	// a single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite3: pragma: %w", err)
	}
	return newSQLStore(ctx, sqliteDialect, db, logger)
}
