package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"rental-pricer/models"
	"rental-pricer/utils"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	driver     string
	primaryKey string
	priceType  string
	// placeholder returns the bind marker for the 1-based argument n.
	placeholder func(n int) string
}

var (
	postgresDialect = dialect{
		driver:      "postgres",
		primaryKey:  "SERIAL PRIMARY KEY",
		priceType:   "NUMERIC(10,2)",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
	sqliteDialect = dialect{
		driver:      "sqlite3",
		primaryKey:  "INTEGER PRIMARY KEY AUTOINCREMENT",
		priceType:   "REAL",
		placeholder: func(int) string { return "?" },
	}
)

// listingColumns are the listings table columns after the id, in insert order.
var listingColumns = []string{
	"name", "commune", "postal_code", "stars", "type", "capacity", "surface_m2",
	"season", "day_type", "price_per_night",
	"pool", "spa_or_hot_tub", "air_conditioning", "private_garden", "wifi", "pets_allowed",
}

// SQLStore keeps a dataset in a relational database: a listings table and a
// key/value parameters table.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *utils.Logger
}

// Compile-time interface checks.
var (
	_ DatasetSource = (*SQLStore)(nil)
	_ DatasetWriter = (*SQLStore)(nil)
)

func newSQLStore(ctx context.Context, d dialect, db *sql.DB, logger *utils.Logger) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d, logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", d.driver, err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS listings (
			id               %s,
			name             TEXT    NOT NULL DEFAULT '',
			commune          TEXT    NOT NULL DEFAULT '',
			postal_code      TEXT    NOT NULL DEFAULT '',
			stars            INTEGER,
			type             TEXT    NOT NULL DEFAULT '',
			capacity         INTEGER,
			surface_m2       DOUBLE PRECISION,
			season           TEXT    NOT NULL DEFAULT '',
			day_type         TEXT    NOT NULL DEFAULT '',
			price_per_night  %s,
			pool             BOOLEAN NOT NULL DEFAULT FALSE,
			spa_or_hot_tub   BOOLEAN NOT NULL DEFAULT FALSE,
			air_conditioning BOOLEAN NOT NULL DEFAULT FALSE,
			private_garden   BOOLEAN NOT NULL DEFAULT FALSE,
			wifi             BOOLEAN NOT NULL DEFAULT FALSE,
			pets_allowed     BOOLEAN NOT NULL DEFAULT FALSE
		);

		CREATE TABLE IF NOT EXISTS parameters (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_listings_postal_code ON listings(postal_code);
		CREATE INDEX IF NOT EXISTS idx_listings_stars       ON listings(stars);
		CREATE INDEX IF NOT EXISTS idx_listings_price       ON listings(price_per_night);
	`, s.dialect.primaryKey, s.dialect.priceType))
	return err
}

// Write replaces the stored listings and parameters with ds in one
// transaction.
func (s *SQLStore) Write(ctx context.Context, ds *models.Dataset) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.replaceListings(ctx, tx, ds.Listings); err != nil {
			return err
		}
		return s.replaceParameters(ctx, tx, ds.Parameters)
	})
}

// ReplaceListings swaps the listings table contents, keeping parameters.
func (s *SQLStore) ReplaceListings(ctx context.Context, listings []*models.Listing) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.replaceListings(ctx, tx, listings)
	})
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", s.dialect.driver, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", s.dialect.driver, err)
	}
	return nil
}

func (s *SQLStore) replaceListings(ctx context.Context, tx *sql.Tx, listings []*models.Listing) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM listings"); err != nil {
		return fmt.Errorf("%s: clear listings: %w", s.dialect.driver, err)
	}

	const batchSize = 50
	for i := 0; i < len(listings); i += batchSize {
		end := i + batchSize
		if end > len(listings) {
			end = len(listings)
		}
		if err := s.insertBatch(ctx, tx, listings[i:end]); err != nil {
			return err
		}
	}
	s.logger.Debug("[%s] Stored %d listings", s.dialect.driver, len(listings))
	return nil
}

func (s *SQLStore) insertBatch(ctx context.Context, tx *sql.Tx, batch []*models.Listing) error {
	width := len(listingColumns)
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*width)

	for idx, l := range batch {
		marks := make([]string, width)
		for c := range marks {
			marks[c] = s.dialect.placeholder(idx*width + c + 1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(marks, ",")+")")
		valueArgs = append(valueArgs,
			l.Name, l.Commune, l.PostalCode, nullInt(l.Stars), l.Type, nullInt(l.Capacity), nullFloat(l.SurfaceM2),
			l.Season, l.DayType, nullFloat(l.PricePerNight),
			l.Features.Pool, l.Features.SpaOrHotTub, l.Features.AirConditioning,
			l.Features.PrivateGarden, l.Features.Wifi, l.Features.PetsAllowed)
	}

	query := fmt.Sprintf("INSERT INTO listings (%s) VALUES %s",
		strings.Join(listingColumns, ", "), strings.Join(valueStrings, ","))
	if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("%s: insert listings: %w", s.dialect.driver, err)
	}
	return nil
}

func (s *SQLStore) replaceParameters(ctx context.Context, tx *sql.Tx, params map[string]string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM parameters"); err != nil {
		return fmt.Errorf("%s: clear parameters: %w", s.dialect.driver, err)
	}
	query := fmt.Sprintf("INSERT INTO parameters (key, value) VALUES (%s, %s)",
		s.dialect.placeholder(1), s.dialect.placeholder(2))
	for k, v := range params {
		if _, err := tx.ExecContext(ctx, query, k, v); err != nil {
			return fmt.Errorf("%s: insert parameter %q: %w", s.dialect.driver, k, err)
		}
	}
	return nil
}

// Load reads the stored dataset. The hash covers the stored rows so that
// identical contents share a cache entry.
func (s *SQLStore) Load(ctx context.Context) (*models.Dataset, error) {
	listings, err := s.fetchListings(ctx)
	if err != nil {
		return nil, err
	}
	params, err := s.fetchParameters(ctx)
	if err != nil {
		return nil, err
	}

	content, err := json.Marshal(struct {
		Listings   []*models.Listing `json:"listings"`
		Parameters map[string]string `json:"parameters"`
	}{listings, params})
	if err != nil {
		return nil, fmt.Errorf("%s: hash dataset: %w", s.dialect.driver, err)
	}

	return &models.Dataset{
		Hash:           ContentHash(content),
		Listings:       listings,
		Parameters:     params,
		HasPriceColumn: true,
		LoadedAt:       time.Now(),
	}, nil
}

func (s *SQLStore) fetchListings(ctx context.Context) ([]*models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT id, %s FROM listings ORDER BY id", strings.Join(listingColumns, ", ")))
	if err != nil {
		return nil, fmt.Errorf("%s: fetch listings: %w", s.dialect.driver, err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l := &models.Listing{}
		var stars, capacity sql.NullInt64
		var surface, price sql.NullFloat64
		if err := rows.Scan(
			&l.ID, &l.Name, &l.Commune, &l.PostalCode, &stars, &l.Type, &capacity, &surface,
			&l.Season, &l.DayType, &price,
			&l.Features.Pool, &l.Features.SpaOrHotTub, &l.Features.AirConditioning,
			&l.Features.PrivateGarden, &l.Features.Wifi, &l.Features.PetsAllowed,
		); err != nil {
			return nil, fmt.Errorf("%s: scan listing: %w", s.dialect.driver, err)
		}
		if stars.Valid {
			l.Stars = models.IntPtr(int(stars.Int64))
		}
		if capacity.Valid {
			l.Capacity = models.IntPtr(int(capacity.Int64))
		}
		if surface.Valid {
			l.SurfaceM2 = models.FloatPtr(surface.Float64)
		}
		if price.Valid {
			l.PricePerNight = models.FloatPtr(price.Float64)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *SQLStore) fetchParameters(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM parameters")
	if err != nil {
		return nil, fmt.Errorf("%s: fetch parameters: %w", s.dialect.driver, err)
	}
	defer rows.Close()

	params := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("%s: scan parameter: %w", s.dialect.driver, err)
		}
		params[k] = v
	}
	return params, rows.Err()
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
