package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"sjsage522/placeworker/internal/scraper"
	"sjsage522/placeworker/logger"
	"sjsage522/placeworker/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS places (
	place_id    TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	address     TEXT NOT NULL DEFAULT '',
	latitude    DOUBLE PRECISION,
	longitude   DOUBLE PRECISION,
	source_url  TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// RETURNING (xmax = 0) is true only for freshly inserted rows, which lets a
// single round trip distinguish inserts from updates.
const upsertQuery = `
INSERT INTO places (place_id, name, description, address, latitude, longitude, source_url, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (place_id) DO UPDATE SET
	name        = EXCLUDED.name,
	description = EXCLUDED.description,
	address     = EXCLUDED.address,
	latitude    = EXCLUDED.latitude,
	longitude   = EXCLUDED.longitude,
	source_url  = EXCLUDED.source_url,
	updated_at  = now()
RETURNING (xmax = 0)`

// PostgresStore implements PlaceStore on PostgreSQL
type PostgresStore struct {
	db  *sql.DB
	log *logger.Logger
}

var _ PlaceStore = (*PostgresStore)(nil)

// NewPostgresStore opens the database, verifies connectivity and ensures the
// schema exists. The ping is retried because the database container often
// comes up after the worker.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.NewStore("postgres", "failed to open database", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	log := logger.ForStore()

	var pingErr error
	for i := 0; i < 5; i++ {
		if pingErr = db.PingContext(ctx); pingErr == nil {
			break
		}
		log.Warn().Err(pingErr).Int("try", i+1).Msg("Database not reachable yet")
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			db.Close()
			return nil, errors.NewStore("postgres", "cancelled while waiting for database", ctx.Err())
		}
	}
	if pingErr != nil {
		db.Close()
		return nil, errors.NewStore("postgres", "database unreachable", pingErr)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.NewStore("postgres", "failed to ensure schema", err)
	}

	log.Info().Msg("Place store ready")
	return &PostgresStore{db: db, log: log}, nil
}

// Count returns the number of stored places
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM places`).Scan(&n); err != nil {
		return 0, errors.NewStore("postgres", "failed to count places", err)
	}
	return n, nil
}

// Save upserts every record inside one transaction and returns the number of
// newly inserted rows. A single bad record aborts the batch; partial batches
// would make the new-record count meaningless.
func (s *PostgresStore) Save(ctx context.Context, records []scraper.PlaceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewStore("postgres", "failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return 0, errors.NewStore("postgres", "failed to prepare upsert", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		var lat, lng sql.NullFloat64
		if rec.Coordinate != nil {
			lat = sql.NullFloat64{Float64: rec.Coordinate.Latitude, Valid: true}
			lng = sql.NullFloat64{Float64: rec.Coordinate.Longitude, Valid: true}
		}

		var isNew bool
		err := stmt.QueryRowContext(ctx,
			rec.PlaceID, rec.Name, rec.Description, rec.Address, lat, lng, rec.SourceURL,
		).Scan(&isNew)
		if err != nil {
			return 0, errors.NewStore(rec.PlaceID, "failed to upsert place", err)
		}
		if isNew {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewStore("postgres", "failed to commit batch", err)
	}

	s.log.Info().
		Int("records", len(records)).
		Int("new", inserted).
		Msg("Saved place batch")
	return inserted, nil
}

// Close releases the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
