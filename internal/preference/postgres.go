package preference

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"notify-dispatch/internal/common/errors"
)

// PostgresStore is a durable Store implementation backed by PostgreSQL. It
// substitutes for MemoryStore without touching the dispatch engine.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle. The preferences table is
// expected to exist (see EnsureSchema).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the preferences table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS preferences (
			email       TEXT PRIMARY KEY,
			suppressed  BOOLEAN NOT NULL DEFAULT FALSE,
			digest_only BOOLEAN NOT NULL DEFAULT FALSE,
			frequency   TEXT NOT NULL DEFAULT 'realtime',
			updated_at  TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create preferences table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, address string, suppressed, digestOnly bool, frequency Frequency) (Record, error) {
	key := NormalizeAddress(address)
	if key == "" {
		return Record{}, errors.NewMissingEmailError()
	}

	record := Record{
		Email:      key,
		Suppressed: suppressed,
		DigestOnly: digestOnly,
		Frequency:  normalizeFrequency(frequency),
		UpdatedAt:  time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (email, suppressed, digest_only, frequency, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			suppressed = EXCLUDED.suppressed,
			digest_only = EXCLUDED.digest_only,
			frequency = EXCLUDED.frequency,
			updated_at = EXCLUDED.updated_at`,
		record.Email, record.Suppressed, record.DigestOnly, string(record.Frequency), record.UpdatedAt,
	)
	if err != nil {
		return Record{}, fmt.Errorf("upsert preference: %w", err)
	}

	return record, nil
}

func (s *PostgresStore) Get(ctx context.Context, address string) (Record, error) {
	key := NormalizeAddress(address)

	var record Record
	var frequency string
	err := s.db.QueryRowContext(ctx, `
		SELECT email, suppressed, digest_only, frequency, updated_at
		FROM preferences WHERE email = $1`, key,
	).Scan(&record.Email, &record.Suppressed, &record.DigestOnly, &frequency, &record.UpdatedAt)

	if err == sql.ErrNoRows {
		return DefaultRecord(key), nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("query preference: %w", err)
	}

	record.Frequency = normalizeFrequency(Frequency(frequency))
	return record, nil
}
