package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/FranksOps/landscape/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Store
var _ storage.Store = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS competitor_records (
	id TEXT PRIMARY KEY,
	problem_id TEXT NOT NULL,
	name TEXT NOT NULL,
	url TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	rating INTEGER NOT NULL CHECK (rating BETWEEN 10 AND 100),
	rating_label TEXT NOT NULL,
	position INTEGER NOT NULL,
	previous_rating INTEGER,
	rating_change INTEGER NOT NULL DEFAULT 0,
	first_seen_at TIMESTAMPTZ NOT NULL,
	last_seen_at TIMESTAMPTZ NOT NULL,
	UNIQUE (problem_id, url)
);
CREATE INDEX IF NOT EXISTS competitor_records_problem_idx ON competitor_records (problem_id);
`

const upsertQuery = `
INSERT INTO competitor_records (
	id, problem_id, name, url, description, rating, rating_label, position,
	previous_rating, rating_change, first_seen_at, last_seen_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (problem_id, url) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	rating = EXCLUDED.rating,
	rating_label = EXCLUDED.rating_label,
	position = EXCLUDED.position,
	previous_rating = EXCLUDED.previous_rating,
	rating_change = EXCLUDED.rating_change,
	last_seen_at = EXCLUDED.last_seen_at
`

// New creates a Postgres-backed storage.Store, creating the schema if needed.
func New(ctx context.Context, dsn string) (storage.Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) LoadSnapshot(ctx context.Context, problemID string) ([]*storage.CompetitorRecord, error) {
	rows, err := b.pool.Query(ctx, `
	SELECT id, problem_id, name, url, description, rating, rating_label, position,
		previous_rating, rating_change, first_seen_at, last_seen_at
	FROM competitor_records
	WHERE problem_id = $1
	ORDER BY position ASC, url ASC`, problemID)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	var out []*storage.CompetitorRecord
	for rows.Next() {
		var r storage.CompetitorRecord
		var prev *int32
		if err := rows.Scan(
			&r.ID, &r.ProblemID, &r.Name, &r.URL, &r.Description, &r.Rating, &r.RatingLabel,
			&r.Position, &prev, &r.RatingChange, &r.FirstSeenAt, &r.LastSeenAt,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if prev != nil {
			v := int(*prev)
			r.PreviousRating = &v
		}
		r.FirstSeenAt = r.FirstSeenAt.UTC()
		r.LastSeenAt = r.LastSeenAt.UTC()
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot: %w", err)
	}
	return out, nil
}

// Upsert sends all rows in one batch inside a single transaction.
func (b *postgresBackend) Upsert(ctx context.Context, records ...*storage.CompetitorRecord) error {
	if len(records) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range records {
			batch.Queue(upsertQuery,
				r.ID, r.ProblemID, r.Name, r.URL, r.Description, r.Rating, r.RatingLabel, r.Position,
				r.PreviousRating, r.RatingChange, r.FirstSeenAt.UTC(), r.LastSeenAt.UTC(),
			)
		}

		results := tx.SendBatch(ctx, batch)
		for _, r := range records {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("upsert %s: %w", r.URL, err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("close upsert batch: %w", err)
		}
		return nil
	})
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
