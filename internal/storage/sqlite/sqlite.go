package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FranksOps/landscape/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Store
var _ storage.Store = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
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
	first_seen_at DATETIME NOT NULL,
	last_seen_at DATETIME NOT NULL,
	UNIQUE (problem_id, url)
);
CREATE INDEX IF NOT EXISTS competitor_records_problem_idx ON competitor_records (problem_id);
`

// id and first_seen_at are never updated once written.
const upsertQuery = `
INSERT INTO competitor_records (
	id, problem_id, name, url, description, rating, rating_label, position,
	previous_rating, rating_change, first_seen_at, last_seen_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (problem_id, url) DO UPDATE SET
	name = excluded.name,
	description = excluded.description,
	rating = excluded.rating,
	rating_label = excluded.rating_label,
	position = excluded.position,
	previous_rating = excluded.previous_rating,
	rating_change = excluded.rating_change,
	last_seen_at = excluded.last_seen_at
`

// New creates a SQLite-backed storage.Store, creating the schema if needed.
func New(dsn string) (storage.Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY under concurrent runs.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) LoadSnapshot(ctx context.Context, problemID string) ([]*storage.CompetitorRecord, error) {
	rows, err := b.db.QueryContext(ctx, `
	SELECT id, problem_id, name, url, description, rating, rating_label, position,
		previous_rating, rating_change, first_seen_at, last_seen_at
	FROM competitor_records
	WHERE problem_id = ?
	ORDER BY position ASC, url ASC`, problemID)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	var out []*storage.CompetitorRecord
	for rows.Next() {
		var r storage.CompetitorRecord
		var prev sql.NullInt64
		if err := rows.Scan(
			&r.ID, &r.ProblemID, &r.Name, &r.URL, &r.Description, &r.Rating, &r.RatingLabel,
			&r.Position, &prev, &r.RatingChange, &r.FirstSeenAt, &r.LastSeenAt,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if prev.Valid {
			v := int(prev.Int64)
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

func (b *sqliteBackend) Upsert(ctx context.Context, records ...*storage.CompetitorRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var prev any
		if r.PreviousRating != nil {
			prev = *r.PreviousRating
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.ProblemID, r.Name, r.URL, r.Description, r.Rating, r.RatingLabel, r.Position,
			prev, r.RatingChange, r.FirstSeenAt.UTC(), r.LastSeenAt.UTC(),
		); err != nil {
			return fmt.Errorf("upsert %s: %w", r.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
