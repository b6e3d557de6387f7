// Package backends selects a storage.Store implementation from a DSN.
package backends

import (
	"context"
	"fmt"
	"strings"

	"github.com/FranksOps/landscape/internal/storage"
	"github.com/FranksOps/landscape/internal/storage/jsonbackend"
	"github.com/FranksOps/landscape/internal/storage/memory"
	"github.com/FranksOps/landscape/internal/storage/postgres"
	"github.com/FranksOps/landscape/internal/storage/sqlite"
)

// Open returns the store named by dsn:
//
//	memory://                 in-process, lost on exit (also the empty DSN)
//	postgres://user@host/db   Postgres via pgx
//	sqlite://path/to/file.db  embedded SQLite
//	json://path/to/file.jsonl append-only NDJSON log
func Open(ctx context.Context, dsn string) (storage.Store, error) {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		if dsn == "" {
			return memory.New(), nil
		}
		return nil, fmt.Errorf("store dsn %q has no scheme", dsn)
	}

	switch strings.ToLower(scheme) {
	case "memory", "mem":
		return memory.New(), nil
	case "postgres", "postgresql":
		return postgres.New(ctx, dsn)
	case "sqlite", "sqlite3":
		if rest == "" {
			return nil, fmt.Errorf("sqlite dsn needs a path")
		}
		return sqlite.New(rest)
	case "json", "ndjson":
		if rest == "" {
			return nil, fmt.Errorf("json dsn needs a path")
		}
		return jsonbackend.New(rest)
	default:
		return nil, fmt.Errorf("unsupported store scheme %q", scheme)
	}
}

// Describe returns the DSN with any password removed, for logging.
func Describe(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		if dsn == "" {
			return "memory://"
		}
		return dsn
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		creds := rest[:at]
		if user, _, hasPass := strings.Cut(creds, ":"); hasPass {
			rest = user + ":***" + rest[at:]
		}
	}
	return scheme + "://" + rest
}
