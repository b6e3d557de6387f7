package jsonbackend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/FranksOps/landscape/internal/storage"
)

// ensure jsonBackend implements storage.Store
var _ storage.Store = (*jsonBackend)(nil)

type recordKey struct {
	problemID string
	url       string
}

// jsonBackend is an append-only NDJSON log. The file is replayed into an index
// on open; later lines for the same (problem, url) replace earlier ones except
// for id and firstSeenAt.
type jsonBackend struct {
	mu    sync.RWMutex
	file  *os.File
	index map[recordKey]*storage.CompetitorRecord
}

// New opens (or creates) an NDJSON-backed storage.Store.
func New(filePath string) (storage.Store, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open json store: %w", err)
	}

	b := &jsonBackend{
		file:  f,
		index: make(map[recordKey]*storage.CompetitorRecord),
	}
	if err := b.replay(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return b, nil
}

func (b *jsonBackend) replay() error {
	scanner := bufio.NewScanner(b.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var r storage.CompetitorRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("replay json store line %d: %w", line, err)
		}
		key := recordKey{problemID: r.ProblemID, url: r.URL}
		b.index[key] = storage.ApplyUpsert(b.index[key], &r)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("replay json store: %w", err)
	}
	return nil
}

func (b *jsonBackend) LoadSnapshot(ctx context.Context, problemID string) ([]*storage.CompetitorRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*storage.CompetitorRecord
	for key, r := range b.index {
		if key.problemID == problemID {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].URL < out[j].URL
	})
	return out, nil
}

// Upsert appends the whole batch with a single write so a run is never half-logged.
func (b *jsonBackend) Upsert(ctx context.Context, records ...*storage.CompetitorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	resolved := make(map[recordKey]*storage.CompetitorRecord, len(records))
	var buf bytes.Buffer
	for _, r := range records {
		key := recordKey{problemID: r.ProblemID, url: r.URL}
		prior, ok := resolved[key]
		if !ok {
			prior = b.index[key]
		}
		merged := storage.ApplyUpsert(prior, r)
		data, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", r.URL, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
		resolved[key] = merged
	}

	if _, err := b.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("append json store: %w", err)
	}
	if err := b.file.Sync(); err != nil {
		return fmt.Errorf("sync json store: %w", err)
	}

	for key, r := range resolved {
		b.index[key] = r
	}
	return nil
}

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
