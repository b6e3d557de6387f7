package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/FranksOps/landscape/internal/storage"
)

// ensure memoryBackend implements storage.Store
var _ storage.Store = (*memoryBackend)(nil)

type memoryBackend struct {
	mu       sync.RWMutex
	problems map[string]map[string]*storage.CompetitorRecord // problemID -> url -> record
}

// New creates an in-process storage.Store. Contents are lost on Close.
func New() storage.Store {
	return &memoryBackend{problems: make(map[string]map[string]*storage.CompetitorRecord)}
}

func (b *memoryBackend) LoadSnapshot(ctx context.Context, problemID string) ([]*storage.CompetitorRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	byURL := b.problems[problemID]
	out := make([]*storage.CompetitorRecord, 0, len(byURL))
	for _, r := range byURL {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].URL < out[j].URL
	})
	return out, nil
}

func (b *memoryBackend) Upsert(ctx context.Context, records ...*storage.CompetitorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, r := range records {
		if r.ProblemID == "" || r.URL == "" {
			return fmt.Errorf("upsert: record needs problem id and url")
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, r := range records {
		byURL, ok := b.problems[r.ProblemID]
		if !ok {
			byURL = make(map[string]*storage.CompetitorRecord)
			b.problems[r.ProblemID] = byURL
		}
		byURL[r.URL] = storage.ApplyUpsert(byURL[r.URL], r)
	}
	return nil
}

func (b *memoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.problems = make(map[string]map[string]*storage.CompetitorRecord)
	return nil
}
