package jsonbackend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/landscape/internal/storage"
	"github.com/FranksOps/landscape/internal/storage/storagetest"
)

func TestJSONBackend(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		b, err := New(filepath.Join(t.TempDir(), "landscape.jsonl"))
		if err != nil {
			t.Fatalf("Failed to create JSON backend: %v", err)
		}
		return b
	})
}

func TestJSONBackend_ReplayAfterReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "landscape.jsonl")
	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	b, err := New(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	first := &storage.CompetitorRecord{ID: "orig", ProblemID: "p1", URL: "https://acme.io/", Rating: 50, FirstSeenAt: t0, LastSeenAt: t0}
	if err := b.Upsert(ctx, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second := &storage.CompetitorRecord{ID: "retry", ProblemID: "p1", URL: "https://acme.io/", Rating: 70, FirstSeenAt: t0.Add(time.Hour), LastSeenAt: t0.Add(time.Hour)}
	if err := b.Upsert(ctx, second); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 2 {
		t.Errorf("expected 2 log lines, got %d", lines)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.LoadSnapshot(ctx, "p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record after replay, got %d", len(got))
	}
	if got[0].ID != "orig" || !got[0].FirstSeenAt.Equal(t0) || got[0].Rating != 70 {
		t.Errorf("replay did not keep identity or apply update: %+v", got[0])
	}
}

func TestJSONBackend_CorruptLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "landscape.jsonl")
	if err := os.WriteFile(path, []byte("{not json}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(path); err == nil {
		t.Fatal("expected replay error for corrupt log")
	}
}
