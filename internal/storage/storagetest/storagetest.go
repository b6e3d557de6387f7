// Package storagetest is a conformance suite every storage.Store backend runs.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/FranksOps/landscape/internal/storage"
	"github.com/google/uuid"
)

// Run exercises the upsert and snapshot contract against a fresh store.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Helper()

	t.Run("EmptySnapshot", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		got, err := s.LoadSnapshot(context.Background(), "missing")
		if err != nil {
			t.Fatalf("load empty snapshot: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected empty snapshot, got %d records", len(got))
		}
	})

	t.Run("InsertAndLoad", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

		recs := []*storage.CompetitorRecord{
			record("p1", "https://acme.io/", 1, 72, now),
			record("p1", "https://bolt.app/", 2, 45, now),
		}
		if err := s.Upsert(ctx, recs...); err != nil {
			t.Fatalf("upsert: %v", err)
		}

		got, err := s.LoadSnapshot(ctx, "p1")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 records, got %d", len(got))
		}
		first := got[0]
		if first.URL != "https://acme.io/" || first.ID != recs[0].ID {
			t.Errorf("expected acme first with id %s, got %s (%s)", recs[0].ID, first.URL, first.ID)
		}
		if first.Name != "Acme" || first.Description != "Acme does things" {
			t.Errorf("unexpected name/description: %q / %q", first.Name, first.Description)
		}
		if first.Rating != 72 || first.RatingLabel != "Established" || first.Position != 1 {
			t.Errorf("unexpected rating fields: %+v", first)
		}
		if first.PreviousRating != nil {
			t.Errorf("expected nil previous rating, got %d", *first.PreviousRating)
		}
		if !first.FirstSeenAt.Equal(now) || !first.LastSeenAt.Equal(now) {
			t.Errorf("expected timestamps %v, got first=%v last=%v", now, first.FirstSeenAt, first.LastSeenAt)
		}
	})

	t.Run("UpsertKeepsIdentityAndFirstSeen", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()
		t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		t1 := t0.Add(24 * time.Hour)

		orig := record("p1", "https://acme.io/", 1, 50, t0)
		if err := s.Upsert(ctx, orig); err != nil {
			t.Fatalf("first upsert: %v", err)
		}

		// A retried write arrives with a fresh id and a later firstSeenAt.
		prev := 50
		next := record("p1", "https://acme.io/", 3, 65, t1)
		next.PreviousRating = &prev
		next.RatingChange = 15
		if err := s.Upsert(ctx, next); err != nil {
			t.Fatalf("second upsert: %v", err)
		}
		if err := s.Upsert(ctx, next); err != nil {
			t.Fatalf("repeated upsert: %v", err)
		}

		got, err := s.LoadSnapshot(ctx, "p1")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 record after upserts, got %d", len(got))
		}
		r := got[0]
		if r.ID != orig.ID {
			t.Errorf("expected id %s to be kept, got %s", orig.ID, r.ID)
		}
		if !r.FirstSeenAt.Equal(t0) {
			t.Errorf("expected firstSeenAt %v to be kept, got %v", t0, r.FirstSeenAt)
		}
		if !r.LastSeenAt.Equal(t1) {
			t.Errorf("expected lastSeenAt %v, got %v", t1, r.LastSeenAt)
		}
		if r.Rating != 65 || r.Position != 3 || r.RatingChange != 15 {
			t.Errorf("expected updated rating fields, got %+v", r)
		}
		if r.PreviousRating == nil || *r.PreviousRating != 50 {
			t.Errorf("expected previous rating 50, got %v", r.PreviousRating)
		}
	})

	t.Run("ProblemsAreIsolated", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

		if err := s.Upsert(ctx,
			record("p1", "https://acme.io/", 1, 50, now),
			record("p2", "https://acme.io/", 1, 80, now),
		); err != nil {
			t.Fatalf("upsert: %v", err)
		}

		p1, err := s.LoadSnapshot(ctx, "p1")
		if err != nil {
			t.Fatalf("load p1: %v", err)
		}
		p2, err := s.LoadSnapshot(ctx, "p2")
		if err != nil {
			t.Fatalf("load p2: %v", err)
		}
		if len(p1) != 1 || len(p2) != 1 {
			t.Fatalf("expected one record per problem, got %d and %d", len(p1), len(p2))
		}
		if p1[0].Rating != 50 || p2[0].Rating != 80 {
			t.Errorf("ratings leaked across problems: p1=%d p2=%d", p1[0].Rating, p2[0].Rating)
		}
	})

	t.Run("AbsentRecordsAreUntouched", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()
		t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

		if err := s.Upsert(ctx,
			record("p1", "https://acme.io/", 1, 50, t0),
			record("p1", "https://old.dev/", 2, 40, t0),
		); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := s.Upsert(ctx, record("p1", "https://acme.io/", 1, 55, t0.Add(time.Hour))); err != nil {
			t.Fatalf("second upsert: %v", err)
		}

		got, err := s.LoadSnapshot(ctx, "p1")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 records, got %d", len(got))
		}
		for _, r := range got {
			if r.URL == "https://old.dev/" && (r.Rating != 40 || !r.LastSeenAt.Equal(t0)) {
				t.Errorf("absent record was modified: %+v", r)
			}
		}
	})
}

func record(problemID, url string, position, rating int, seen time.Time) *storage.CompetitorRecord {
	names := map[string]string{
		"https://acme.io/":  "Acme",
		"https://bolt.app/": "Bolt",
		"https://old.dev/":  "Old",
	}
	return &storage.CompetitorRecord{
		ID:          uuid.NewString(),
		ProblemID:   problemID,
		Name:        names[url],
		URL:         url,
		Description: names[url] + " does things",
		Rating:      rating,
		RatingLabel: labelFor(rating),
		Position:    position,
		FirstSeenAt: seen,
		LastSeenAt:  seen,
		IsNew:       true,
	}
}

func labelFor(rating int) string {
	switch {
	case rating >= 80:
		return "MajorPlayer"
	case rating >= 60:
		return "Established"
	case rating >= 40:
		return "Growing"
	default:
		return "Emerging"
	}
}
