package storage

import (
	"context"
	"time"
)

// CompetitorRecord is one competitor observed for a problem. Identity within
// a problem's snapshot is the URL; ID is the surrogate key kept across runs.
type CompetitorRecord struct {
	ID             string    `json:"id"`
	ProblemID      string    `json:"problemId"`
	Name           string    `json:"name"`
	URL            string    `json:"url"`
	Domain         string    `json:"-"` // base domain, used for dedup only
	Description    string    `json:"description"`
	Rating         int       `json:"rating"`
	RatingLabel    string    `json:"ratingLabel"`
	Position       int       `json:"position"`
	PreviousRating *int      `json:"previousRating"`
	RatingChange   int       `json:"ratingChange"`
	FirstSeenAt    time.Time `json:"firstSeenAt"`
	LastSeenAt     time.Time `json:"lastSeenAt"`
	IsNew          bool      `json:"isNew"`
}

// Store is the narrow contract the analyzer needs for a problem's competitor
// snapshot. Implementations never delete records.
type Store interface {
	// LoadSnapshot returns every record stored for problemID, in position order.
	LoadSnapshot(ctx context.Context, problemID string) ([]*CompetitorRecord, error)
	// Upsert writes all records as one unit, keyed by (ProblemID, URL).
	// An existing record keeps its ID and FirstSeenAt.
	Upsert(ctx context.Context, records ...*CompetitorRecord) error
	Close() error
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (r *CompetitorRecord) Clone() *CompetitorRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.PreviousRating != nil {
		v := *r.PreviousRating
		c.PreviousRating = &v
	}
	return &c
}

// ApplyUpsert resolves an incoming write against the stored record for the
// same (ProblemID, URL). The stored ID and FirstSeenAt always win.
func ApplyUpsert(existing, incoming *CompetitorRecord) *CompetitorRecord {
	out := incoming.Clone()
	out.IsNew = false
	if existing == nil {
		return out
	}
	out.ID = existing.ID
	out.FirstSeenAt = existing.FirstSeenAt
	return out
}
