package analyzer

import (
	"time"

	"github.com/FranksOps/landscape/internal/storage"
)

// Merge reconciles freshly scored records with the prior snapshot for the
// same problem. Matching is by exact URL. A matched record keeps its ID and
// FirstSeenAt and carries the rating delta; an unmatched record starts a new
// lifecycle at now with an ID from newID. Prior records whose URL is absent
// from scored are not returned and therefore stay untouched in the store.
//
// A nil prior (stateless mode) makes every record new.
func Merge(problemID string, prior, scored []*storage.CompetitorRecord, now time.Time, newID func() string) []*storage.CompetitorRecord {
	byURL := make(map[string]*storage.CompetitorRecord, len(prior))
	for _, rec := range prior {
		byURL[rec.URL] = rec
	}

	out := make([]*storage.CompetitorRecord, 0, len(scored))
	for _, s := range scored {
		rec := s.Clone()
		rec.ProblemID = problemID
		rec.LastSeenAt = now

		if old, ok := byURL[rec.URL]; ok {
			prev := old.Rating
			rec.ID = old.ID
			rec.FirstSeenAt = old.FirstSeenAt
			rec.PreviousRating = &prev
			rec.RatingChange = rec.Rating - prev
			rec.IsNew = false
		} else {
			rec.ID = newID()
			rec.FirstSeenAt = now
			rec.PreviousRating = nil
			rec.RatingChange = 0
			rec.IsNew = true
		}
		out = append(out, rec)
	}
	return out
}
