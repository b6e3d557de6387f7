package analyzer

import "github.com/FranksOps/landscape/internal/rules"

// Rating is the outcome of scoring one candidate.
type Rating struct {
	Score int
	Label string
	// Matched lists the keyword categories that contributed, in table order.
	Matched []string
}

type category struct {
	name     string
	points   int
	keywords *KeywordSet
}

// Rater scores candidates from rank and title/snippet keywords. A Rater is
// immutable after construction and safe for concurrent use.
type Rater struct {
	min, max        int
	tiers           []rules.PositionTier
	positionDefault int
	categories      []category
	labels          []rules.LabelTier
}

// NewRater compiles the rating tables. Tiers must already be sorted, which
// rules.Parse guarantees.
func NewRater(r rules.RatingRules) *Rater {
	cats := make([]category, 0, len(r.Categories))
	for _, c := range r.Categories {
		cats = append(cats, category{name: c.Name, points: c.Points, keywords: NewKeywordSet(c.Keywords)})
	}
	return &Rater{
		min:             r.Min,
		max:             r.Max,
		tiers:           r.PositionTiers,
		positionDefault: r.PositionDefault,
		categories:      cats,
		labels:          r.Labels,
	}
}

// Rate scores a candidate at its final 1-based position. Each category adds
// its points at most once however many of its keywords appear.
func (r *Rater) Rate(title, snippet string, position int) Rating {
	score := r.positionPoints(position)

	text := title + " " + snippet
	var matched []string
	for _, c := range r.categories {
		if c.keywords.Contains(text) {
			score += c.points
			matched = append(matched, c.name)
		}
	}

	score = clamp(score, r.min, r.max)
	return Rating{Score: score, Label: r.LabelFor(score), Matched: matched}
}

// LabelFor maps a rating to its label. It is the only place labels come from.
func (r *Rater) LabelFor(score int) string {
	for _, t := range r.labels {
		if score >= t.Min {
			return t.Label
		}
	}
	if n := len(r.labels); n > 0 {
		return r.labels[n-1].Label
	}
	return ""
}

func (r *Rater) positionPoints(position int) int {
	for _, t := range r.tiers {
		if position <= t.MaxPosition {
			return t.Points
		}
	}
	return r.positionDefault
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
