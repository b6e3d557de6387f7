package analyzer

import (
	"math"

	"github.com/FranksOps/landscape/internal/rules"
	"github.com/FranksOps/landscape/internal/storage"
)

// ThreatAssessment is the market-level verdict for one run.
type ThreatAssessment struct {
	Level       string `json:"level"`
	Score       int    `json:"score"`
	Description string `json:"description"`
	// MaxRating is the strongest competitor's rating. It is reported for
	// diagnostics and does not feed Score.
	MaxRating int `json:"-"`
}

// ThreatAggregator reduces a competitor snapshot and the problem's
// opportunity score to a ThreatAssessment.
type ThreatAggregator struct {
	rules rules.ThreatRules
}

func NewThreatAggregator(r rules.ThreatRules) *ThreatAggregator {
	return &ThreatAggregator{rules: r}
}

// Assess is pure: the same records and opportunity score always yield the
// same verdict. opportunity is clamped to [0, 100]; a higher opportunity
// never raises the score.
func (a *ThreatAggregator) Assess(records []*storage.CompetitorRecord, opportunity int) ThreatAssessment {
	tr := a.rules
	if len(records) == 0 {
		return ThreatAssessment{Level: tr.Empty.Level, Score: tr.Empty.Score, Description: tr.Empty.Description}
	}

	var sum, majors, maxRating int
	for _, rec := range records {
		sum += rec.Rating
		if rec.Rating >= tr.MajorPlayerRating {
			majors++
		}
		if rec.Rating > maxRating {
			maxRating = rec.Rating
		}
	}
	avg := float64(sum) / float64(len(records))

	raw := avg*tr.AverageWeight + float64(majors)*tr.MajorPlayerWeight
	dampened := raw * (1 - float64(clamp(opportunity, 0, 100))/tr.OpportunityDivisor)
	score := int(math.Round(math.Max(float64(tr.Min), math.Min(float64(tr.Max), dampened))))

	lvl := a.level(score)
	return ThreatAssessment{Level: lvl.Level, Score: score, Description: lvl.Description, MaxRating: maxRating}
}

func (a *ThreatAggregator) level(score int) rules.LevelTier {
	for _, l := range a.rules.Levels {
		if score >= l.Min {
			return l
		}
	}
	return a.rules.Levels[len(a.rules.Levels)-1]
}
