// Package pipeline runs one competitive-landscape analysis: build the query,
// search, filter, rate, merge against the stored snapshot, and aggregate the
// threat verdict.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/landscape/internal/analyzer"
	"github.com/FranksOps/landscape/internal/apperr"
	"github.com/FranksOps/landscape/internal/lock"
	"github.com/FranksOps/landscape/internal/metrics"
	"github.com/FranksOps/landscape/internal/rules"
	"github.com/FranksOps/landscape/internal/serp"
	"github.com/FranksOps/landscape/internal/storage"
)

// Input is one analysis request. An empty ProblemID runs the pipeline
// statelessly. OpportunityScore is 0..100; absent means no dampening.
type Input struct {
	ProblemID        string   `json:"problemId,omitempty"`
	ProblemTitle     string   `json:"problemTitle"`
	Niche            string   `json:"niche,omitempty"`
	OpportunityScore *float64 `json:"opportunityScore,omitempty"`
}

// Result is a completed analysis. Warnings carry persistence problems that
// did not prevent the analysis itself.
type Result struct {
	Success     bool                        `json:"success"`
	Competitors []*storage.CompetitorRecord `json:"competitors"`
	ThreatLevel analyzer.ThreatAssessment   `json:"threatLevel"`
	Query       string                      `json:"query"`
	Warnings    []string                    `json:"warnings,omitempty"`

	Provider     string                `json:"-"`
	RulesVersion string                `json:"-"`
	Filter       analyzer.FilterResult `json:"-"`
	Persisted    bool                  `json:"-"`
	GeneratedAt  time.Time             `json:"-"`
}

// Config wires an Analyzer. Provider is required; everything else has a
// default. A nil Store makes every run stateless.
type Config struct {
	Provider    serp.Provider
	Store       storage.Store
	Locker      lock.Locker
	Rules       *rules.Rules
	Logger      *slog.Logger
	Now         func() time.Time
	NewID       func() string
	Concurrency int
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	provider    serp.Provider
	store       storage.Store
	locker      lock.Locker
	rules       *rules.Rules
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
	concurrency int

	filter *analyzer.Filter
	rater  *analyzer.Rater
	namer  *analyzer.Namer
	threat *analyzer.ThreatAggregator
}

func New(cfg Config) (*Analyzer, error) {
	if cfg.Provider == nil {
		return nil, apperr.Configuration("pipeline: search provider is required")
	}
	if cfg.Rules == nil {
		cfg.Rules = rules.Default()
	}
	if cfg.Locker == nil {
		cfg.Locker = lock.NewLocal()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	r := cfg.Rules
	return &Analyzer{
		provider:    cfg.Provider,
		store:       cfg.Store,
		locker:      cfg.Locker,
		rules:       r,
		logger:      cfg.Logger,
		now:         cfg.Now,
		newID:       cfg.NewID,
		concurrency: cfg.Concurrency,
		filter:      analyzer.NewFilter(r.Filter),
		rater:       analyzer.NewRater(r.Rating),
		namer:       analyzer.NewNamer(r.Naming),
		threat:      analyzer.NewThreatAggregator(r.Threat),
	}, nil
}

// Rules returns the rule set the analyzer was built with.
func (a *Analyzer) Rules() *rules.Rules { return a.rules }

// Run performs one analysis. Only invalid input, configuration problems, and
// search failures abort the run; persistence failures become warnings.
func (a *Analyzer) Run(ctx context.Context, in Input) (res *Result, err error) {
	began := time.Now()
	defer func() {
		if err != nil {
			metrics.RecordAnalysis(Outcome(err), 0, "", time.Since(began))
			return
		}
		metrics.RecordAnalysis("success", len(res.Competitors), res.ThreatLevel.Level, time.Since(began))
	}()

	opportunity, err := validate(in)
	if err != nil {
		return nil, err
	}

	problemID := strings.TrimSpace(in.ProblemID)
	log := a.logger.With("problem_id", problemID, "provider", a.provider.Name())

	query := analyzer.BuildQuery(a.rules.Query.Template, in.ProblemTitle, in.Niche, a.now().Year())
	opts := serp.Options{Limit: a.rules.Search.ResultLimit, Region: a.rules.Search.Region, Language: a.rules.Search.Language}

	raw, err := a.provider.Search(ctx, query, opts)
	if err != nil {
		log.Warn("search failed", "query", query, "error", err)
		return nil, fmt.Errorf("search: %w", err)
	}

	filtered := a.filter.Apply(raw)
	metrics.RecordRejections(rejectionLabels(filtered.Rejected))

	scored, err := a.rate(ctx, filtered.Candidates)
	if err != nil {
		return nil, err
	}

	res = &Result{
		Success:      true,
		Query:        query,
		Provider:     a.provider.Name(),
		RulesVersion: a.rules.Version,
		Filter:       filtered,
		GeneratedAt:  a.now(),
	}

	if problemID == "" || a.store == nil {
		res.Competitors = analyzer.Merge(problemID, nil, scored, res.GeneratedAt, a.newID)
	} else {
		res.Competitors, res.Persisted, res.Warnings = a.mergeAndPersist(ctx, log, problemID, scored, res.GeneratedAt)
	}
	if res.Competitors == nil {
		res.Competitors = []*storage.CompetitorRecord{}
	}

	res.ThreatLevel = a.threat.Assess(res.Competitors, opportunity)

	log.Info("analysis complete",
		"query", query,
		"raw_results", len(raw),
		"competitors", len(res.Competitors),
		"threat", res.ThreatLevel.Level,
		"threat_score", res.ThreatLevel.Score,
		"max_rating", res.ThreatLevel.MaxRating,
		"persisted", res.Persisted,
	)
	return res, nil
}

// rate scores candidates in parallel. Each goroutine writes only its own slot.
func (a *Analyzer) rate(ctx context.Context, candidates []analyzer.Candidate) ([]*storage.CompetitorRecord, error) {
	scored := make([]*storage.CompetitorRecord, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rating := a.rater.Rate(c.Title, c.Snippet, c.Position)
			scored[i] = &storage.CompetitorRecord{
				Name:        a.namer.Name(c.Domain, c.Title),
				URL:         c.URL,
				Domain:      c.BaseDomain,
				Description: c.Snippet,
				Rating:      rating.Score,
				RatingLabel: rating.Label,
				Position:    c.Position,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("rate candidates: %w", err)
	}
	return scored, nil
}

// mergeAndPersist holds the problem lock across load, merge, and upsert so
// concurrent runs for one problem apply one after another.
func (a *Analyzer) mergeAndPersist(ctx context.Context, log *slog.Logger, problemID string, scored []*storage.CompetitorRecord, now time.Time) ([]*storage.CompetitorRecord, bool, []string) {
	waitStart := time.Now()
	release, err := a.locker.Acquire(ctx, problemID)
	metrics.LockWaitSeconds.Observe(time.Since(waitStart).Seconds())
	if err != nil {
		log.Error("problem lock unavailable; results not persisted", "error", err)
		metrics.StoreErrorsTotal.WithLabelValues("lock").Inc()
		return analyzer.Merge(problemID, nil, scored, now, a.newID), false,
			[]string{"competitor history unavailable: " + err.Error()}
	}
	defer release()

	prior, err := a.store.LoadSnapshot(ctx, problemID)
	if err != nil {
		err = apperr.Persistence("load snapshot", err)
		log.Warn("prior snapshot unavailable; continuing without history", "error", err)
		metrics.StoreErrorsTotal.WithLabelValues("load").Inc()
		// Without the prior snapshot the merged deltas would be wrong, so
		// nothing is written back.
		return analyzer.Merge(problemID, nil, scored, now, a.newID), false,
			[]string{"competitor history unavailable: " + err.Error()}
	}

	merged := analyzer.Merge(problemID, prior, scored, now, a.newID)
	if len(merged) == 0 {
		return merged, true, nil
	}

	if err := a.store.Upsert(ctx, merged...); err != nil {
		err = apperr.Persistence("upsert", err)
		log.Error("failed to persist competitors", "count", len(merged), "error", err)
		metrics.StoreErrorsTotal.WithLabelValues("upsert").Inc()
		return merged, false, []string{"competitors not saved: " + err.Error()}
	}
	return merged, true, nil
}

func validate(in Input) (int, error) {
	if strings.TrimSpace(in.ProblemTitle) == "" {
		return 0, apperr.Invalid("problemTitle is required")
	}
	if in.OpportunityScore == nil {
		return 0, nil
	}
	v := *in.OpportunityScore
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, apperr.Invalid("opportunityScore must be a finite number")
	}
	return int(math.Round(math.Max(0, math.Min(100, v)))), nil
}

func rejectionLabels(in map[analyzer.RejectReason]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[string(k)] = v
	}
	return out
}

// Outcome classifies an analysis error for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperr.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, apperr.ErrConfiguration):
		return "configuration"
	case errors.Is(err, apperr.ErrUpstream):
		return "upstream"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
