package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landscape_analyses_total",
			Help: "Total number of analyses by outcome",
		},
		[]string{"outcome"},
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "landscape_analysis_duration_seconds",
			Help:    "End-to-end duration of an analysis in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landscape_search_requests_total",
			Help: "Total number of search provider calls",
		},
		[]string{"provider", "status"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "landscape_search_duration_seconds",
			Help:    "Duration of search provider calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider"},
	)

	CandidatesRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landscape_candidates_rejected_total",
			Help: "Raw search results dropped by the candidate filter",
		},
		[]string{"reason"},
	)

	CompetitorsPerRun = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "landscape_competitors_per_run",
			Help:    "Number of competitors returned per analysis",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 6, 7, 8},
		},
	)

	ThreatLevelsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landscape_threat_levels_total",
			Help: "Threat verdicts issued by level",
		},
		[]string{"level"},
	)

	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landscape_store_errors_total",
			Help: "Competitor store failures by operation",
		},
		[]string{"op"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landscape_search_cache_lookups_total",
			Help: "Search cache lookups by result",
		},
		[]string{"result"},
	)

	LockWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "landscape_problem_lock_wait_seconds",
			Help:    "Time spent waiting for the per-problem merge lock",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
)

// RecordSearch counts one provider call. status is the HTTP status text or
// "error" when no response arrived.
func RecordSearch(provider, status string, d time.Duration) {
	SearchRequestsTotal.WithLabelValues(provider, status).Inc()
	SearchDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordRejections adds the filter's per-reason rejection counts.
func RecordRejections(byReason map[string]int) {
	for reason, n := range byReason {
		if n > 0 {
			CandidatesRejectedTotal.WithLabelValues(reason).Add(float64(n))
		}
	}
}

// RecordAnalysis records a finished analysis.
func RecordAnalysis(outcome string, competitors int, threatLevel string, d time.Duration) {
	AnalysesTotal.WithLabelValues(outcome).Inc()
	AnalysisDuration.Observe(d.Seconds())
	if outcome == "success" {
		CompetitorsPerRun.Observe(float64(competitors))
		ThreatLevelsTotal.WithLabelValues(threatLevel).Inc()
	}
}

// Handler serves the default registry for mounting on another router.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server encapsulates a standalone HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on addr and exposes /metrics.
func Start(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
