package serp

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/FranksOps/landscape/internal/apperr"
	"github.com/FranksOps/landscape/internal/metrics"
)

type instrumented struct {
	Provider
}

// Instrument records request counts and latency for p.
func Instrument(p Provider) Provider {
	return instrumented{Provider: p}
}

func (i instrumented) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	start := time.Now()
	results, err := i.Provider.Search(ctx, query, opts)
	metrics.RecordSearch(i.Name(), searchStatus(err), time.Since(start))
	return results, err
}

func searchStatus(err error) string {
	var upstream *apperr.UpstreamError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &upstream):
		return strconv.Itoa(upstream.StatusCode)
	case errors.Is(err, apperr.ErrConfiguration):
		return "config"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
