package serp

import "context"

// Result is one organic web result in provider order.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	// Rank is the 1-based position the provider returned the result at.
	Rank int `json:"rank"`
}

// Options pins the request shape so repeated runs see comparable rankings.
type Options struct {
	Limit    int
	Region   string
	Language string
}

// Provider abstracts a search engine that returns ranked web results for a
// query. Implementations perform exactly one outbound request per call, never
// retry internally, and treat zero results as a normal empty response.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// renumber assigns Rank 1..n in slice order and trims the slice to limit.
func renumber(results []Result, limit int) []Result {
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
