package analyzer

import (
	"net/url"
	"strings"

	"github.com/FranksOps/landscape/internal/rules"
	"github.com/FranksOps/landscape/internal/serp"
)

// Candidate is a raw result that survived filtering.
type Candidate struct {
	Title      string
	URL        string
	Snippet    string
	Domain     string // host without www.
	BaseDomain string // last two labels of Domain
	Rank       int    // provider rank
	Position   int    // 1-based acceptance order
}

// RejectReason names why the filter dropped a raw result.
type RejectReason string

const (
	RejectUnparsable RejectReason = "unparsable_url"
	RejectDenylisted RejectReason = "denylisted"
	RejectDuplicate  RejectReason = "duplicate_domain"
	RejectNoSignal   RejectReason = "no_product_signal"
)

// FilterResult is the outcome of one filter pass.
type FilterResult struct {
	Candidates []Candidate
	Rejected   map[RejectReason]int
	// Skipped counts raw results never examined because the cap was reached.
	Skipped int
}

// Filter reduces ranked results to plausible competing products.
type Filter struct {
	max          int
	denyContains *KeywordSet
	denySuffixes []string
	signals      *KeywordSet
}

// NewFilter compiles the filter tables.
func NewFilter(r rules.FilterRules) *Filter {
	return &Filter{
		max:          r.MaxCandidates,
		denyContains: NewKeywordSet(r.DenyContains),
		denySuffixes: r.DenySuffixes,
		signals:      NewKeywordSet(r.Signals),
	}
}

// filterState is the fold accumulator. seen holds base domains already
// accepted in this pass, which is what makes the dedup first-seen-wins.
type filterState struct {
	accepted []Candidate
	seen     map[string]struct{}
	rejected map[RejectReason]int
}

// Apply folds step over results in provider order and stops at the cap.
func (f *Filter) Apply(results []serp.Result) FilterResult {
	st := filterState{
		accepted: make([]Candidate, 0, f.max),
		seen:     make(map[string]struct{}, f.max),
		rejected: make(map[RejectReason]int),
	}

	skipped := 0
	for i, r := range results {
		if len(st.accepted) >= f.max {
			skipped = len(results) - i
			break
		}
		st = f.step(st, r)
	}

	return FilterResult{Candidates: st.accepted, Rejected: st.rejected, Skipped: skipped}
}

func (f *Filter) step(st filterState, r serp.Result) filterState {
	domain, base, ok := SplitDomain(r.URL)
	if !ok {
		st.rejected[RejectUnparsable]++
		return st
	}
	if f.denied(domain) {
		st.rejected[RejectDenylisted]++
		return st
	}
	if _, dup := st.seen[base]; dup {
		st.rejected[RejectDuplicate]++
		return st
	}
	if !f.signals.Contains(r.Title + " " + r.Snippet + " " + r.URL) {
		st.rejected[RejectNoSignal]++
		return st
	}

	st.seen[base] = struct{}{}
	st.accepted = append(st.accepted, Candidate{
		Title:      strings.TrimSpace(r.Title),
		URL:        r.URL,
		Snippet:    strings.TrimSpace(r.Snippet),
		Domain:     domain,
		BaseDomain: base,
		Rank:       r.Rank,
		Position:   len(st.accepted) + 1,
	})
	return st
}

func (f *Filter) denied(domain string) bool {
	if f.denyContains.Contains(domain) {
		return true
	}
	for _, suffix := range f.denySuffixes {
		if strings.HasSuffix(domain, suffix) {
			return true
		}
	}
	return false
}

// SplitDomain returns the lowercased host with any www. prefix removed and its
// base domain (last two labels). Only absolute http(s) URLs are accepted.
func SplitDomain(raw string) (domain, base string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", false
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return "", "", false
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", "", false
	}
	domain = strings.TrimPrefix(host, "www.")

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return domain, domain, true
	}
	return domain, strings.Join(labels[len(labels)-2:], "."), true
}
