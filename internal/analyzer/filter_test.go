package analyzer

import (
	"fmt"
	"testing"

	"github.com/FranksOps/landscape/internal/rules"
	"github.com/FranksOps/landscape/internal/serp"
)

func defaultFilter(t *testing.T) *Filter {
	t.Helper()
	return NewFilter(rules.Default().Filter)
}

func ranked(results ...serp.Result) []serp.Result {
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

func TestFilter_DenylistAndDedupScenario(t *testing.T) {
	raw := ranked(
		serp.Result{Title: "Choreo - Family chore app", URL: "https://www.choreo.com/", Snippet: "Download the app"},
		serp.Result{Title: "10 best chore apps", URL: "https://www.nytimes.com/wirecutter/chores", Snippet: "Our app picks"},
		serp.Result{Title: "Tody app", URL: "https://todyapp.com", Snippet: "Cleaning app for iOS"},
		serp.Result{Title: "Chore apps thread", URL: "https://www.reddit.com/r/productivity/x", Snippet: "which app do you use"},
		serp.Result{Title: "Choreo pricing", URL: "https://app.choreo.com/pricing", Snippet: "Plans and pricing"},
		serp.Result{Title: "OurHome", URL: "https://ourhomeapp.com", Snippet: "Free family app"},
		serp.Result{Title: "Best chore app?", URL: "https://www.quora.com/best-chore-app", Snippet: "An app question"},
		serp.Result{Title: "Sweepy", URL: "https://sweepy.app", Snippet: "Sign up for a cleaning schedule"},
		serp.Result{Title: "Tody on Android", URL: "https://blog.todyapp.com/android", Snippet: "Get the app"},
		serp.Result{Title: "Cozi Family Organizer", URL: "https://www.cozi.com", Snippet: "Free download for families"},
	)

	got := defaultFilter(t).Apply(raw)

	if len(got.Candidates) != 5 {
		t.Fatalf("expected 5 candidates, got %d: %+v", len(got.Candidates), got.Candidates)
	}
	wantURLs := []string{
		"https://www.choreo.com/",
		"https://todyapp.com",
		"https://ourhomeapp.com",
		"https://sweepy.app",
		"https://www.cozi.com",
	}
	for i, c := range got.Candidates {
		if c.Position != i+1 {
			t.Errorf("candidate %d: expected position %d, got %d", i, i+1, c.Position)
		}
		if c.URL != wantURLs[i] {
			t.Errorf("candidate %d: expected %s, got %s", i, wantURLs[i], c.URL)
		}
	}
	if got.Rejected[RejectDenylisted] != 3 {
		t.Errorf("expected 3 denylisted, got %d", got.Rejected[RejectDenylisted])
	}
	if got.Rejected[RejectDuplicate] != 2 {
		t.Errorf("expected 2 duplicates, got %d", got.Rejected[RejectDuplicate])
	}
	if got.Candidates[0].Rank != 1 || got.Candidates[4].Rank != 10 {
		t.Errorf("provider ranks not preserved: %d, %d", got.Candidates[0].Rank, got.Candidates[4].Rank)
	}
}

func TestFilter_CapAndUniqueBaseDomains(t *testing.T) {
	var raw []serp.Result
	for i := 0; i < 15; i++ {
		raw = append(raw, serp.Result{
			Title:   fmt.Sprintf("Product %d", i),
			URL:     fmt.Sprintf("https://product%d.io/", i),
			Snippet: "platform pricing",
		})
	}
	got := defaultFilter(t).Apply(ranked(raw...))

	if len(got.Candidates) != 8 {
		t.Fatalf("expected cap of 8, got %d", len(got.Candidates))
	}
	if got.Skipped != 7 {
		t.Errorf("expected 7 skipped, got %d", got.Skipped)
	}
	seen := map[string]bool{}
	for _, c := range got.Candidates {
		if seen[c.BaseDomain] {
			t.Errorf("duplicate base domain %s", c.BaseDomain)
		}
		seen[c.BaseDomain] = true
	}
}

func TestFilter_SkipsBadURLsAndNonProducts(t *testing.T) {
	raw := ranked(
		serp.Result{Title: "broken app", URL: "://nope"},
		serp.Result{Title: "ftp app", URL: "ftp://files.example.com/app"},
		serp.Result{Title: "relative app", URL: "/just/a/path"},
		serp.Result{Title: "Gardening tips", URL: "https://gardenblog.net/tips", Snippet: "How to grow tomatoes"},
		serp.Result{Title: "City services", URL: "https://portal.city.gov/app", Snippet: "apply online"},
		serp.Result{Title: "Charity", URL: "https://helpers.org", Snippet: "volunteer platform"},
		serp.Result{Title: "Real product", URL: "HTTPS://WWW.Real-Product.COM/Pricing", Snippet: "see pricing"},
	)

	got := defaultFilter(t).Apply(raw)

	if len(got.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %+v", got.Candidates)
	}
	c := got.Candidates[0]
	if c.Domain != "real-product.com" || c.BaseDomain != "real-product.com" || c.Position != 1 {
		t.Errorf("unexpected candidate %+v", c)
	}
	if got.Rejected[RejectUnparsable] != 3 {
		t.Errorf("expected 3 unparsable, got %d", got.Rejected[RejectUnparsable])
	}
	if got.Rejected[RejectNoSignal] != 1 {
		t.Errorf("expected 1 without signal, got %d", got.Rejected[RejectNoSignal])
	}
	if got.Rejected[RejectDenylisted] != 2 {
		t.Errorf("expected 2 denylisted, got %d", got.Rejected[RejectDenylisted])
	}
}

func TestFilter_Empty(t *testing.T) {
	got := defaultFilter(t).Apply(nil)
	if len(got.Candidates) != 0 || got.Skipped != 0 {
		t.Errorf("expected empty result, got %+v", got)
	}
}

func TestFilter_DedupIsFirstSeenWins(t *testing.T) {
	raw := ranked(
		serp.Result{Title: "Acme app", URL: "https://docs.acme.com/app"},
		serp.Result{Title: "Acme app home", URL: "https://acme.com"},
	)
	got := defaultFilter(t).Apply(raw)
	if len(got.Candidates) != 1 || got.Candidates[0].URL != "https://docs.acme.com/app" {
		t.Errorf("expected first occurrence to win, got %+v", got.Candidates)
	}
}

func TestSplitDomain(t *testing.T) {
	cases := []struct {
		in, domain, base string
		ok               bool
	}{
		{"https://www.example.com/a", "example.com", "example.com", true},
		{"http://sub.example.com", "sub.example.com", "example.com", true},
		{"https://localhost:8080/", "localhost", "localhost", true},
		{"https://EXAMPLE.com.", "example.com", "example.com", true},
		{"mailto:someone@example.com", "", "", false},
		{"https:///nohost", "", "", false},
	}
	for _, c := range cases {
		domain, base, ok := SplitDomain(c.in)
		if domain != c.domain || base != c.base || ok != c.ok {
			t.Errorf("SplitDomain(%q) = (%q, %q, %v), want (%q, %q, %v)", c.in, domain, base, ok, c.domain, c.base, c.ok)
		}
	}
}
