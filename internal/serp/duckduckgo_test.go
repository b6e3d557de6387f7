package serp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/FranksOps/landscape/internal/apperr"
)

const ddgPage = `<html><body>
<div class="results">
  <div class="result results_links result--ad">
    <a class="result__a" href="https://ads.example.com/click">Sponsored app</a>
    <a class="result__snippet">Ad copy</a>
  </div>
  <div class="result results_links">
    <h2 class="result__title">
      <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.chorely.com%2F&amp;rut=abc">Chorely -
        Family chore app</a>
    </h2>
    <a class="result__snippet" href="#">Download the <b>app</b> free.</a>
  </div>
  <div class="result results_links">
    <a class="result__a" href="https://todyapp.com/">Tody</a>
    <a class="result__snippet">Smart cleaning app</a>
  </div>
  <div class="result results_links">
    <a class="result__a" href="javascript:void(0)">Broken</a>
  </div>
</div>
</body></html>`

func TestDuckDuckGo_Search(t *testing.T) {
	var gotQuery, gotRegion string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotRegion = r.URL.Query().Get("kl")
		_, _ = w.Write([]byte(ddgPage))
	}))
	defer ts.Close()

	p, err := NewDuckDuckGo(DuckDuckGoConfig{Endpoint: ts.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := p.Search(context.Background(), "best chore apps", Options{Limit: 15, Region: "us", Language: "en"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotQuery != "best chore apps" || gotRegion != "us-en" {
		t.Errorf("unexpected query params q=%q kl=%q", gotQuery, gotRegion)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 organic results, got %d: %+v", len(results), results)
	}
	first := results[0]
	if first.URL != "https://www.chorely.com/" {
		t.Errorf("expected redirect to be unwrapped, got %s", first.URL)
	}
	if first.Title != "Chorely - Family chore app" || first.Snippet != "Download the app free." {
		t.Errorf("unexpected text %+v", first)
	}
	if first.Rank != 1 || results[1].Rank != 2 {
		t.Errorf("unexpected ranks %d, %d", first.Rank, results[1].Rank)
	}
}

func TestDuckDuckGo_BlockedPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`<div class="anomaly-modal__title">Unfortunately, bots use DuckDuckGo too.</div>`))
	}))
	defer ts.Close()

	p, _ := NewDuckDuckGo(DuckDuckGoConfig{Endpoint: ts.URL})
	_, err := p.Search(context.Background(), "q", Options{})

	var upstream *apperr.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.StatusCode != http.StatusAccepted || !strings.Contains(upstream.Message, "DuckDuckGo") {
		t.Errorf("unexpected upstream error %+v", upstream)
	}
	if errors.Is(err, apperr.ErrConfiguration) {
		t.Error("a blocked page is not a configuration problem")
	}
}

func TestDuckDuckGo_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusForbidden)
	}))
	defer ts.Close()

	p, _ := NewDuckDuckGo(DuckDuckGoConfig{Endpoint: ts.URL})
	_, err := p.Search(context.Background(), "q", Options{})
	if !errors.Is(err, apperr.ErrUpstream) || errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("expected plain upstream error, got %v", err)
	}
	if !strings.Contains(err.Error(), "overloaded") {
		t.Errorf("expected body in message, got %v", err)
	}
}

func TestDuckDuckGo_NoResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<div class="no-results">No results.</div>`))
	}))
	defer ts.Close()

	p, _ := NewDuckDuckGo(DuckDuckGoConfig{Endpoint: ts.URL})
	results, err := p.Search(context.Background(), "q", Options{})
	if err != nil || len(results) != 0 {
		t.Errorf("expected empty success, got %v, %v", results, err)
	}
}

func TestResolveRedirect(t *testing.T) {
	cases := map[string]string{
		"//duckduckgo.com/l/?uddg=https%3A%2F%2Fa.com%2Fx%3Fy%3D1": "https://a.com/x?y=1",
		"https://duckduckgo.com/l/?rut=x":                          "",
		"https://b.io/":                                            "https://b.io/",
		"mailto:x@y.z":                                             "",
	}
	for in, want := range cases {
		if got := resolveRedirect(in); got != want {
			t.Errorf("resolveRedirect(%q) = %q, want %q", in, got, want)
		}
	}
}
