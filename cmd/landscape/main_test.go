package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/FranksOps/landscape/internal/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// fakeSerper serves a fixed organic result set and counts requests.
func fakeSerper(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("X-API-KEY") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"organic":[
			{"title":"Chorely - Chore app for families","link":"https://www.chorely.com/","snippet":"Trusted by 2 million families"},
			{"title":"Chore chart - Wikipedia","link":"https://en.wikipedia.org/wiki/Chore_chart","snippet":"A chore chart app"}
		]}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func useSerper(t *testing.T, endpoint, key string) {
	t.Helper()
	t.Setenv("SERPER_API_KEY", "")
	t.Setenv("LANDSCAPE_SEARCH_SERPER_ENDPOINT", endpoint)
	t.Setenv("LANDSCAPE_SEARCH_SERPER_API_KEY", key)
	t.Setenv("LANDSCAPE_SEARCH_RATE_LIMIT", "0")
}

func TestRulesCommand(t *testing.T) {
	out, err := run(t, "rules")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "rules version 2025.2 (embedded defaults)") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "rating categories:  9") {
		t.Errorf("expected category count in output:\n%s", out)
	}
}

func TestRulesCommand_Dump(t *testing.T) {
	out, err := run(t, "rules", "--dump")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"2025.2", "best {subject} apps {year}", "major_player_rating: 80"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected dump to contain %q", want)
		}
	}
}

func TestAnalyzeCommand_CSV(t *testing.T) {
	srv, calls := fakeSerper(t)
	useSerper(t, srv.URL, "test-key")

	out, err := run(t, "analyze", "--format", "csv", "Chore", "tracking")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected one search request, got %d", calls.Load())
	}

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v\n%s", err, out)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header and one competitor, got %d rows", len(rows))
	}
	if rows[1][3] != "Chorely" || rows[1][4] != "https://www.chorely.com/" {
		t.Errorf("unexpected competitor row %v", rows[1])
	}
}

func TestAnalyzeCommand_PersistsAcrossRuns(t *testing.T) {
	srv, _ := fakeSerper(t)
	useSerper(t, srv.URL, "test-key")
	dsn := "json://" + filepath.Join(t.TempDir(), "competitors.jsonl")

	decode := func(out string) map[string]any {
		t.Helper()
		var body struct {
			Competitors []map[string]any `json:"competitors"`
		}
		if err := json.Unmarshal([]byte(out), &body); err != nil {
			t.Fatalf("decode: %v\n%s", err, out)
		}
		if len(body.Competitors) != 1 {
			t.Fatalf("expected one competitor, got %d", len(body.Competitors))
		}
		return body.Competitors[0]
	}

	out, err := run(t, "analyze", "--store", dsn, "--problem-id", "p1", "Chore tracking")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := decode(out)
	if first["isNew"] != true {
		t.Errorf("expected first sighting to be new, got %v", first["isNew"])
	}

	out, err = run(t, "analyze", "--store", dsn, "--problem-id", "p1", "Chore tracking")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	second := decode(out)
	if second["isNew"] != false || second["id"] != first["id"] {
		t.Errorf("expected the stored record to be matched, got %v", second)
	}
	if second["previousRating"] != first["rating"] {
		t.Errorf("expected previousRating %v, got %v", first["rating"], second["previousRating"])
	}
}

func TestAnalyzeCommand_MissingKey(t *testing.T) {
	srv, calls := fakeSerper(t)
	useSerper(t, srv.URL, "")

	_, err := run(t, "analyze", "Chore tracking")
	if err == nil || !strings.Contains(err.Error(), "API key") {
		t.Fatalf("expected missing key error, got %v", err)
	}
	if calls.Load() != 0 {
		t.Error("expected no request without a key")
	}
}

func TestAnalyzeCommand_RequiresTitle(t *testing.T) {
	if _, err := run(t, "analyze"); err == nil {
		t.Fatal("expected an argument error")
	}
}

func TestAnalyzeCommand_BadFormat(t *testing.T) {
	srv, _ := fakeSerper(t)
	useSerper(t, srv.URL, "test-key")

	if _, err := run(t, "analyze", "--format", "pdf", "Chore tracking"); err == nil {
		t.Fatal("expected unknown format error")
	}
}

func TestBuildProvider(t *testing.T) {
	base := config.SearchConfig{Provider: "duckduckgo", Fingerprint: "chrome", UserAgentStrategy: "random", Timeout: 1}

	p, err := buildProvider(base, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "duckduckgo" {
		t.Errorf("expected duckduckgo, got %q", p.Name())
	}

	bad := base
	bad.Fingerprint = "netscape"
	if _, err := buildProvider(bad, nil, nil); err == nil {
		t.Error("expected unknown fingerprint to fail")
	}

	bad = base
	bad.UserAgentStrategy = "roundrobin"
	if _, err := buildProvider(bad, nil, nil); err == nil {
		t.Error("expected unknown user agent strategy to fail")
	}

	bad = base
	bad.Proxies = []string{"http://"}
	if _, err := buildProvider(bad, nil, nil); err == nil {
		t.Error("expected a proxy without host to fail")
	}
}
