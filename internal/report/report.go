package report

import (
	"encoding/json"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/FranksOps/landscape/internal/analyzer"
	"github.com/FranksOps/landscape/internal/pipeline"
	"github.com/FranksOps/landscape/internal/storage"
)

// ErrUnknownFormat is returned by Write for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown report format")

// Formats lists the names Write accepts.
var Formats = []string{"json", "text", "html", "csv"}

// Summary contains aggregated facts about one analysis.
type Summary struct {
	Query        string
	Provider     string
	RulesVersion string
	GeneratedAt  time.Time
	Threat       analyzer.ThreatAssessment
	Competitors  []*storage.CompetitorRecord

	NewCompetitors int
	Rising         int
	Falling        int
	LabelCounts    map[string]int
	Rejected       map[string]int
	Skipped        int
	Persisted      bool
	Warnings       []string
}

// GenerateSummary processes an analysis result into report form.
func GenerateSummary(res *pipeline.Result) Summary {
	s := Summary{
		LabelCounts: make(map[string]int),
		Rejected:    make(map[string]int),
	}
	if res == nil {
		return s
	}

	s.Query = res.Query
	s.Provider = res.Provider
	s.RulesVersion = res.RulesVersion
	s.GeneratedAt = res.GeneratedAt
	s.Threat = res.ThreatLevel
	s.Competitors = res.Competitors
	s.Skipped = res.Filter.Skipped
	s.Persisted = res.Persisted
	s.Warnings = res.Warnings

	for reason, n := range res.Filter.Rejected {
		s.Rejected[string(reason)] = n
	}
	for _, c := range res.Competitors {
		s.LabelCounts[c.RatingLabel]++
		switch {
		case c.IsNew:
			s.NewCompetitors++
		case c.RatingChange > 0:
			s.Rising++
		case c.RatingChange < 0:
			s.Falling++
		}
	}
	return s
}

// Write renders res in the named format.
func Write(w io.Writer, format string, res *pipeline.Result) error {
	switch strings.ToLower(format) {
	case "json", "":
		return WriteJSON(w, res)
	case "text":
		return WriteText(w, GenerateSummary(res))
	case "html":
		return WriteHTML(w, GenerateSummary(res))
	case "csv":
		if res == nil {
			return WriteCSV(w, nil)
		}
		return WriteCSV(w, res.Competitors)
	default:
		return fmt.Errorf("%w %q (want one of %s)", ErrUnknownFormat, format, strings.Join(Formats, ", "))
	}
}

// WriteJSON writes the result exactly as the HTTP API returns it.
func WriteJSON(w io.Writer, res *pipeline.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// delta renders a competitor's movement since the previous run.
func delta(c *storage.CompetitorRecord) string {
	switch {
	case c.IsNew:
		return "new"
	case c.RatingChange == 0:
		return "="
	case c.RatingChange > 0:
		return "+" + strconv.Itoa(c.RatingChange)
	default:
		return strconv.Itoa(c.RatingChange)
	}
}

const timeLayout = "2006-01-02 15:04:05"

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Competitive Landscape
---------------------
Query:         {{.Query}}
Provider:      {{.Provider}}
Rules:         {{.RulesVersion}}
Generated:     {{.GeneratedAt.Format "` + timeLayout + `"}}

Threat:        {{.Threat.Level}} ({{.Threat.Score}}/100)
               {{.Threat.Description}}
{{- if .Competitors}}
Strongest:     {{.Threat.MaxRating}}/100
{{- end}}

Competitors:   {{len .Competitors}} ({{.NewCompetitors}} new, {{.Rising}} rising, {{.Falling}} falling)
{{- range .Competitors}}
  {{printf "%2d" .Position}}. {{printf "%-24s" .Name}} {{printf "%3d" .Rating}} {{printf "%-13s" .RatingLabel}} {{delta .}}  {{.URL}}
{{- else}}
  None
{{- end}}

Rejected:
{{- range $reason, $count := .Rejected}}
  {{$reason}}: {{$count}}
{{- else}}
  None
{{- end}}
{{- if .Skipped}}
  beyond cap: {{.Skipped}}
{{- end}}
{{- if .Warnings}}

Warnings:
{{- range .Warnings}}
  - {{.}}
{{- end}}
{{- end}}
`

	t, err := template.New("textReport").Funcs(template.FuncMap{"delta": delta}).Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse text report: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render text report: %w", err)
	}

	return nil
}

// WriteHTML writes a standalone HTML report. Titles and snippets come from
// the open web, so everything goes through html/template escaping.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Competitive Landscape Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  .threat-Low { color: green; }
  .threat-Moderate { color: #b8860b; }
  .threat-High { color: #d2691e; }
  .threat-Critical { color: red; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; vertical-align: top; }
  th { background: #eaeaea; }
  td.desc { max-width: 480px; font-size: 90%; }
</style>
</head>
<body>
  <h1>Competitive Landscape Report</h1>
  <p><strong>Query:</strong> {{.Query}}<br>
  <strong>Generated:</strong> {{.GeneratedAt.Format "` + timeLayout + `"}} via {{.Provider}} (rules {{.RulesVersion}})</p>

  <div class="stat-card">
    <div>Threat</div>
    <div class="stat-val threat-{{.Threat.Level}}">{{.Threat.Level}} ({{.Threat.Score}})</div>
  </div>
  {{- if .Competitors}}
  <div class="stat-card">
    <div>Strongest</div>
    <div class="stat-val">{{.Threat.MaxRating}}</div>
  </div>
  {{- end}}
  <div class="stat-card">
    <div>Competitors</div>
    <div class="stat-val">{{len .Competitors}}</div>
  </div>
  <div class="stat-card">
    <div>New</div>
    <div class="stat-val">{{.NewCompetitors}}</div>
  </div>
  <div class="stat-card">
    <div>Rising / Falling</div>
    <div class="stat-val">{{.Rising}} / {{.Falling}}</div>
  </div>
  <p>{{.Threat.Description}}</p>

  <h3>Competitors</h3>
  <table>
    <tr><th>#</th><th>Name</th><th>Rating</th><th>Label</th><th>Change</th><th>Description</th></tr>
    {{- range .Competitors}}
    <tr><td>{{.Position}}</td><td><a href="{{.URL}}">{{.Name}}</a></td><td>{{.Rating}}</td><td>{{.RatingLabel}}</td><td>{{delta .}}</td><td class="desc">{{.Description}}</td></tr>
    {{- else}}
    <tr><td colspan="6">None</td></tr>
    {{- end}}
  </table>

  <h3>Rejected Results</h3>
  <table>
    <tr><th>Reason</th><th>Count</th></tr>
    {{- range $reason, $count := .Rejected}}
    <tr><td>{{$reason}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
  {{- if .Warnings}}

  <h3>Warnings</h3>
  <ul>
    {{- range .Warnings}}
    <li>{{.}}</li>
    {{- end}}
  </ul>
  {{- end}}
</body>
</html>
`
	t, err := htmltemplate.New("htmlReport").Funcs(htmltemplate.FuncMap{"delta": delta}).Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("parse html report: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}

	return nil
}
