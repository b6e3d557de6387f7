package serp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/landscape/internal/apperr"
	"github.com/FranksOps/landscape/internal/bypass"
	"github.com/FranksOps/landscape/pkg/httpclient"
)

// DefaultDuckDuckGoEndpoint is the JavaScript-free results page.
const DefaultDuckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGoConfig configures the keyless HTML provider.
type DuckDuckGoConfig struct {
	Endpoint string
	// Client should carry a browser fingerprint and User-Agent pool.
	Client    *httpclient.Client
	Detectors []bypass.Detector
}

// DuckDuckGo scrapes the DuckDuckGo HTML results page. It needs no
// credential, which makes it the fallback when no API key is configured.
type DuckDuckGo struct {
	endpoint  string
	client    *httpclient.Client
	detectors []bypass.Detector
}

var _ Provider = (*DuckDuckGo)(nil)

func NewDuckDuckGo(cfg DuckDuckGoConfig) (*DuckDuckGo, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultDuckDuckGoEndpoint
	}
	if cfg.Client == nil {
		c, err := httpclient.New(httpclient.Config{})
		if err != nil {
			return nil, fmt.Errorf("duckduckgo: %w", err)
		}
		cfg.Client = c
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	return &DuckDuckGo{endpoint: cfg.Endpoint, client: cfg.Client, detectors: cfg.Detectors}, nil
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search issues one GET for the results page. Region and language are pinned
// through the kl parameter, e.g. "us-en".
func (d *DuckDuckGo) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return nil, apperr.Configuration("duckduckgo: endpoint %q: %v", d.endpoint, err)
	}
	q := u.Query()
	q.Set("q", query)
	if opts.Region != "" && opts.Language != "" {
		q.Set("kl", strings.ToLower(opts.Region+"-"+opts.Language))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", acceptLanguage(opts))

	resp, err := d.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: read body: %w", err)
	}

	page := &bypass.Page{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	if src, blocked := bypass.Detect(page, d.detectors); blocked {
		return nil, &apperr.UpstreamError{Provider: d.Name(), StatusCode: resp.StatusCode, Message: "blocked by " + src}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body = io.NopCloser(bytes.NewReader(body))
		return nil, statusError(d.Name(), resp, false)
	}

	results, err := parseDuckDuckGo(body)
	if err != nil {
		return nil, &apperr.UpstreamError{Provider: d.Name(), StatusCode: resp.StatusCode, Message: "malformed page: " + err.Error()}
	}
	return renumber(results, opts.Limit), nil
}

func parseDuckDuckGo(body []byte) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var results []Result
	doc.Find(".result").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("result--ad") {
			return
		}
		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		target := resolveRedirect(href)
		if target == "" {
			return
		}
		results = append(results, Result{
			Title:   collapse(link.Text()),
			URL:     target,
			Snippet: collapse(s.Find(".result__snippet").First().Text()),
		})
	})
	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= click-through links.
func resolveRedirect(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Hostname(), "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func acceptLanguage(opts Options) string {
	if opts.Language == "" {
		return "en"
	}
	if opts.Region == "" {
		return opts.Language
	}
	return opts.Language + "-" + strings.ToUpper(opts.Region) + "," + opts.Language + ";q=0.9"
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
