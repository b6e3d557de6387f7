package serp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/FranksOps/landscape/internal/apperr"
	"github.com/FranksOps/landscape/pkg/httpclient"
)

// DefaultSerperEndpoint is the Serper Google search API.
const DefaultSerperEndpoint = "https://google.serper.dev/search"

const maxResponseBytes = 4 << 20

// SerperConfig configures the Serper provider.
type SerperConfig struct {
	APIKey   string
	Endpoint string
	Client   *httpclient.Client
}

// Serper queries Google through the Serper JSON API.
type Serper struct {
	apiKey   string
	endpoint string
	client   *httpclient.Client
}

var _ Provider = (*Serper)(nil)

// NewSerper builds the provider. A missing API key is reported by Search, not
// here, so the server can start and answer health checks without one.
func NewSerper(cfg SerperConfig) (*Serper, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultSerperEndpoint
	}
	if cfg.Client == nil {
		c, err := httpclient.New(httpclient.Config{})
		if err != nil {
			return nil, fmt.Errorf("serper: %w", err)
		}
		cfg.Client = c
	}
	return &Serper{apiKey: strings.TrimSpace(cfg.APIKey), endpoint: cfg.Endpoint, client: cfg.Client}, nil
}

func (s *Serper) Name() string { return "serper" }

type serperRequest struct {
	Query    string `json:"q"`
	Region   string `json:"gl,omitempty"`
	Language string `json:"hl,omitempty"`
	Num      int    `json:"num,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Position int    `json:"position"`
	} `json:"organic"`
}

// Search performs exactly one POST to the API.
func (s *Serper) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if s.apiKey == "" {
		return nil, apperr.Configuration("serper: API key is not set")
	}

	body, err := json.Marshal(serperRequest{Query: query, Region: opts.Region, Language: opts.Language, Num: opts.Limit})
	if err != nil {
		return nil, fmt.Errorf("serper: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("serper: build request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("serper: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(s.Name(), resp, true)
	}

	var decoded serperResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return nil, &apperr.UpstreamError{Provider: s.Name(), StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}

	results := make([]Result, 0, len(decoded.Organic))
	for _, o := range decoded.Organic {
		if o.Link == "" {
			continue
		}
		results = append(results, Result{Title: o.Title, URL: o.Link, Snippet: o.Snippet})
	}
	return renumber(results, opts.Limit), nil
}

// statusError converts a non-2xx response. For credentialed providers a
// rejected key is a configuration problem as well as an upstream one.
func statusError(provider string, resp *http.Response, credentialed bool) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	upstream := &apperr.UpstreamError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(snippet)),
	}
	if credentialed && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return fmt.Errorf("%w: %w", apperr.ErrConfiguration, upstream)
	}
	return upstream
}
