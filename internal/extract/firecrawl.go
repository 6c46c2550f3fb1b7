package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultFirecrawlURL = "https://api.firecrawl.dev"

// FirecrawlRenderer renders pages through the Firecrawl scrape API.
type FirecrawlRenderer struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
}

// FirecrawlOption configures a FirecrawlRenderer.
type FirecrawlOption func(*FirecrawlRenderer)

// WithFirecrawlHTTPClient replaces the HTTP client.
func WithFirecrawlHTTPClient(c HTTPDoer) FirecrawlOption {
	return func(f *FirecrawlRenderer) {
		if c != nil {
			f.httpClient = c
		}
	}
}

// WithFirecrawlBaseURL overrides the API origin.
func WithFirecrawlBaseURL(base string) FirecrawlOption {
	return func(f *FirecrawlRenderer) {
		if base != "" {
			f.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// NewFirecrawlRenderer creates a renderer using apiKey.
func NewFirecrawlRenderer(apiKey string, opts ...FirecrawlOption) *FirecrawlRenderer {
	f := &FirecrawlRenderer{
		apiKey:     apiKey,
		baseURL:    defaultFirecrawlURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FirecrawlRenderer) Name() string { return "firecrawl" }

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string `json:"markdown"`
		RawHTML  string `json:"rawHtml"`
	} `json:"data"`
}

// Render scrapes pageURL as markdown plus raw HTML.
func (f *FirecrawlRenderer) Render(ctx context.Context, pageURL string) (*Page, error) {
	payload, err := json.Marshal(scrapeRequest{
		URL:     pageURL,
		Formats: []string{"markdown", "rawHtml"},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/v1/scrape", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("firecrawl request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("firecrawl returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out scrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode firecrawl response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("firecrawl scrape failed: %s", out.Error)
	}
	if out.Data.Markdown == "" && out.Data.RawHTML == "" {
		return nil, fmt.Errorf("firecrawl returned no content")
	}

	return &Page{URL: pageURL, Markdown: out.Data.Markdown, HTML: out.Data.RawHTML}, nil
}
