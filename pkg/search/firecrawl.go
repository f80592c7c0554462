package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mikeboe/research-bot/pkg/failure"
)

const defaultFirecrawlURL = "https://api.firecrawl.dev"

// FirecrawlProvider implements the Firecrawl search API, which returns each
// result page scraped to markdown.
type FirecrawlProvider struct {
	apiKey  string
	apiURL  string
	timeout time.Duration
	client  *http.Client
}

// NewFirecrawlProvider creates a Firecrawl search provider. timeout bounds the
// provider-side scrape and the HTTP call.
func NewFirecrawlProvider(apiKey, apiURL string, timeout time.Duration) (*FirecrawlProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("firecrawl api key is required")
	}
	if strings.TrimSpace(apiURL) == "" {
		apiURL = defaultFirecrawlURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FirecrawlProvider{
		apiKey:  apiKey,
		apiURL:  strings.TrimRight(apiURL, "/"),
		timeout: timeout,
		// Leave headroom over the scrape timeout for the response itself.
		client: &http.Client{Timeout: timeout + 15*time.Second},
	}, nil
}

type firecrawlRequest struct {
	Query         string                 `json:"query"`
	Limit         int                    `json:"limit,omitempty"`
	Timeout       int64                  `json:"timeout,omitempty"`
	ScrapeOptions firecrawlScrapeOptions `json:"scrapeOptions"`
}

type firecrawlScrapeOptions struct {
	Formats []string `json:"formats"`
}

type firecrawlResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
		Markdown    string `json:"markdown"`
	} `json:"data"`
	Error string `json:"error"`
}

// Search executes a query against the Firecrawl search endpoint.
func (p *FirecrawlProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	reqBody := firecrawlRequest{
		Query:         query,
		Limit:         opts.Limit,
		Timeout:       p.timeout.Milliseconds(),
		ScrapeOptions: firecrawlScrapeOptions{Formats: []string{"markdown"}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal firecrawl request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/v1/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create firecrawl request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("firecrawl request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus("firecrawl", resp); err != nil {
		return nil, err
	}

	var decoded firecrawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode firecrawl response: %w", err)
	}
	if !decoded.Success && decoded.Error != "" {
		return nil, fmt.Errorf("firecrawl search failed: %s", decoded.Error)
	}

	results := make([]Result, 0, len(decoded.Data))
	for _, item := range decoded.Data {
		results = append(results, Result{
			Title:   item.Title,
			URL:     item.URL,
			Content: strings.TrimSpace(item.Markdown),
		})
	}

	return results, nil
}

// ClassifyFailure implements failure.Classifier.
func (p *FirecrawlProvider) ClassifyFailure(err error) failure.Class {
	return ClassifyFailure(err)
}
