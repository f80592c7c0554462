// Package search fetches ranked documents for a query from an external
// search provider.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mikeboe/research-bot/pkg/failure"
)

// Provider defines the interface for web search providers.
type Provider interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error)
}

// Result represents a single search result. Content holds the document body,
// markdown when the provider can produce it.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// SearchOptions controls search behavior across providers.
type SearchOptions struct {
	Limit       int
	SearchDepth string
}

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s request failed with status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s request failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// ClassifyFailure maps provider errors onto failure classes. 429 is the only
// rate-limit signal.
func ClassifyFailure(err error) failure.Class {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return failure.FromStatus(statusErr.StatusCode)
	}
	if errors.Is(err, context.Canceled) {
		return failure.Fatal
	}
	// Timeouts and network errors.
	return failure.Transient
}

// checkStatus turns a non-2xx response into a *StatusError.
func checkStatus(provider string, resp *http.Response) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// URLs returns the non-empty result URLs in order.
func URLs(results []Result) []string {
	urls := make([]string, 0, len(results))
	for _, r := range results {
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	return urls
}
