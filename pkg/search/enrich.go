package search

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mikeboe/research-bot/pkg/failure"
)

const (
	defaultMinWords    = 50
	defaultEnrichLimit = 3
)

// Enricher wraps a Provider and fills in results whose body is missing or too
// short to learn from, such as SearXNG snippets or Firecrawl pages that failed
// to scrape.
type Enricher struct {
	Provider Provider
	Pages    ContentReader
	// PDFs reads .pdf documents. Optional.
	PDFs     ContentReader
	MinWords int
	// Concurrency bounds parallel page reads for one search.
	Concurrency int
	Logger      *slog.Logger
}

// NewEnricher creates an Enricher reading HTML pages with pages.
func NewEnricher(p Provider, pages ContentReader) *Enricher {
	return &Enricher{
		Provider:    p,
		Pages:       pages,
		MinWords:    defaultMinWords,
		Concurrency: defaultEnrichLimit,
		Logger:      slog.Default(),
	}
}

// Search runs the wrapped search and enriches thin results. Read failures keep
// the original body.
func (e *Enricher) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	results, err := e.Provider.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	if e.Concurrency > 0 {
		g.SetLimit(e.Concurrency)
	}
	for i := range results {
		if results[i].URL == "" || len(strings.Fields(results[i].Content)) >= e.MinWords {
			continue
		}
		reader := e.readerFor(results[i].URL)
		if reader == nil {
			continue
		}
		g.Go(func() error {
			text, err := reader.Read(gctx, results[i].URL)
			if err != nil {
				e.Logger.Warn("Failed to enrich result", "url", results[i].URL, "error", err)
				return nil
			}
			if strings.TrimSpace(text) != "" {
				results[i].Content = text
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func (e *Enricher) readerFor(u string) ContentReader {
	if isPDF(u) {
		return e.PDFs
	}
	return e.Pages
}

// ClassifyFailure delegates to the wrapped provider.
func (e *Enricher) ClassifyFailure(err error) failure.Class {
	return failure.Classify(e.Provider, err)
}

func isPDF(u string) bool {
	lower := strings.ToLower(u)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	return strings.HasSuffix(lower, ".pdf") || strings.Contains(lower, "arxiv.org/pdf/")
}
