package search

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mikeboe/research-bot/pkg/config"
)

const (
	providerFirecrawl = "firecrawl"
	providerTavily    = "tavily"
	providerSearxng   = "searxng"
	providerArxiv     = "arxiv"
)

// NewProvider builds the configured provider, wrapped with page enrichment
// and the Redis cache when those are enabled.
func NewProvider(cfg *config.Config, timeout time.Duration, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var pdfs ContentReader
	if cfg.MistralApiKey != "" {
		ocr, err := NewMistralOCR(cfg.MistralApiKey, "")
		if err != nil {
			return nil, err
		}
		pdfs = ocr
	}

	var (
		provider Provider
		err      error
	)
	switch cfg.SearchProvider {
	case providerFirecrawl:
		provider, err = NewFirecrawlProvider(cfg.SearchApiKey, cfg.SearchApiURL, timeout)
	case providerTavily:
		provider, err = NewTavilyProvider(cfg.SearchApiKey, cfg.SearchApiURL, timeout)
	case providerSearxng:
		provider, err = NewSearxngProvider(cfg.SearchApiURL, timeout)
	case providerArxiv:
		arxiv := NewArxivProvider(cfg.SearchApiURL, timeout)
		arxiv.FullText = pdfs
		arxiv.Logger = logger
		provider = arxiv
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", cfg.SearchProvider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.EnrichPages && cfg.SearchProvider != providerArxiv {
		enricher := NewEnricher(provider, NewPageReader(timeout))
		enricher.PDFs = pdfs
		enricher.Logger = logger
		provider = enricher
	}

	if cfg.RedisURL != "" {
		cached, err := NewCachedProvider(provider, cfg.RedisURL, cfg.SearchCacheTTL)
		if err != nil {
			return nil, err
		}
		cached.Logger = logger
		provider = cached
	}

	return provider, nil
}
