package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/mikeboe/research-bot/pkg/failure"
)

const defaultArxivURL = "https://export.arxiv.org/api/query"

// ArxivProvider searches arXiv papers. Without a FullText reader the result
// body is the abstract.
type ArxivProvider struct {
	apiURL string
	client *http.Client
	parser *gofeed.Parser

	// FullText, when set, replaces the abstract with the paper's PDF text.
	FullText ContentReader
	Logger   *slog.Logger
}

// NewArxivProvider creates an arXiv provider.
func NewArxivProvider(apiURL string, timeout time.Duration) *ArxivProvider {
	if strings.TrimSpace(apiURL) == "" {
		apiURL = defaultArxivURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ArxivProvider{
		apiURL: apiURL,
		client: &http.Client{Timeout: timeout},
		parser: gofeed.NewParser(),
		Logger: slog.Default(),
	}
}

// Search queries the arXiv Atom API.
func (p *ArxivProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	maxResults := opts.Limit
	if maxResults <= 0 {
		maxResults = 5
	}

	params := url.Values{}
	params.Add("search_query", "all:"+query)
	params.Add("max_results", strconv.Itoa(maxResults))
	params.Add("start", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create arxiv request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus("arxiv", resp); err != nil {
		return nil, err
	}

	feed, err := p.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse arxiv feed: %w", err)
	}

	results := make([]Result, 0, len(feed.Items))
	for _, entry := range feed.Items {
		title := strings.Join(strings.Fields(entry.Title), " ")
		content := fmt.Sprintf("# %s\n\nPublished: %s\n\n%s", title, entry.Published, strings.TrimSpace(entry.Description))

		if p.FullText != nil && entry.Link != "" {
			text, err := p.FullText.Read(ctx, PDFURL(entry.Link))
			if err != nil {
				p.Logger.Warn("Failed to read paper, using abstract", "url", entry.Link, "error", err)
			} else if strings.TrimSpace(text) != "" {
				content = text
			}
		}

		results = append(results, Result{
			Title:   title,
			URL:     entry.Link,
			Content: content,
		})
	}

	return results, nil
}

// ClassifyFailure implements failure.Classifier.
func (p *ArxivProvider) ClassifyFailure(err error) failure.Class {
	return ClassifyFailure(err)
}

// PDFURL turns an arXiv abstract link into its PDF link.
func PDFURL(absURL string) string {
	return strings.Replace(absURL, "/abs/", "/pdf/", 1)
}
