package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/research-bot/pkg/failure"
)

type staticProvider struct {
	results []Result
	err     error
	calls   int
}

func (s *staticProvider) Search(context.Context, string, SearchOptions) ([]Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Result, len(s.results))
	copy(out, s.results)
	return out, nil
}

func (s *staticProvider) ClassifyFailure(err error) failure.Class {
	return ClassifyFailure(err)
}

const articleHTML = `<html><head><title>Fusion</title><script>var x = 1;</script></head>
<body><nav>menu</nav><article><h1>Fusion breakthrough</h1>
<p>The reactor sustained plasma for 48 seconds at 100 million degrees, a record for the device.</p>
<p>Researchers at the institute said the next milestone is a net energy gain within the decade.</p>
</article></body></html>`

func TestEnricherFillsThinResults(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	long := strings.Repeat("word ", 60)
	inner := &staticProvider{results: []Result{
		{URL: server.URL + "/article", Content: "snippet"},
		{URL: "https://long.example", Content: long},
	}}
	pdfs := &stubReader{text: "pdf text"}
	enricher := NewEnricher(inner, NewPageReader(0))
	enricher.PDFs = pdfs

	results, err := enricher.Search(context.Background(), "fusion", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, results[0].Content, "48 seconds")
	assert.NotContains(t, results[0].Content, "var x")
	assert.Equal(t, long, results[1].Content)
	assert.Empty(t, pdfs.urls)
}

func TestEnricherReadsPDFs(t *testing.T) {
	t.Parallel()

	inner := &staticProvider{results: []Result{{URL: "https://example.com/paper.pdf?download=1"}}}
	pdfs := &stubReader{text: "pdf text"}
	enricher := NewEnricher(inner, &stubReader{err: errors.New("html reader should not be used")})
	enricher.PDFs = pdfs

	results, err := enricher.Search(context.Background(), "q", SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "pdf text", results[0].Content)
}

func TestEnricherKeepsBodyOnReadFailure(t *testing.T) {
	t.Parallel()

	inner := &staticProvider{results: []Result{{URL: "https://example.com", Content: "snippet"}}}
	enricher := NewEnricher(inner, &stubReader{err: errors.New("boom")})

	results, err := enricher.Search(context.Background(), "q", SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "snippet", results[0].Content)
}

func TestEnricherPropagatesSearchFailure(t *testing.T) {
	t.Parallel()

	inner := &staticProvider{err: &StatusError{Provider: "x", StatusCode: 429}}
	enricher := NewEnricher(inner, NewPageReader(0))

	_, err := enricher.Search(context.Background(), "q", SearchOptions{})
	require.Error(t, err)
	assert.Equal(t, failure.RateLimited, enricher.ClassifyFailure(err))
}

func TestExtractMarkdownFallsBackToText(t *testing.T) {
	text := ExtractMarkdown([]byte("<html><body><p>tiny</p></body></html>"), "https://example.com")
	assert.Contains(t, text, "tiny")
}
