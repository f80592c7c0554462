package research

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mikeboe/research-bot/pkg/clients"
	"github.com/mikeboe/research-bot/pkg/config"
	"github.com/mikeboe/research-bot/pkg/failure"
	"github.com/mikeboe/research-bot/pkg/search"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig() *config.ResearchConfig {
	return &config.ResearchConfig{
		Breadth:           2,
		Depth:             1,
		SearchMaxRetries:  5,
		SearchBackoffBase: time.Millisecond,
		SearchBackoffMax:  2 * time.Millisecond,
		SearchLimit:       5,
		MaxFindings:       3,
		DocumentLimit:     25000,
		FindingsBudget:    150000,
		ReportMaxTokens:   4000,
		Temperature:       0.7,
	}
}

func newTestEngine(model clients.Completer, provider search.Provider) *ResearchEngine {
	e := NewEngine(model, provider, testConfig())
	e.SetLogger(discardLogger)
	return e
}

// fakeModel answers each request with respond and records every request.
type fakeModel struct {
	mu       sync.Mutex
	requests []clients.CompletionRequest
	respond  func(req clients.CompletionRequest) (string, error)
}

func (m *fakeModel) Complete(_ context.Context, req clients.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.respond(req)
}

func (m *fakeModel) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if promptKind(r.Prompt) == kind {
			n++
		}
	}
	return n
}

func promptKind(prompt string) string {
	switch {
	case strings.Contains(prompt, "generate a list of SERP queries"):
		return "plan"
	case strings.Contains(prompt, "generate a list of learnings"):
		return "extract"
	case strings.Contains(prompt, "write a final report"):
		return "report"
	case strings.Contains(prompt, "clarify the research direction"):
		return "clarify"
	}
	return ""
}

// fakeProvider answers each search with results, counting calls per query.
type fakeProvider struct {
	mu      sync.Mutex
	calls   map[string]int
	results func(query string, call int) ([]search.Result, error)
}

func newFakeProvider(results func(query string, call int) ([]search.Result, error)) *fakeProvider {
	return &fakeProvider{calls: map[string]int{}, results: results}
}

func (p *fakeProvider) Search(_ context.Context, query string, _ search.SearchOptions) ([]search.Result, error) {
	p.mu.Lock()
	p.calls[query]++
	call := p.calls[query]
	p.mu.Unlock()
	return p.results(query, call)
}

func (p *fakeProvider) ClassifyFailure(err error) failure.Class {
	return search.ClassifyFailure(err)
}

func (p *fakeProvider) callsFor(query string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[query]
}

func planJSON(queries ...string) string {
	type item struct {
		Query        string `json:"query"`
		ResearchGoal string `json:"researchGoal"`
	}
	resp := struct {
		Queries []item `json:"queries"`
	}{}
	for _, q := range queries {
		resp.Queries = append(resp.Queries, item{Query: q, ResearchGoal: "goal of " + q})
	}
	data, _ := json.Marshal(resp)
	return "```json\n" + string(data) + "\n```"
}

func extractionJSON(findings []string, followUps []string) string {
	data, _ := json.Marshal(Extraction{Findings: findings, FollowUps: followUps})
	return "Here is what I found:\n" + string(data)
}

func oneDoc(url, body string) []search.Result {
	return []search.Result{{Title: url, URL: url, Content: body}}
}
