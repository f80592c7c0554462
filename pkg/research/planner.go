package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/research-bot/pkg/clients"
	"github.com/mikeboe/research-bot/pkg/metrics"
)

// Planner turns a topic and prior findings into search queries.
type Planner struct {
	caller
	Logger *slog.Logger
}

// NewPlanner creates a Planner with the standard call parameters.
func NewPlanner(model clients.Completer, temperature float64) *Planner {
	return &Planner{
		caller: caller{Model: model, MaxTokens: 1000, Temperature: temperature},
		Logger: slog.Default(),
	}
}

type planResponse struct {
	Queries []SerpQuery `json:"queries"`
}

// Plan returns at most maxQueries queries with unique text. An unparseable
// answer gives an empty plan; only a failed model call is an error.
func (p *Planner) Plan(ctx context.Context, topic string, findings []string, maxQueries int) ([]SerpQuery, error) {
	if maxQueries <= 0 {
		return nil, nil
	}

	content, err := p.complete(ctx, planPrompt(topic, findings, maxQueries))
	if err != nil {
		return nil, fmt.Errorf("generate serp queries: %w", err)
	}

	var resp planResponse
	if err := ParseStructured(content, &resp); err != nil {
		if errors.Is(err, ErrMalformedOutput) {
			metrics.MalformedOutputs.WithLabelValues("planner").Inc()
			p.Logger.Warn("Could not parse planned queries", "error", err)
			return nil, nil
		}
		return nil, err
	}

	queries := make([]SerpQuery, 0, min(len(resp.Queries), maxQueries))
	seen := make(map[string]struct{}, len(resp.Queries))
	for _, q := range resp.Queries {
		q.Query = strings.TrimSpace(q.Query)
		if q.Query == "" {
			continue
		}
		if _, ok := seen[q.Query]; ok {
			continue
		}
		seen[q.Query] = struct{}{}
		queries = append(queries, q)
		if len(queries) == maxQueries {
			break
		}
	}

	p.Logger.Info("Generated queries", "count", len(queries))
	return queries, nil
}
