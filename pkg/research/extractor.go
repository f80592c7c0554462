package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/research-bot/pkg/chunker"
	"github.com/mikeboe/research-bot/pkg/clients"
	"github.com/mikeboe/research-bot/pkg/metrics"
	"github.com/mikeboe/research-bot/pkg/search"
)

// Extractor reduces fetched documents to findings and follow-up questions.
type Extractor struct {
	caller
	// DocumentLimit caps each document body, in runes.
	DocumentLimit int
	Logger        *slog.Logger
}

// NewExtractor creates an Extractor with the standard call parameters.
func NewExtractor(model clients.Completer, temperature float64, documentLimit int) *Extractor {
	return &Extractor{
		caller:        caller{Model: model, MaxTokens: 1000, Temperature: temperature},
		DocumentLimit: documentLimit,
		Logger:        slog.Default(),
	}
}

// Extract asks for at most maxFindings findings and numFollowUps follow-up
// questions. Documents without a body are ignored and an empty set returns
// without calling the model. An unparseable answer is an empty Extraction.
func (x *Extractor) Extract(ctx context.Context, query string, docs []search.Result, maxFindings, numFollowUps int) (Extraction, error) {
	contents := make([]string, 0, len(docs))
	for _, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			continue
		}
		contents = append(contents, chunker.Truncate(d.Content, x.DocumentLimit))
	}
	x.Logger.Info("Ran query", "query", query, "contents", len(contents))
	if len(contents) == 0 {
		return Extraction{}, nil
	}

	answer, err := x.complete(ctx, extractPrompt(query, contents, maxFindings, numFollowUps))
	if err != nil {
		return Extraction{}, fmt.Errorf("process serp result: %w", err)
	}

	var ext Extraction
	if err := ParseStructured(answer, &ext); err != nil {
		if errors.Is(err, ErrMalformedOutput) {
			metrics.MalformedOutputs.WithLabelValues("extractor").Inc()
			x.Logger.Warn("Could not parse learnings", "query", query, "error", err)
			return Extraction{}, nil
		}
		return Extraction{}, err
	}

	ext.Findings = uniqueNonEmpty(ext.Findings, maxFindings)
	ext.FollowUps = uniqueNonEmpty(ext.FollowUps, numFollowUps)
	metrics.Findings.Add(float64(len(ext.Findings)))

	x.Logger.Info("Created learnings", "query", query, "count", len(ext.Findings))
	return ext, nil
}
