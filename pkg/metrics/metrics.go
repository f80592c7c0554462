// Package metrics defines the Prometheus collectors for research runs and
// report delivery.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeFailed      = "failed"
	OutcomeRateLimited = "rate_limited"
)

var (
	ResearchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_runs_total",
			Help: "Research runs by final status",
		},
		[]string{"status"},
	)

	ResearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_duration_seconds",
			Help:    "Wall time of one research traversal",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 2400},
		},
	)

	SearchQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_search_queries_total",
			Help: "Search queries by outcome",
		},
		[]string{"outcome"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_search_duration_seconds",
			Help:    "Duration of a search including rate-limit retries",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	RateLimitRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_rate_limit_retries_total",
			Help: "Retries caused by provider rate limiting",
		},
		[]string{"provider"},
	)

	Findings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "research_findings_total",
			Help: "Findings extracted from search results",
		},
	)

	MalformedOutputs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_malformed_model_output_total",
			Help: "Model answers that could not be parsed",
		},
		[]string{"call"},
	)

	ChunksSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discord_report_chunks_sent_total",
			Help: "Report chunks delivered to Discord",
		},
	)

	OversizeResends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discord_oversize_resends_total",
			Help: "Chunks re-split after Discord rejected them as too long",
		},
	)
)
