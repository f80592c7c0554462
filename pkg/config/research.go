package config

import "time"

const (
	// MaxBreadth caps the number of queries planned per level.
	MaxBreadth = 10
	// MaxDepth caps the number of levels a run descends.
	MaxDepth   = 5
)

// ResearchConfig holds the research budget, pacing and size limits.
type ResearchConfig struct {
	Breadth int
	Depth   int

	QueryDelay   time.Duration
	QueryJitter  time.Duration
	ExtractDelay time.Duration
	DepthDelay   time.Duration
	FailureDelay time.Duration

	SearchMaxRetries  int
	SearchBackoffBase time.Duration
	SearchBackoffMax  time.Duration
	ModelMaxRetries   int

	SearchLimit   int
	SearchTimeout time.Duration

	MaxFindings     int
	DocumentLimit   int
	FindingsBudget  int
	ReportMaxTokens int
	Temperature     float64

	ChunkLimit         int
	ChunkFallbackLimit int
	MessagePace        time.Duration

	ClarifyQuestions int
	ClarifyTimeout   time.Duration
}

// LoadResearch reads the research parameters from the environment.
func LoadResearch() *ResearchConfig {
	return &ResearchConfig{
		Breadth: ClampBreadth(getEnvAsInt("RESEARCH_BREADTH", 2)),
		Depth:   ClampDepth(getEnvAsInt("RESEARCH_DEPTH", 3)),

		QueryDelay:   getEnvAsDuration("QUERY_DELAY", 5*time.Second),
		QueryJitter:  getEnvAsDuration("QUERY_JITTER", 2*time.Second),
		ExtractDelay: getEnvAsDuration("EXTRACT_DELAY", 2*time.Second),
		DepthDelay:   getEnvAsDuration("DEPTH_DELAY", 5*time.Second),
		FailureDelay: getEnvAsDuration("FAILURE_DELAY", 3*time.Second),

		SearchMaxRetries:  getEnvAsInt("SEARCH_MAX_RETRIES", 5),
		SearchBackoffBase: getEnvAsDuration("SEARCH_BACKOFF_BASE", 3*time.Second),
		SearchBackoffMax:  getEnvAsDuration("SEARCH_BACKOFF_MAX", 60*time.Second),
		ModelMaxRetries:   getEnvAsInt("MODEL_MAX_RETRIES", 3),

		SearchLimit:   getEnvAsInt("SEARCH_LIMIT", 5),
		SearchTimeout: getEnvAsDuration("SEARCH_TIMEOUT", 30*time.Second),

		MaxFindings:     getEnvAsInt("MAX_FINDINGS", 3),
		DocumentLimit:   getEnvAsInt("DOCUMENT_LIMIT", 25000),
		FindingsBudget:  getEnvAsInt("FINDINGS_BUDGET", 150000),
		ReportMaxTokens: getEnvAsInt("REPORT_MAX_TOKENS", 4000),
		Temperature:     getEnvAsFloat("TEMPERATURE", 0.7),

		ChunkLimit:         getEnvAsInt("CHUNK_LIMIT", 1800),
		ChunkFallbackLimit: getEnvAsInt("CHUNK_FALLBACK_LIMIT", 1500),
		MessagePace:        getEnvAsDuration("MESSAGE_PACE", time.Second),

		ClarifyQuestions: getEnvAsInt("CLARIFY_QUESTIONS", 3),
		ClarifyTimeout:   getEnvAsDuration("CLARIFY_TIMEOUT", 2*time.Minute),
	}
}

// ClampBreadth keeps a user-supplied breadth inside 1..MaxBreadth.
func ClampBreadth(b int) int {
	return clamp(b, 1, MaxBreadth)
}

// ClampDepth keeps a user-supplied depth inside 1..MaxDepth.
func ClampDepth(d int) int {
	return clamp(d, 1, MaxDepth)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
