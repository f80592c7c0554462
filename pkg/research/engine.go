// Package research implements the iterative deep-research loop: plan search
// queries, fetch documents, extract findings, recurse on follow-up questions
// and finally write a report.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/mikeboe/research-bot/pkg/clients"
	"github.com/mikeboe/research-bot/pkg/config"
	"github.com/mikeboe/research-bot/pkg/metrics"
	"github.com/mikeboe/research-bot/pkg/search"
)

// ResearchEngine drives Planner, Fetcher and Extractor across a breadth and
// depth budget. Queries run one at a time.
type ResearchEngine struct {
	Planner   *Planner
	Fetcher   *Fetcher
	Extractor *Extractor
	Writer    *Writer
	Clarifier *Clarifier

	Config *config.ResearchConfig
	Logger *slog.Logger
}

// NewEngine wires every step to the same model and search provider. Model
// calls are retried on rate limiting.
func NewEngine(model clients.Completer, provider search.Provider, cfg *config.ResearchConfig) *ResearchEngine {
	retrying := clients.WithRetry(model, cfg.ModelMaxRetries, cfg.SearchBackoffBase, cfg.SearchBackoffMax)

	fetcher := NewFetcher(provider, cfg.SearchLimit, cfg.SearchMaxRetries, cfg.SearchBackoffBase, cfg.SearchBackoffMax)
	if cfg.SearchBackoffBase >= time.Second {
		fetcher.Jitter = 0.25
	}

	return &ResearchEngine{
		Planner:   NewPlanner(retrying, cfg.Temperature),
		Fetcher:   fetcher,
		Extractor: NewExtractor(retrying, cfg.Temperature, cfg.DocumentLimit),
		Writer:    NewWriter(retrying, cfg.ReportMaxTokens, cfg.Temperature, cfg.FindingsBudget),
		Clarifier: NewClarifier(retrying, cfg.Temperature),
		Config:    cfg,
		Logger:    slog.Default(),
	}
}

// SetLogger points the engine and all of its steps at logger.
func (e *ResearchEngine) SetLogger(logger *slog.Logger) {
	e.Logger = logger
	e.Planner.Logger = logger
	e.Fetcher.Logger = logger
	e.Extractor.Logger = logger
	e.Writer.Logger = logger
	e.Clarifier.Logger = logger
}

// Run researches task and never fails: a broken query or branch only costs
// the findings it would have added.
func (e *ResearchEngine) Run(ctx context.Context, task Task, onProgress ProgressFunc) Result {
	start := time.Now()
	defer func() { metrics.ResearchDuration.Observe(time.Since(start).Seconds()) }()

	e.Logger.Info("Starting research", "breadth", task.Breadth, "depth", task.Depth)
	p := &progress{
		state: ProgressState{
			CurrentDepth:   task.Depth,
			TotalDepth:     task.Depth,
			CurrentBreadth: task.Breadth,
			TotalBreadth:   task.Breadth,
		},
		onProgress: onProgress,
	}

	res := e.research(ctx, task, p)
	e.Logger.Info("Research complete", "findings", len(res.Findings), "sources", len(res.Sources))
	return res
}

// WriteReport writes the final report for a finished traversal.
func (e *ResearchEngine) WriteReport(ctx context.Context, topic string, res Result) (string, error) {
	return e.Writer.Write(ctx, topic, res.Findings, res.Sources)
}

func (e *ResearchEngine) research(ctx context.Context, task Task, p *progress) (res Result) {
	prior := Result{Findings: MergeUnique(task.Findings), Sources: MergeUnique(task.Sources)}
	if task.Depth <= 0 || task.Breadth <= 0 {
		return prior
	}

	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("Research branch failed", "depth", task.Depth, "panic", r)
			res = prior
		}
	}()

	queries, err := e.Planner.Plan(ctx, task.Topic, task.Findings, task.Breadth)
	if err != nil {
		e.Logger.Error("Error in deep research", "depth", task.Depth, "error", err)
		return prior
	}

	p.update(func(s *ProgressState) {
		s.TotalQueries += len(queries)
		s.CurrentDepth = task.Depth
		s.CurrentBreadth = task.Breadth
		if len(queries) > 0 {
			s.CurrentQuery = queries[0].Query
		}
	})

	branches := make([]Result, 0, len(queries)+1)
	branches = append(branches, prior)
	for i, q := range queries {
		if ctx.Err() != nil {
			break
		}
		p.update(func(s *ProgressState) {
			s.CurrentQuery = q.Query
			s.RateLimitNotice = ""
		})

		if i > 0 {
			wait := e.queryDelay()
			p.notice(fmt.Sprintf("Waiting %d seconds before next query to avoid rate limits...", int(wait.Round(time.Second)/time.Second)))
			if sleep(ctx, wait) != nil {
				break
			}
		}

		branches = append(branches, e.runQuery(ctx, task, q, p))
	}

	return Result{
		Findings: MergeUnique(findingsOf(branches)...),
		Sources:  MergeUnique(sourcesOf(branches)...),
	}
}

// runQuery fetches, extracts and, depth permitting, descends for one query.
// It counts the query as completed exactly once whatever the outcome.
func (e *ResearchEngine) runQuery(ctx context.Context, task Task, q SerpQuery, p *progress) Result {
	prior := Result{Findings: task.Findings, Sources: task.Sources}

	docs, err := e.Fetcher.Fetch(ctx, q.Query, func(attempt int, _ error) {
		p.notice(fmt.Sprintf("Rate limit hit for query: %s. Attempt %d/%d. Backing off before retrying.", q.Query, attempt, e.Fetcher.MaxRetries))
	})
	if err != nil {
		outcome := metrics.OutcomeFailed
		if isRateLimitExhausted(err) {
			outcome = metrics.OutcomeRateLimited
		}
		metrics.SearchQueries.WithLabelValues(outcome).Inc()
		e.Logger.Error("Error running query", "query", q.Query, "error", err)

		p.complete()
		p.notice(fmt.Sprintf("Error with query: %s. Continuing with next query...", q.Query))
		_ = sleep(ctx, e.Config.FailureDelay)
		return prior
	}
	metrics.SearchQueries.WithLabelValues(metrics.OutcomeOK).Inc()

	childBreadth := ChildBreadth(task.Breadth)
	childDepth := task.Depth - 1

	p.notice("Processing results for: " + q.Query)
	if sleep(ctx, e.Config.ExtractDelay) != nil {
		p.complete()
		return prior
	}

	ext, err := e.Extractor.Extract(ctx, q.Query, docs, e.Config.MaxFindings, childBreadth)
	if err != nil {
		e.Logger.Error("Error processing results", "query", q.Query, "error", err)
	}

	merged := Result{
		Findings: MergeUnique(task.Findings, ext.Findings),
		Sources:  MergeUnique(task.Sources, search.URLs(docs)),
	}
	p.complete()

	if childDepth <= 0 {
		p.update(func(s *ProgressState) { s.CurrentDepth = 0 })
		return merged
	}

	e.Logger.Info("Researching deeper", "breadth", childBreadth, "depth", childDepth)
	p.update(func(s *ProgressState) {
		s.CurrentDepth = childDepth
		s.CurrentBreadth = childBreadth
		s.RateLimitNotice = "Preparing for next depth level..."
	})
	if sleep(ctx, e.Config.DepthDelay) != nil {
		return merged
	}

	return e.research(ctx, Task{
		Topic:    DeriveTopic(q.ResearchGoal, ext.FollowUps),
		Breadth:  childBreadth,
		Depth:    childDepth,
		Findings: merged.Findings,
		Sources:  merged.Sources,
	}, p)
}

func (e *ResearchEngine) queryDelay() time.Duration {
	d := e.Config.QueryDelay
	if e.Config.QueryJitter > 0 {
		d += rand.N(e.Config.QueryJitter)
	}
	return d
}

// ChildBreadth halves breadth for the next level, rounding up, never below 1.
func ChildBreadth(breadth int) int {
	return max((breadth+1)/2, 1)
}

// DeriveTopic builds the topic of a recursive level from the parent query's
// research goal and the extractor's follow-up questions.
func DeriveTopic(goal string, followUps []string) string {
	var b strings.Builder
	b.WriteString("Previous research goal: ")
	b.WriteString(goal)
	b.WriteString("\nFollow-up research directions: ")
	for _, q := range followUps {
		b.WriteString("\n")
		b.WriteString(q)
	}
	return strings.TrimSpace(b.String())
}

// MergeUnique concatenates lists, keeping the first occurrence of each item.
// Merging a list with itself returns the list.
func MergeUnique(lists ...[]string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, item := range list {
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}

func findingsOf(results []Result) [][]string {
	out := make([][]string, len(results))
	for i, r := range results {
		out[i] = r.Findings
	}
	return out
}

func sourcesOf(results []Result) [][]string {
	out := make([][]string, len(results))
	for i, r := range results {
		out[i] = r.Sources
	}
	return out
}

// progress owns the traversal's ProgressState and hands out snapshots.
type progress struct {
	state      ProgressState
	onProgress ProgressFunc
}

func (p *progress) update(fn func(*ProgressState)) {
	fn(&p.state)
	if p.onProgress != nil {
		p.onProgress(p.state)
	}
}

func (p *progress) notice(msg string) {
	p.update(func(s *ProgressState) { s.RateLimitNotice = msg })
}

func (p *progress) complete() {
	p.update(func(s *ProgressState) { s.CompletedQueries++ })
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
