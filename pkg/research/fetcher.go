package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/mikeboe/research-bot/pkg/failure"
	"github.com/mikeboe/research-bot/pkg/metrics"
	"github.com/mikeboe/research-bot/pkg/search"
)

// ErrRateLimitExhausted is returned when a search is still rate limited after
// every retry.
var ErrRateLimitExhausted = errors.New("search rate limit retries exhausted")

// Fetcher runs one search, retrying only on rate limiting.
type Fetcher struct {
	Provider   search.Provider
	Limit      int
	MaxRetries int
	// Backoff doubles from Backoff up to MaxBackoff between retries.
	Backoff    time.Duration
	MaxBackoff time.Duration
	Jitter     float64
	Logger     *slog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(p search.Provider, limit, maxRetries int, backoff, maxBackoff time.Duration) *Fetcher {
	return &Fetcher{
		Provider:   p,
		Limit:      limit,
		MaxRetries: maxRetries,
		Backoff:    backoff,
		MaxBackoff: maxBackoff,
		Logger:     slog.Default(),
	}
}

// Fetch searches for query. onRetry, if set, is called before each retry with
// the retry number starting at 1 and the error that caused it.
func (f *Fetcher) Fetch(ctx context.Context, query string, onRetry func(attempt int, err error)) ([]search.Result, error) {
	start := time.Now()
	defer func() { metrics.SearchDuration.Observe(time.Since(start).Seconds()) }()

	attempt := 0
	var lastErr error
	results, err := failsafe.With[[]search.Result](f.policy()).WithContext(ctx).Get(func() ([]search.Result, error) {
		if attempt > 0 {
			metrics.RateLimitRetries.WithLabelValues("search").Inc()
			f.Logger.Warn("Rate limit hit", "query", query, "attempt", attempt, "max", f.MaxRetries)
			if onRetry != nil {
				onRetry(attempt, lastErr)
			}
		}
		attempt++
		res, err := f.Provider.Search(ctx, query, search.SearchOptions{Limit: f.Limit})
		lastErr = err
		return res, err
	})
	switch {
	case err == nil:
		return results, nil
	case ctx.Err() != nil, lastErr == nil:
		return nil, err
	case f.rateLimited(lastErr):
		return nil, fmt.Errorf("%w after %d attempts: %s: %v", ErrRateLimitExhausted, attempt, query, lastErr)
	default:
		return nil, lastErr
	}
}

func (f *Fetcher) policy() retrypolicy.RetryPolicy[[]search.Result] {
	base, maxDelay := f.Backoff, f.MaxBackoff
	if base <= 0 {
		base = time.Millisecond
	}
	if maxDelay <= base {
		maxDelay = 2 * base
	}

	builder := retrypolicy.NewBuilder[[]search.Result]().
		HandleIf(func(_ []search.Result, err error) bool {
			return err != nil && f.rateLimited(err)
		}).
		WithMaxRetries(max(f.MaxRetries, 0)).
		WithBackoff(base, maxDelay)
	if f.Jitter > 0 {
		builder = builder.WithJitterFactor(f.Jitter)
	}
	return builder.Build()
}

func (f *Fetcher) rateLimited(err error) bool {
	return failure.Classify(f.Provider, err) == failure.RateLimited
}

func isRateLimitExhausted(err error) bool {
	return errors.Is(err, ErrRateLimitExhausted)
}
