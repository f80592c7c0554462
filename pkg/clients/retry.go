package clients

import (
	"context"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/mikeboe/research-bot/pkg/failure"
	"github.com/mikeboe/research-bot/pkg/metrics"
)

// Retrying retries a Completer while the provider reports rate limiting.
// Other failures are returned on the first attempt.
type Retrying struct {
	Completer  Completer
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
	Logger     *slog.Logger
}

// WithRetry wraps c with rate-limit retries.
func WithRetry(c Completer, maxRetries int, backoff, maxBackoff time.Duration) *Retrying {
	return &Retrying{
		Completer:  c,
		MaxRetries: maxRetries,
		Backoff:    backoff,
		MaxBackoff: maxBackoff,
		Logger:     slog.Default(),
	}
}

// Complete implements Completer.
func (r *Retrying) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	base, maxDelay := r.Backoff, r.MaxBackoff
	if base <= 0 {
		base = time.Millisecond
	}
	if maxDelay <= base {
		maxDelay = 2 * base
	}

	policy := retrypolicy.NewBuilder[string]().
		HandleIf(func(_ string, err error) bool {
			return err != nil && r.ClassifyFailure(err) == failure.RateLimited
		}).
		WithMaxRetries(max(r.MaxRetries, 0)).
		WithBackoff(base, maxDelay).
		Build()

	attempt := 0
	var lastErr error
	out, err := failsafe.With[string](policy).WithContext(ctx).Get(func() (string, error) {
		if attempt > 0 {
			r.Logger.Warn("Retrying LLM generation", "attempt", attempt+1, "last_error", lastErr)
			metrics.RateLimitRetries.WithLabelValues("model").Inc()
		}
		attempt++
		text, err := r.Completer.Complete(ctx, req)
		lastErr = err
		return text, err
	})
	if err != nil {
		if lastErr != nil && ctx.Err() == nil {
			return "", lastErr
		}
		return "", err
	}
	return out, nil
}

// ClassifyFailure delegates to the wrapped completer.
func (r *Retrying) ClassifyFailure(err error) failure.Class {
	if c := failure.Classify(r.Completer, err); c != failure.Transient {
		return c
	}
	return ClassifyFailure(err)
}
