// Package failure classifies provider errors so callers can decide whether to
// retry, skip or abort without knowing the provider's error shapes.
package failure

import (
	"context"
	"errors"
	"net/http"
)

// Class is the retry class of a provider failure.
type Class int

const (
	// Fatal failures will not succeed on retry (bad credentials, bad request).
	Fatal Class = iota
	// Transient failures may succeed later but are not retried in place.
	Transient
	// RateLimited failures are retried with backoff.
	RateLimited
)

func (c Class) String() string {
	switch c {
	case Fatal:
		return "fatal"
	case Transient:
		return "transient"
	case RateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Classifier is implemented by provider adapters.
type Classifier interface {
	ClassifyFailure(err error) Class
}

// FromStatus maps an HTTP status code to a Class.
func FromStatus(code int) Class {
	switch {
	case code == http.StatusTooManyRequests:
		return RateLimited
	case code == http.StatusRequestTimeout, code >= 500:
		return Transient
	case code >= 400:
		return Fatal
	default:
		return Transient
	}
}

// Classify uses c when it is a Classifier and falls back to Transient.
// Context cancellation is always Fatal.
func Classify(c any, err error) Class {
	if err == nil {
		return Transient
	}
	if errors.Is(err, context.Canceled) {
		return Fatal
	}
	if cl, ok := c.(Classifier); ok {
		return cl.ClassifyFailure(err)
	}
	return Transient
}
