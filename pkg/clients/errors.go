package clients

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mikeboe/research-bot/pkg/failure"
)

// langchaingo reports provider HTTP failures only as text, e.g.
// "API returned unexpected status code: 429: rate limited".
var statusCodeRe = regexp.MustCompile(`status code:? (\d{3})`)

// ClassifyFailure maps model provider errors onto failure classes.
func ClassifyFailure(err error) failure.Class {
	if err == nil {
		return failure.Transient
	}
	if errors.Is(err, context.Canceled) {
		return failure.Fatal
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return failure.FromStatus(apiErr.Code)
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return failure.FromStatus(genaiErr.Code)
	}
	var genaiPtr *genai.APIError
	if errors.As(err, &genaiPtr) && genaiPtr != nil {
		return failure.FromStatus(genaiPtr.Code)
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted:
			return failure.RateLimited
		case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
			return failure.Transient
		case codes.Unauthenticated, codes.PermissionDenied, codes.InvalidArgument:
			return failure.Fatal
		}
	}

	msg := err.Error()
	if m := statusCodeRe.FindStringSubmatch(msg); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil {
			return failure.FromStatus(code)
		}
	}
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "rate limit") || strings.Contains(lower, "resource_exhausted") || strings.Contains(lower, "too many requests") {
		return failure.RateLimited
	}
	return failure.Transient
}
