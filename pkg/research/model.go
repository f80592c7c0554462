package research

import (
	"context"
	"time"

	"github.com/mikeboe/research-bot/pkg/clients"
)

// caller holds what every model-backed step shares.
type caller struct {
	Model       clients.Completer
	MaxTokens   int
	Temperature float64
	// Now stamps the system prompt. Defaults to time.Now.
	Now func() time.Time
}

func (c caller) complete(ctx context.Context, prompt string) (string, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return c.Model.Complete(ctx, clients.CompletionRequest{
		System:      SystemPrompt(now()),
		Prompt:      prompt,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	})
}
