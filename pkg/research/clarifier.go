package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/research-bot/pkg/clients"
)

// Answers recorded when the user does not answer a clarifying question.
const (
	AnswerSkipped  = "[Skipped]"
	AnswerTimedOut = "[No response - timed out]"
)

// Clarifier asks the model what to ask the user before researching.
type Clarifier struct {
	caller
	Logger *slog.Logger
}

// NewClarifier creates a Clarifier.
func NewClarifier(model clients.Completer, temperature float64) *Clarifier {
	return &Clarifier{
		caller: caller{Model: model, MaxTokens: 500, Temperature: temperature},
		Logger: slog.Default(),
	}
}

// Questions returns at most n clarifying questions. Any failure gives none.
func (c *Clarifier) Questions(ctx context.Context, topic string, n int) []string {
	if n <= 0 {
		return nil
	}
	answer, err := c.complete(ctx, clarifyPrompt(topic, n))
	if err != nil {
		c.Logger.Warn("Error generating follow-up questions", "error", err)
		return nil
	}

	var resp struct {
		Questions []string `json:"questions"`
	}
	if err := ParseStructured(answer, &resp); err != nil {
		c.Logger.Warn("Error generating follow-up questions", "error", err)
		return nil
	}
	questions := uniqueNonEmpty(resp.Questions, n)
	c.Logger.Info("Generated follow-up questions", "count", len(questions))
	return questions
}

// EnhanceTopic folds the clarifying questions and the user's answers into
// the research topic. Missing answers count as timed out.
func EnhanceTopic(topic string, questions, answers []string) string {
	pairs := make([]string, len(questions))
	for i, q := range questions {
		a := AnswerTimedOut
		if i < len(answers) {
			a = answers[i]
		}
		pairs[i] = fmt.Sprintf("Q: %s\nA: %s", q, a)
	}
	return "Initial Query: " + topic + "\n\nFollow-up Questions and Answers:\n" + strings.Join(pairs, "\n\n")
}
