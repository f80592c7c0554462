package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/research-bot/pkg/chunker"
	"github.com/mikeboe/research-bot/pkg/clients"
)

// Writer synthesizes the final markdown report.
type Writer struct {
	caller
	// FindingsBudget caps the findings block of the prompt, in runes. The cut
	// is a plain prefix and drops whatever does not fit.
	FindingsBudget int
	Logger         *slog.Logger
}

// NewWriter creates a Writer.
func NewWriter(model clients.Completer, maxTokens int, temperature float64, findingsBudget int) *Writer {
	return &Writer{
		caller:         caller{Model: model, MaxTokens: maxTokens, Temperature: temperature},
		FindingsBudget: findingsBudget,
		Logger:         slog.Default(),
	}
}

// Write returns the report followed by a Sources section listing every
// source. A failed model call is returned as an error.
func (w *Writer) Write(ctx context.Context, topic string, findings, sources []string) (string, error) {
	w.Logger.Info("Compiling final report", "findings", len(findings), "sources", len(sources))

	wrapped := make([]string, len(findings))
	for i, f := range findings {
		wrapped[i] = "<learning>\n" + f + "\n</learning>"
	}
	block := chunker.Truncate(strings.Join(wrapped, "\n"), w.FindingsBudget)

	report, err := w.complete(ctx, reportPrompt(topic, block))
	if err != nil {
		return "", fmt.Errorf("write final report: %w", err)
	}

	return report + SourcesSection(sources), nil
}

// SourcesSection renders the sources appended to every report.
func SourcesSection(sources []string) string {
	var b strings.Builder
	b.WriteString("\n\n## Sources\n\n")
	for i, s := range sources {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(s)
	}
	return b.String()
}
