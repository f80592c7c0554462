package discord

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/mikeboe/research-bot/pkg/chunker"
	"github.com/mikeboe/research-bot/pkg/research"
)

const progressBlocks = 10

// ProgressBar draws how far the traversal is from the top level:
// the first level shows one block per level of depth remaining.
func ProgressBar(currentDepth, totalDepth int) string {
	total := max(totalDepth, 1)
	ratio := float64(total-currentDepth+1) / float64(total)
	ratio = math.Max(0, math.Min(1, ratio))
	filled := int(math.Floor(ratio * progressBlocks))

	return strings.Repeat("█", filled) + strings.Repeat("░", progressBlocks-filled) +
		fmt.Sprintf(" Depth %d/%d", currentDepth, totalDepth)
}

// RenderStage formats a progress message.
func RenderStage(query, id, bar, details string) string {
	msg := fmt.Sprintf("🔍 Researching: **%s** (ID: %s)\n\n%s\n\n%s", chunker.Truncate(query, maxHeaderQuery), id, bar, details)
	return chunker.Truncate(msg, chunker.MessageLimit)
}

// RenderProgress formats a progress snapshot.
func RenderProgress(query, id string, s research.ProgressState) string {
	details := "Planning next queries..."
	if s.CurrentQuery != "" {
		n := min(s.CompletedQueries+1, max(s.TotalQueries, 1))
		details = fmt.Sprintf("Researching: %s (Query %d/%d)", s.CurrentQuery, n, s.TotalQueries)
	}
	if s.RateLimitNotice != "" {
		details += "\n\n" + s.RateLimitNotice
	}
	return RenderStage(query, id, ProgressBar(s.CurrentDepth, s.TotalDepth), details)
}

// ProgressReporter edits the deferred reply with progress, at most once per
// interval. Forced messages are never dropped.
type ProgressReporter struct {
	Session     Session
	Interaction *discordgo.Interaction
	Query       string
	ID          string
	Logger      *slog.Logger

	mu      sync.Mutex
	limiter *rate.Limiter
	last    string
}

// NewProgressReporter creates a reporter that edits at most once per every.
func NewProgressReporter(s Session, i *discordgo.Interaction, query, id string, every time.Duration) *ProgressReporter {
	return &ProgressReporter{
		Session:     s,
		Interaction: i,
		Query:       query,
		ID:          id,
		Logger:      slog.Default(),
		limiter:     rate.NewLimiter(rate.Every(every), 1),
	}
}

// Update renders a snapshot. It has the research.ProgressFunc signature.
func (p *ProgressReporter) Update(s research.ProgressState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.limiter.Allow() {
		return
	}
	p.edit(RenderProgress(p.Query, p.ID, s))
}

// Stage shows a fixed stage message regardless of throttling.
func (p *ProgressReporter) Stage(bar, details string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.edit(RenderStage(p.Query, p.ID, bar, details))
}

func (p *ProgressReporter) edit(content string) {
	if content == p.last {
		return
	}
	if _, err := p.Session.InteractionResponseEdit(p.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		p.Logger.Warn("Failed to update progress", "error", err)
		return
	}
	p.last = content
}
