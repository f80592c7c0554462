// Package discord delivers research runs over a Discord bot: the /research
// slash command, clarifying questions, progress edits and the chunked report.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/mikeboe/research-bot/pkg/chunker"
	"github.com/mikeboe/research-bot/pkg/metrics"
	"github.com/mikeboe/research-bot/pkg/research"
)

// codeInvalidFormBody is what Discord answers for a message over the size
// limit.
const codeInvalidFormBody = 50035

// maxHeaderQuery bounds the query echoed in message headers so a header plus
// a full chunk stays under the message limit.
const maxHeaderQuery = 150

// Session is the subset of *discordgo.Session used to answer an interaction.
type Session interface {
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, edit *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageCreate(i *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// ErrEmptyReport is returned by SendReport when there is nothing to send.
var ErrEmptyReport = errors.New("empty report")

// Sender posts a report as an edit of the deferred reply followed by paced
// follow-up messages.
type Sender struct {
	Session       Session
	Limit         int
	FallbackLimit int
	Logger        *slog.Logger

	limiter *rate.Limiter
}

// NewSender creates a Sender that waits pace between follow-ups.
func NewSender(s Session, limit, fallbackLimit int, pace time.Duration) *Sender {
	if limit <= 0 {
		limit = chunker.DefaultLimit
	}
	if fallbackLimit <= 0 || fallbackLimit >= limit {
		fallbackLimit = limit * 5 / 6
	}
	return &Sender{
		Session:       s,
		Limit:         limit,
		FallbackLimit: fallbackLimit,
		Logger:        slog.Default(),
		limiter:       rate.NewLimiter(rate.Every(pace), 1),
	}
}

// ReportHeader prefixes the first report chunk.
func ReportHeader(query, id string) string {
	return fmt.Sprintf("📊 **Research Report: %s** (ID: %s)\n\n", chunker.Truncate(query, maxHeaderQuery), id)
}

// Summary is the closing message of a research run.
func Summary(sources, findings int, id string) string {
	return fmt.Sprintf("📋 **Research Summary**\n"+
		"• Sources checked: %d\n"+
		"• Key insights: %d\n"+
		"• Report saved as: `%s`\n\n"+
		"For reference, your research ID is: `%s`", sources, findings, research.ReportFilename(id), id)
}

// SendReport chunks report and delivers it in order. It returns the number
// of messages sent.
func (s *Sender) SendReport(ctx context.Context, i *discordgo.Interaction, query, id, report string) (int, error) {
	chunks := chunker.Split(report, s.Limit)
	if len(chunks) == 0 {
		msg := "⚠️ Failed to generate a research report for: " + chunker.Truncate(query, maxHeaderQuery)
		if _, err := s.Session.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &msg}); err != nil {
			return 0, fmt.Errorf("edit reply: %w", err)
		}
		return 0, ErrEmptyReport
	}

	header := ReportHeader(query, id)
	sent := 0
	for idx, chunk := range chunks {
		n, err := s.deliver(ctx, i, header, chunk, idx == 0)
		sent += n
		if err != nil {
			return sent, fmt.Errorf("send chunk %d/%d: %w", idx+1, len(chunks), err)
		}
		s.Logger.Debug("Sent chunk", "chunk", idx+1, "of", len(chunks), "chars", len(chunk))
	}
	return sent, nil
}

// FollowUp posts a paced follow-up message.
func (s *Sender) FollowUp(ctx context.Context, i *discordgo.Interaction, content string) error {
	return s.post(ctx, i, "", content, false)
}

// deliver sends one chunk. When Discord rejects it as too long the chunk is
// split again at the fallback limit and sent piecewise.
func (s *Sender) deliver(ctx context.Context, i *discordgo.Interaction, header, chunk string, first bool) (int, error) {
	err := s.post(ctx, i, header, chunk, first)
	if err == nil {
		return 1, nil
	}
	if !IsOversize(err) {
		return 0, err
	}

	metrics.OversizeResends.Inc()
	pieces := chunker.Split(chunk, s.FallbackLimit)
	s.Logger.Warn("Chunk rejected as too long, re-splitting", "chars", len(chunk), "pieces", len(pieces))
	for k, piece := range pieces {
		if err := s.post(ctx, i, header, piece, first && k == 0); err != nil {
			return k, err
		}
	}
	return len(pieces), nil
}

func (s *Sender) post(ctx context.Context, i *discordgo.Interaction, header, content string, first bool) error {
	var err error
	if first {
		content = header + content
		_, err = s.Session.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &content})
	} else {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		_, err = s.Session.FollowupMessageCreate(i, true, &discordgo.WebhookParams{Content: content})
	}
	if err == nil {
		metrics.ChunksSent.Inc()
	}
	return err
}

// IsOversize reports whether err is Discord's invalid form body error.
func IsOversize(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code == codeInvalidFormBody
	}
	return false
}
