package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/mikeboe/research-bot/pkg/chunker"
	"github.com/mikeboe/research-bot/pkg/config"
	"github.com/mikeboe/research-bot/pkg/metrics"
	"github.com/mikeboe/research-bot/pkg/research"
)

const (
	commandName      = "research"
	defaultBreadth   = 2
	defaultDepth     = 3
	progressInterval = 2 * time.Second
)

// ResearchCommand is the /research slash command definition.
func ResearchCommand() *discordgo.ApplicationCommand {
	minValue := 1.0
	return &discordgo.ApplicationCommand{
		Name:        commandName,
		Description: "Perform deep research on a topic",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "The research topic or question",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "breadth",
				Description: "Research breadth (1-10)",
				MinValue:    &minValue,
				MaxValue:    config.MaxBreadth,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "depth",
				Description: "Research depth (1-5)",
				MinValue:    &minValue,
				MaxValue:    config.MaxDepth,
			},
		},
	}
}

// Request is a parsed /research invocation.
type Request struct {
	Query   string
	Breadth int
	Depth   int
}

// ParseRequest reads the command options, applying defaults and limits.
func ParseRequest(data discordgo.ApplicationCommandInteractionData) Request {
	req := Request{Breadth: defaultBreadth, Depth: defaultDepth}
	for _, opt := range data.Options {
		switch opt.Name {
		case "query":
			req.Query = strings.TrimSpace(opt.StringValue())
		case "breadth":
			req.Breadth = config.ClampBreadth(int(opt.IntValue()))
		case "depth":
			req.Depth = config.ClampDepth(int(opt.IntValue()))
		}
	}
	return req
}

// Bot serves /research over a Discord gateway session.
type Bot struct {
	Session   *discordgo.Session
	Engine    *research.ResearchEngine
	Config    *config.ResearchConfig
	GuildID   string
	ReportDir string
	Logger    *slog.Logger

	answers *answerWaiters
	ctx     context.Context
}

// New creates a bot for token. Commands are registered for guildID, or
// globally when it is empty.
func New(token, guildID, reportDir string, engine *research.ResearchEngine, cfg *config.ResearchConfig) (*Bot, error) {
	if token == "" {
		return nil, errors.New("DISCORD_TOKEN is not set")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	return &Bot{
		Session:   session,
		Engine:    engine,
		Config:    cfg,
		GuildID:   guildID,
		ReportDir: reportDir,
		Logger:    slog.Default(),
		answers:   newAnswerWaiters(),
		ctx:       context.Background(),
	}, nil
}

// Run connects to the gateway and serves until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	b.Session.AddHandler(b.onReady)
	b.Session.AddHandler(b.onInteraction)
	b.Session.AddHandler(b.onMessage)

	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	b.Logger.Info("Discord bot running")

	<-ctx.Done()
	b.Logger.Info("Shutting down Discord bot")
	return b.Session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.Logger.Info("Logged in", "user", r.User.Username)
	if _, err := s.ApplicationCommandBulkOverwrite(r.User.ID, b.GuildID, []*discordgo.ApplicationCommand{ResearchCommand()}); err != nil {
		b.Logger.Error("Failed to register commands", "error", err)
	}
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand || i.ApplicationCommandData().Name != commandName {
		return
	}
	b.HandleResearch(b.ctx, s, i.Interaction)
}

func (b *Bot) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	b.answers.deliver(m.ChannelID, m.Author.ID, m.Content)
}

// HandleResearch runs one /research interaction from the deferred reply to
// the summary message.
func (b *Bot) HandleResearch(ctx context.Context, s Session, i *discordgo.Interaction) {
	if err := s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		b.Logger.Error("Slash ack failed", "error", err)
		return
	}

	req := ParseRequest(i.ApplicationCommandData())
	id := research.NewResearchID()
	logger := b.Logger.With("research_id", id)
	logger.Info("Research requested", "query", req.Query, "breadth", req.Breadth, "depth", req.Depth)

	edit := func(content string) {
		content = chunker.Truncate(content, chunker.MessageLimit)
		if _, err := s.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &content}); err != nil {
			logger.Warn("Failed to edit reply", "error", err)
		}
	}
	title := chunker.Truncate(req.Query, maxHeaderQuery)

	if req.Query == "" {
		edit("⚠️ Please provide a research query.")
		return
	}

	edit(fmt.Sprintf("🔍 Research preparation for: **%s** (ID: %s)\n\nGenerating follow-up questions to better understand your research needs...", title, id))

	topic := req.Query
	questions := b.Engine.Clarifier.Questions(ctx, req.Query, b.Config.ClarifyQuestions)
	if len(questions) > 0 {
		answers, ok := b.collectAnswers(ctx, s, i, title, id, questions)
		if !ok {
			edit("❌ Research canceled by user.")
			metrics.ResearchRuns.WithLabelValues("canceled").Inc()
			return
		}
		topic = research.EnhanceTopic(req.Query, questions, answers)
		edit(fmt.Sprintf("🔍 Starting deep research on: **%s** (ID: %s)\n\nThank you for the additional context. Beginning research with breadth: %d, depth: %d.\n\nThis may take several minutes...", title, id, req.Breadth, req.Depth))
	} else {
		edit(fmt.Sprintf("🔍 Starting deep research on: **%s** (ID: %s)\n\nBreadth: %d, Depth: %d\n\nThis may take several minutes...", title, id, req.Breadth, req.Depth))
	}

	reporter := NewProgressReporter(s, i, req.Query, id, progressInterval)
	reporter.Logger = logger
	reporter.Stage(ProgressBar(req.Depth, req.Depth), "Planning research queries...")

	res := b.Engine.Run(ctx, research.Task{Topic: topic, Breadth: req.Breadth, Depth: req.Depth}, reporter.Update)

	reporter.Stage(ProgressBar(0, req.Depth), "Generating final report...")
	report, err := b.Engine.WriteReport(ctx, topic, res)
	if err != nil {
		logger.Error("Error in research command", "error", err)
		edit(fmt.Sprintf("⚠️ There was an error conducting your research: %v\n\nPlease try again later or with a more specific query.", err))
		metrics.ResearchRuns.WithLabelValues("failed").Inc()
		return
	}

	if _, err := research.SaveReport(b.ReportDir, id, report); err != nil {
		logger.Warn("Failed to save report", "error", err)
	}

	sender := NewSender(s, b.Config.ChunkLimit, b.Config.ChunkFallbackLimit, b.Config.MessagePace)
	sender.Logger = logger
	if _, err := sender.SendReport(ctx, i, req.Query, id, report); err != nil {
		logger.Error("Error sending report to Discord", "error", err)
		if !errors.Is(err, ErrEmptyReport) {
			edit(fmt.Sprintf("⚠️ Error sending the research report: %v. The report may be too large for Discord.", err))
		}
		metrics.ResearchRuns.WithLabelValues("failed").Inc()
		return
	}

	if err := sender.FollowUp(ctx, i, Summary(len(res.Sources), len(res.Findings), id)); err != nil {
		logger.Warn("Failed to send summary", "error", err)
	}
	metrics.ResearchRuns.WithLabelValues("completed").Inc()
}

// collectAnswers asks each question in turn and waits for the invoking user's
// next message in the channel. It returns false when the user cancels.
func (b *Bot) collectAnswers(ctx context.Context, s Session, i *discordgo.Interaction, title, id string, questions []string) ([]string, bool) {
	userID := interactionUserID(i)
	answers := make([]string, 0, len(questions))

	for n, q := range questions {
		content := fmt.Sprintf("🔍 Research preparation for: **%s** (ID: %s)\n\n**Question %d/%d:** %s\n\n"+
			"*Please answer this question in your next message to help narrow down the research focus.*\n\n"+
			"*Type \"skip\" to skip this question or \"cancel\" to stop the research.*", title, id, n+1, len(questions), q)
		content = chunker.Truncate(content, chunker.MessageLimit)

		ch, done := b.answers.register(i.ChannelID, userID)
		if _, err := s.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &content}); err != nil {
			b.Logger.Warn("Failed to ask question", "error", err)
		}
		answer, ok := waitAnswer(ctx, ch, b.Config.ClarifyTimeout)
		done()

		switch {
		case !ok:
			if ctx.Err() != nil {
				return nil, false
			}
			answers = append(answers, research.AnswerTimedOut)
			if _, err := s.FollowupMessageCreate(i, true, &discordgo.WebhookParams{
				Content: "⚠️ No response received, moving to the next question.",
				Flags:   discordgo.MessageFlagsEphemeral,
			}); err != nil {
				b.Logger.Warn("Failed to send timeout notice", "error", err)
			}
		case strings.EqualFold(strings.TrimSpace(answer), "cancel"):
			return nil, false
		case strings.EqualFold(strings.TrimSpace(answer), "skip"):
			answers = append(answers, research.AnswerSkipped)
		default:
			answers = append(answers, answer)
		}
	}
	return answers, true
}

func interactionUserID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
