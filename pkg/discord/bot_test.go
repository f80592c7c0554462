package discord

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/research-bot/pkg/clients"
	"github.com/mikeboe/research-bot/pkg/config"
	"github.com/mikeboe/research-bot/pkg/research"
	"github.com/mikeboe/research-bot/pkg/search"
)

// scriptedModel answers by prompt type and records report prompts.
type scriptedModel struct {
	mu        sync.Mutex
	questions string
	report    string
	reportErr error
	prompts   []string
}

func (m *scriptedModel) Complete(_ context.Context, req clients.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, req.Prompt)
	m.mu.Unlock()

	switch {
	case strings.Contains(req.Prompt, "clarify the research direction"):
		return m.questions, nil
	case strings.Contains(req.Prompt, "generate a list of SERP queries"):
		return `{"queries": [{"query": "solid state electrolytes", "researchGoal": "materials"}]}`, nil
	case strings.Contains(req.Prompt, "generate a list of learnings"):
		return `{"learnings": ["Sulfide electrolytes reach 10 mS/cm."], "followUpQuestions": []}`, nil
	case strings.Contains(req.Prompt, "write a final report"):
		return m.report, m.reportErr
	}
	return "", errors.New("unexpected prompt")
}

func (m *scriptedModel) promptsContaining(s string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, p := range m.prompts {
		if strings.Contains(p, s) {
			out = append(out, p)
		}
	}
	return out
}

type docsProvider struct{}

func (docsProvider) Search(context.Context, string, search.SearchOptions) ([]search.Result, error) {
	return []search.Result{{Title: "Review", URL: "https://example.com/review", Content: "Sulfide electrolytes are fast."}}, nil
}

func testBotConfig() *config.ResearchConfig {
	return &config.ResearchConfig{
		SearchMaxRetries:   1,
		SearchBackoffBase:  time.Millisecond,
		SearchBackoffMax:   2 * time.Millisecond,
		SearchLimit:        5,
		MaxFindings:        3,
		DocumentLimit:      25000,
		FindingsBudget:     150000,
		ReportMaxTokens:    4000,
		ChunkLimit:         1800,
		ChunkFallbackLimit: 1500,
		ClarifyQuestions:   3,
		ClarifyTimeout:     time.Second,
	}
}

func newTestBot(t *testing.T, model clients.Completer, cfg *config.ResearchConfig) *Bot {
	t.Helper()
	engine := research.NewEngine(model, docsProvider{}, cfg)
	engine.SetLogger(discardLogger)
	return &Bot{
		Engine:    engine,
		Config:    cfg,
		ReportDir: t.TempDir(),
		Logger:    discardLogger,
		answers:   newAnswerWaiters(),
		ctx:       context.Background(),
	}
}

func researchInteraction(query string, breadth, depth float64) *discordgo.Interaction {
	i := testInteraction()
	i.Data = discordgo.ApplicationCommandInteractionData{
		Name: commandName,
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "query", Type: discordgo.ApplicationCommandOptionString, Value: query},
			{Name: "breadth", Type: discordgo.ApplicationCommandOptionInteger, Value: breadth},
			{Name: "depth", Type: discordgo.ApplicationCommandOptionInteger, Value: depth},
		},
	}
	return i
}

// answerOnQuestion replies to every clarifying question with answer.
func answerOnQuestion(b *Bot, answer string) func(string) {
	return func(content string) {
		if strings.Contains(content, "**Question ") {
			b.answers.deliver("channel-1", "user-1", answer)
		}
	}
}

func TestHandleResearchFullFlow(t *testing.T) {
	model := &scriptedModel{
		questions: `{"questions": ["Which chemistry matters most?"]}`,
		report:    "# Solid State Batteries\n\nSulfide electrolytes lead on conductivity.",
	}
	bot := newTestBot(t, model, testBotConfig())
	session := &fakeSession{}
	session.onEdit = answerOnQuestion(bot, "lithium sulfur")

	bot.HandleResearch(context.Background(), session, researchInteraction("solid state batteries", 1, 1))

	assert.Equal(t, 1, session.responds)
	require.NotEmpty(t, session.edits)
	assert.Contains(t, session.edits[0], "🔍 Research preparation for: **solid state batteries**")
	assert.Contains(t, session.edits[1], "**Question 1/1:** Which chemistry matters most?")
	assert.Contains(t, session.edits[2], "Thank you for the additional context. Beginning research with breadth: 1, depth: 1.")

	reportPrompts := model.promptsContaining("write a final report")
	require.Len(t, reportPrompts, 1)
	assert.Contains(t, reportPrompts[0], "Q: Which chemistry matters most?\nA: lithium sulfur")
	assert.Contains(t, reportPrompts[0], "Sulfide electrolytes reach 10 mS/cm.")

	assert.True(t, strings.HasPrefix(session.lastEdit(), "📊 **Research Report: solid state batteries**"))
	assert.Contains(t, session.lastEdit(), "## Sources\n\n- https://example.com/review")

	followups := session.followupContents()
	require.NotEmpty(t, followups)
	summary := followups[len(followups)-1]
	assert.Contains(t, summary, "• Sources checked: 1\n• Key insights: 1")

	entries, err := os.ReadDir(bot.ReportDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	saved, err := os.ReadFile(filepath.Join(bot.ReportDir, entries[0].Name()))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(saved), "# Solid State Batteries"))
	assert.Contains(t, summary, entries[0].Name())
}

func TestHandleResearchSkipAndTimeout(t *testing.T) {
	t.Run("skip", func(t *testing.T) {
		model := &scriptedModel{questions: `{"questions": ["Which region?"]}`, report: "# R\n\nbody"}
		bot := newTestBot(t, model, testBotConfig())
		session := &fakeSession{}
		session.onEdit = answerOnQuestion(bot, "SKIP")

		bot.HandleResearch(context.Background(), session, researchInteraction("grid storage", 1, 1))

		prompts := model.promptsContaining("write a final report")
		require.Len(t, prompts, 1)
		assert.Contains(t, prompts[0], "A: [Skipped]")
	})

	t.Run("timeout", func(t *testing.T) {
		cfg := testBotConfig()
		cfg.ClarifyTimeout = 10 * time.Millisecond
		model := &scriptedModel{questions: `{"questions": ["Which region?"]}`, report: "# R\n\nbody"}
		bot := newTestBot(t, model, cfg)
		session := &fakeSession{}

		bot.HandleResearch(context.Background(), session, researchInteraction("grid storage", 1, 1))

		prompts := model.promptsContaining("write a final report")
		require.Len(t, prompts, 1)
		assert.Contains(t, prompts[0], "A: [No response - timed out]")

		require.NotEmpty(t, session.followups)
		notice := session.followups[0]
		assert.Equal(t, "⚠️ No response received, moving to the next question.", notice.Content)
		assert.Equal(t, discordgo.MessageFlagsEphemeral, notice.Flags)
	})
}

func TestHandleResearchCancel(t *testing.T) {
	model := &scriptedModel{questions: `{"questions": ["Which region?", "Which decade?"]}`}
	bot := newTestBot(t, model, testBotConfig())
	session := &fakeSession{}
	session.onEdit = answerOnQuestion(bot, "cancel")

	bot.HandleResearch(context.Background(), session, researchInteraction("grid storage", 2, 2))

	assert.Equal(t, "❌ Research canceled by user.", session.lastEdit())
	assert.Empty(t, model.promptsContaining("generate a list of SERP queries"))
	assert.Empty(t, session.followups)
}

func TestHandleResearchWithoutQuestions(t *testing.T) {
	model := &scriptedModel{questions: "no questions today", report: "# R\n\nbody"}
	bot := newTestBot(t, model, testBotConfig())
	session := &fakeSession{}

	bot.HandleResearch(context.Background(), session, researchInteraction("grid storage", 1, 1))

	assert.Contains(t, session.edits[1], "🔍 Starting deep research on: **grid storage**")
	assert.Contains(t, session.edits[1], "Breadth: 1, Depth: 1")
	prompts := model.promptsContaining("write a final report")
	require.Len(t, prompts, 1)
	assert.NotContains(t, prompts[0], "Follow-up Questions and Answers")
}

func TestHandleResearchReportFailure(t *testing.T) {
	model := &scriptedModel{questions: "{}", reportErr: errors.New("model overloaded")}
	bot := newTestBot(t, model, testBotConfig())
	session := &fakeSession{}

	bot.HandleResearch(context.Background(), session, researchInteraction("grid storage", 1, 1))

	last := session.lastEdit()
	assert.True(t, strings.HasPrefix(last, "⚠️ There was an error conducting your research: "))
	assert.Contains(t, last, "model overloaded")
	assert.True(t, strings.HasSuffix(last, "\n\nPlease try again later or with a more specific query."))
	assert.Empty(t, session.followups)
}

func TestParseRequest(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		data := discordgo.ApplicationCommandInteractionData{
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "query", Type: discordgo.ApplicationCommandOptionString, Value: "  fusion  "},
			},
		}
		assert.Equal(t, Request{Query: "fusion", Breadth: 2, Depth: 3}, ParseRequest(data))
	})

	t.Run("clamped", func(t *testing.T) {
		data := researchInteraction("fusion", 40, 0).ApplicationCommandData()
		assert.Equal(t, Request{Query: "fusion", Breadth: 10, Depth: 1}, ParseRequest(data))
	})
}

func TestResearchCommand(t *testing.T) {
	cmd := ResearchCommand()
	assert.Equal(t, "research", cmd.Name)
	require.Len(t, cmd.Options, 3)

	assert.Equal(t, "query", cmd.Options[0].Name)
	assert.True(t, cmd.Options[0].Required)

	breadth := cmd.Options[1]
	require.NotNil(t, breadth.MinValue)
	assert.Equal(t, 1.0, *breadth.MinValue)
	assert.Equal(t, 10.0, breadth.MaxValue)
	assert.Equal(t, 5.0, cmd.Options[2].MaxValue)
}

func TestAnswerWaiters(t *testing.T) {
	w := newAnswerWaiters()
	assert.False(t, w.deliver("c", "u", "nobody listening"))

	ch, done := w.register("c", "u")
	assert.False(t, w.deliver("c", "other-user", "not for you"))
	assert.True(t, w.deliver("c", "u", "42"))
	answer, ok := waitAnswer(context.Background(), ch, time.Second)
	assert.True(t, ok)
	assert.Equal(t, "42", answer)

	done()
	assert.False(t, w.deliver("c", "u", "late"))

	ch, done = w.register("c", "u")
	defer done()
	_, ok = waitAnswer(context.Background(), ch, 5*time.Millisecond)
	assert.False(t, ok)
}
