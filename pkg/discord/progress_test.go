package discord

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/research-bot/pkg/research"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		current, total int
		filled         int
	}{
		{3, 3, 3},
		{2, 3, 6},
		{1, 3, 10},
		{0, 3, 10},
		{1, 1, 10},
		{5, 5, 2},
	}
	for _, tt := range tests {
		bar := ProgressBar(tt.current, tt.total)
		assert.Equal(t, tt.filled, strings.Count(bar, "█"), bar)
		assert.Equal(t, 10-tt.filled, strings.Count(bar, "░"), bar)
	}
	assert.True(t, strings.HasSuffix(ProgressBar(2, 3), " Depth 2/3"))
}

func TestRenderProgress(t *testing.T) {
	state := research.ProgressState{
		CurrentDepth:     2,
		TotalDepth:       2,
		TotalQueries:     4,
		CompletedQueries: 1,
		CurrentQuery:     "sodium ion cost",
		RateLimitNotice:  "Rate limit hit for query: sodium ion cost. Attempt 1/5. Backing off before retrying.",
	}
	got := RenderProgress("batteries", "abc", state)
	assert.Equal(t, "🔍 Researching: **batteries** (ID: abc)\n\n"+
		ProgressBar(2, 2)+"\n\n"+
		"Researching: sodium ion cost (Query 2/4)\n\n"+
		state.RateLimitNotice, got)

	t.Run("query number never passes the total", func(t *testing.T) {
		state := research.ProgressState{TotalDepth: 1, TotalQueries: 2, CompletedQueries: 2, CurrentQuery: "q"}
		assert.Contains(t, RenderProgress("t", "id", state), "(Query 2/2)")
	})

	t.Run("planning", func(t *testing.T) {
		assert.Contains(t, RenderProgress("t", "id", research.ProgressState{TotalDepth: 1}), "Planning next queries...")
	})

	t.Run("fits a message", func(t *testing.T) {
		state := research.ProgressState{TotalDepth: 1, TotalQueries: 1, CurrentQuery: strings.Repeat("w", 3000)}
		assert.LessOrEqual(t, len([]rune(RenderProgress("t", "id", state))), 2000)
	})
}

func TestProgressReporterThrottles(t *testing.T) {
	session := &fakeSession{}
	reporter := NewProgressReporter(session, testInteraction(), "topic", "id", time.Hour)
	reporter.Logger = discardLogger

	reporter.Update(research.ProgressState{TotalDepth: 1, TotalQueries: 2, CurrentQuery: "first"})
	reporter.Update(research.ProgressState{TotalDepth: 1, TotalQueries: 2, CurrentQuery: "second"})
	require.Len(t, session.edits, 1)
	assert.Contains(t, session.edits[0], "first")

	reporter.Stage(ProgressBar(0, 1), "Generating final report...")
	reporter.Stage(ProgressBar(0, 1), "Generating final report...")
	require.Len(t, session.edits, 2)
	assert.Contains(t, session.lastEdit(), "Generating final report...")
}
