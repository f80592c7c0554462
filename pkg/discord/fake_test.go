package discord

import (
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeSession records what would have been sent to Discord.
type fakeSession struct {
	mu        sync.Mutex
	responds  int
	edits     []string
	followups []*discordgo.WebhookParams

	// reject fails any message longer than this with error 50035.
	reject int
	// onEdit runs after each edit is recorded.
	onEdit func(content string)
}

func (f *fakeSession) InteractionRespond(*discordgo.Interaction, *discordgo.InteractionResponse, ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responds++
	return nil
}

func (f *fakeSession) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	content := *edit.Content
	if f.tooLong(content) {
		return nil, oversizeError()
	}
	f.mu.Lock()
	f.edits = append(f.edits, content)
	hook := f.onEdit
	f.mu.Unlock()
	if hook != nil {
		hook(content)
	}
	return &discordgo.Message{Content: content}, nil
}

func (f *fakeSession) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.tooLong(data.Content) {
		return nil, oversizeError()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followups = append(f.followups, data)
	return &discordgo.Message{Content: data.Content}, nil
}

func (f *fakeSession) tooLong(content string) bool {
	return f.reject > 0 && len([]rune(content)) > f.reject
}

func (f *fakeSession) lastEdit() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return ""
	}
	return f.edits[len(f.edits)-1]
}

func (f *fakeSession) followupContents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.followups))
	for i, p := range f.followups {
		out[i] = p.Content
	}
	return out
}

func oversizeError() error {
	return &discordgo.RESTError{
		Response: &http.Response{Status: "400 Bad Request", StatusCode: http.StatusBadRequest},
		Message:  &discordgo.APIErrorMessage{Code: codeInvalidFormBody, Message: "Invalid Form Body"},
	}
}

func testInteraction() *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        "interaction-1",
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: "channel-1",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "user-1"}},
	}
}

// failingSession fails every follow-up with err.
type failingSession struct {
	*fakeSession
	err error
}

func (f *failingSession) FollowupMessageCreate(*discordgo.Interaction, bool, *discordgo.WebhookParams, ...discordgo.RequestOption) (*discordgo.Message, error) {
	return nil, f.err
}
