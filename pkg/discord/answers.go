package discord

import (
	"context"
	"sync"
	"time"
)

// answerWaiters routes a user's next channel message to the research run
// that is waiting for it.
type answerWaiters struct {
	mu      sync.Mutex
	waiting map[string]chan string
}

func newAnswerWaiters() *answerWaiters {
	return &answerWaiters{waiting: make(map[string]chan string)}
}

func waiterKey(channelID, userID string) string {
	return channelID + "/" + userID
}

// register starts waiting for the next message of userID in channelID. The
// returned func stops waiting.
func (w *answerWaiters) register(channelID, userID string) (<-chan string, func()) {
	key := waiterKey(channelID, userID)
	ch := make(chan string, 1)

	w.mu.Lock()
	w.waiting[key] = ch
	w.mu.Unlock()

	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.waiting[key] == ch {
			delete(w.waiting, key)
		}
	}
}

// deliver hands content to a waiter, reporting whether one was waiting.
func (w *answerWaiters) deliver(channelID, userID, content string) bool {
	key := waiterKey(channelID, userID)

	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.waiting[key]
	if !ok {
		return false
	}
	delete(w.waiting, key)
	ch <- content
	return true
}

func waitAnswer(ctx context.Context, ch <-chan string, timeout time.Duration) (string, bool) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case answer := <-ch:
		return answer, true
	case <-t.C:
		return "", false
	case <-ctx.Done():
		return "", false
	}
}
