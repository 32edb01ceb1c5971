package testutils

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports"
)

// StepJSON renders a well-formed model reply.
func StepJSON(title, content string, action domain.NextAction) string {
	b, _ := json.Marshal(map[string]string{
		domain.KeyTitle:      title,
		domain.KeyContent:    content,
		domain.KeyNextAction: string(action),
	})
	return string(b)
}

// Transport replays canned replies in order and repeats the last one once exhausted.
// It records every conversation it was called with.
type Transport struct {
	mu        sync.Mutex
	replies   []string
	histories []domain.Conversation
}

// Scripted returns a Transport answering with replies.
func Scripted(replies ...string) *Transport {
	return &Transport{replies: replies}
}

func (t *Transport) ChatComplete(ctx context.Context, history domain.Conversation, maxTokens int) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.histories = append(t.histories, append(domain.Conversation(nil), history...))
	if len(t.replies) == 0 {
		return "", context.DeadlineExceeded
	}
	return t.replies[min(len(t.histories)-1, len(t.replies)-1)], nil
}

// Calls reports how many requests were made.
func (t *Transport) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.histories)
}

// History returns the conversation sent with the i-th request.
func (t *Transport) History(i int) domain.Conversation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.histories[i]
}

// Echo answers every request with a final step whose content is the user query.
// Safe for concurrent chains.
func Echo() ports.ChatCompleter {
	return ports.ChatCompleterFunc(func(ctx context.Context, history domain.Conversation, maxTokens int) (string, error) {
		query := ""
		for _, m := range history {
			if m.Role == domain.RoleUser {
				query = m.Content
				break
			}
		}
		return StepJSON("echo", query, domain.ActionFinalAnswer), nil
	})
}
