package ports

import (
	"context"

	"github.com/aretw0/stepwise/pkg/domain"
)

// ChatCompleter sends a chat-completion request and returns the raw text of the reply.
// Implementations fail with *domain.TransportError on network or HTTP failure, non-2xx
// status, or a malformed envelope. They do not retry.
type ChatCompleter interface {
	ChatComplete(ctx context.Context, history domain.Conversation, maxTokens int) (string, error)
}

// ChatCompleterFunc adapts a function to ChatCompleter.
type ChatCompleterFunc func(ctx context.Context, history domain.Conversation, maxTokens int) (string, error)

// ChatComplete calls f.
func (f ChatCompleterFunc) ChatComplete(ctx context.Context, history domain.Conversation, maxTokens int) (string, error) {
	return f(ctx, history, maxTokens)
}

// Reasoner runs a whole chain for one query under a caller-chosen ID.
// This is the interface used by the session layer and the adapters that drive chains.
type Reasoner interface {
	// Run calls emit with every emission of the chain and returns its final state.
	// Returning an error from emit abandons the chain.
	Run(ctx context.Context, chainID, query string, emit func(domain.Emission) error) (*domain.ChainState, error)
}
