package ports

import (
	"context"

	"github.com/aretw0/stepwise/pkg/domain"
)

// ChainStore keeps the latest snapshot of each chain.
// Snapshots live only as long as the process; there is no durable backend.
type ChainStore interface {
	// Save stores the snapshot for a given chain ID, replacing any previous one.
	Save(ctx context.Context, snapshot *domain.ChainSnapshot) error

	// Load retrieves the snapshot for a given chain ID.
	// Returns domain.ErrChainNotFound if the chain does not exist.
	Load(ctx context.Context, chainID string) (*domain.ChainSnapshot, error)

	// Delete removes the snapshot for a given chain ID.
	Delete(ctx context.Context, chainID string) error

	// List returns the known chain IDs.
	List(ctx context.Context) ([]string, error)
}

// Broadcaster fans serialized emissions out to subscribers of a chain.
type Broadcaster interface {
	// Publish delivers msg to current subscribers of chainID. Slow subscribers may miss messages.
	Publish(ctx context.Context, chainID string, msg []byte) error

	// Subscribe registers a subscriber. The returned cancel func must be called to release it;
	// it closes the channel.
	Subscribe(ctx context.Context, chainID string) (<-chan []byte, func(), error)
}
