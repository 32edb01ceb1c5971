package ports

import (
	"context"

	"github.com/aretw0/stepwise/pkg/domain"
)

// ChainService runs chains in the background and exposes their snapshots.
// It is implemented by session.Manager and consumed by the HTTP and MCP adapters.
type ChainService interface {
	Start(ctx context.Context, query string) (string, error)
	Snapshot(ctx context.Context, chainID string) (*domain.ChainSnapshot, error)
	List(ctx context.Context, limit int) ([]*domain.ChainSnapshot, error)
	Cancel(ctx context.Context, chainID string) error
	Wait(ctx context.Context, chainID string) (*domain.ChainSnapshot, error)
	Subscribe(ctx context.Context, chainID string) (<-chan []byte, func(), error)
}
