package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/stepwise/pkg/domain"
)

// Store implements ports.ChainStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.ChainSnapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.ChainSnapshot),
	}
}

// Save keeps a copy of the snapshot.
func (s *Store) Save(ctx context.Context, snapshot *domain.ChainSnapshot) error {
	copied := snapshot.Copy()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[snapshot.ID] = copied
	return nil
}

// Load returns a copy so callers can't mutate stored transcripts.
func (s *Store) Load(ctx context.Context, chainID string) (*domain.ChainSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.data[chainID]
	if !ok {
		return nil, domain.ErrChainNotFound
	}
	return snapshot.Copy(), nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, chainID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, chainID)
	return nil
}

// List returns known chains, oldest first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshots := make([]*domain.ChainSnapshot, 0, len(s.data))
	for _, snap := range s.data {
		snapshots = append(snapshots, snap)
	}
	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].StartedAt.Equal(snapshots[j].StartedAt) {
			return snapshots[i].ID < snapshots[j].ID
		}
		return snapshots[i].StartedAt.Before(snapshots[j].StartedAt)
	})

	ids := make([]string, len(snapshots))
	for i, snap := range snapshots {
		ids[i] = snap.ID
	}
	return ids, nil
}
