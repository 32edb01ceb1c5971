package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/stepwise/internal/logging"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// run is a chain executing in this process.
type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager orchestrates chain execution and snapshot access.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	reasoner    ports.Reasoner
	store       ports.ChainStore
	broadcaster ports.Broadcaster

	mu    sync.Mutex            // Global lock for the maps
	locks map[string]*lockEntry // Map of active locks
	runs  map[string]*run       // Chains started by this manager and not yet finished

	newID  func() string
	logger *slog.Logger
}

var _ ports.ChainService = (*Manager)(nil)

// Option configures the Manager.
type Option func(*Manager)

// WithBroadcaster replaces the broadcaster used to fan out snapshot updates.
func WithBroadcaster(b ports.Broadcaster) Option {
	return func(m *Manager) {
		m.broadcaster = b
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithIDGenerator replaces the UUID chain ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}

// NewManager creates a Manager running chains on reasoner and keeping snapshots in store.
func NewManager(reasoner ports.Reasoner, store ports.ChainStore, opts ...Option) *Manager {
	m := &Manager{
		reasoner: reasoner,
		store:    store,
		locks:    make(map[string]*lockEntry),
		runs:     make(map[string]*run),
		newID:    uuid.NewString,
		logger:   logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(chainID) after unlocking.
func (m *Manager) acquire(chainID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[chainID]
	if !exists {
		entry = &lockEntry{}
		m.locks[chainID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(chainID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[chainID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, chainID)
	}
}

// WithLock executes a function while holding the lock for the chain.
func (m *Manager) WithLock(ctx context.Context, chainID string, fn func(context.Context) error) error {
	entry := m.acquire(chainID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(chainID)
	}()

	return fn(ctx)
}

// Start launches a chain and returns its ID without waiting for the first step.
// The chain outlives ctx; stop it with Cancel.
func (m *Manager) Start(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", domain.ErrEmptyQuery
	}

	id := m.newID()
	now := time.Now()
	snapshot := &domain.ChainSnapshot{
		ID:        id,
		Query:     query,
		Status:    domain.StatusRunning,
		Emission:  domain.Emission{ChainID: id, Transcript: domain.Transcript{}},
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Save(ctx, snapshot); err != nil {
		return "", fmt.Errorf("failed to initialize chain: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.runs[id] = r
	m.mu.Unlock()

	go m.execute(runCtx, id, query, r)
	return id, nil
}

func (m *Manager) execute(ctx context.Context, id, query string, r *run) {
	defer func() {
		m.mu.Lock()
		delete(m.runs, id)
		m.mu.Unlock()
		r.cancel()
		close(r.done)
	}()

	logger := m.logger.With("chain_id", id)
	state, err := m.reasoner.Run(ctx, id, query, func(em domain.Emission) error {
		return m.update(ctx, id, func(s *domain.ChainSnapshot) {
			s.Emission = em
		})
	})

	status := domain.StatusAbandoned
	if state != nil {
		status = state.Status
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("chain failed", "error", err)
	}

	// The chain context may be gone; the final status must still be recorded.
	if err := m.update(context.WithoutCancel(ctx), id, func(s *domain.ChainSnapshot) {
		s.Status = status
	}); err != nil {
		logger.Warn("failed to record final status", "error", err)
	}
}

// update applies fn to the stored snapshot under the chain lock and broadcasts the result.
func (m *Manager) update(ctx context.Context, id string, fn func(*domain.ChainSnapshot)) error {
	var updated *domain.ChainSnapshot
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		snapshot, err := m.store.Load(ctx, id)
		if err != nil {
			return err
		}
		fn(snapshot)
		snapshot.UpdatedAt = time.Now()
		if err := m.store.Save(ctx, snapshot); err != nil {
			return err
		}
		updated = snapshot
		return nil
	})
	if err != nil {
		return err
	}

	if m.broadcaster == nil {
		return nil
	}
	payload, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := m.broadcaster.Publish(ctx, id, payload); err != nil {
		// Subscribers can always catch up from the store.
		m.logger.Warn("failed to broadcast snapshot", "chain_id", id, "error", err)
	}
	return nil
}

// Snapshot returns the latest view of a chain.
func (m *Manager) Snapshot(ctx context.Context, chainID string) (*domain.ChainSnapshot, error) {
	var snapshot *domain.ChainSnapshot
	err := m.WithLock(ctx, chainID, func(ctx context.Context) error {
		var err error
		snapshot, err = m.store.Load(ctx, chainID)
		return err
	})
	return snapshot, err
}

// List returns up to limit snapshots, oldest first. A limit <= 0 means all.
func (m *Manager) List(ctx context.Context, limit int) ([]*domain.ChainSnapshot, error) {
	ids, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}

	out := make([]*domain.ChainSnapshot, 0, len(ids))
	for _, id := range ids {
		snapshot, err := m.store.Load(ctx, id)
		if errors.Is(err, domain.ErrChainNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, snapshot)
	}
	return out, nil
}

// Cancel abandons a running chain. Cancelling a finished chain is a no-op.
func (m *Manager) Cancel(ctx context.Context, chainID string) error {
	m.mu.Lock()
	r, running := m.runs[chainID]
	m.mu.Unlock()

	if running {
		m.logger.Info("cancelling chain", "chain_id", chainID)
		r.cancel()
		return nil
	}

	_, err := m.store.Load(ctx, chainID)
	return err
}

// Wait blocks until the chain finished and returns its final snapshot.
func (m *Manager) Wait(ctx context.Context, chainID string) (*domain.ChainSnapshot, error) {
	m.mu.Lock()
	r, running := m.runs[chainID]
	m.mu.Unlock()

	if running {
		select {
		case <-r.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.Snapshot(ctx, chainID)
}

// Subscribe streams serialized snapshots of a chain as it progresses.
// The cancel func must be called to release the subscription.
func (m *Manager) Subscribe(ctx context.Context, chainID string) (<-chan []byte, func(), error) {
	if m.broadcaster == nil {
		return nil, nil, errors.New("no broadcaster configured")
	}
	if _, err := m.store.Load(ctx, chainID); err != nil {
		return nil, nil, err
	}
	return m.broadcaster.Subscribe(ctx, chainID)
}

// Running reports how many chains are executing.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

// Shutdown cancels every running chain and waits for them to stop.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	pending := make([]*run, 0, len(m.runs))
	for _, r := range m.runs {
		r.cancel()
		pending = append(pending, r)
	}
	m.mu.Unlock()

	for _, r := range pending {
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Store returns the underlying chain store.
func (m *Manager) Store() ports.ChainStore {
	return m.store
}
