package memory

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// DefaultSubscriberBuffer is the number of messages a subscriber may lag behind before drops.
const DefaultSubscriberBuffer = 16

// Broadcaster fans messages out to in-process subscribers.
// It implements ports.Broadcaster.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan []byte]struct{} // ChainID -> set of channels
	buffer      int
	logger      *slog.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Broadcaster{
		subscribers: make(map[string]map[chan []byte]struct{}),
		buffer:      DefaultSubscriberBuffer,
		logger:      logger,
	}
}

// Subscribe registers a buffered channel for chainID.
func (b *Broadcaster) Subscribe(ctx context.Context, chainID string) (<-chan []byte, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan []byte, b.buffer)
	if _, ok := b.subscribers[chainID]; !ok {
		b.subscribers[chainID] = make(map[chan []byte]struct{})
	}
	b.subscribers[chainID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subscribers[chainID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(b.subscribers, chainID)
				}
			}
		})
	}, nil
}

// Publish never blocks; a full subscriber misses the message.
func (b *Broadcaster) Publish(ctx context.Context, chainID string, msg []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs, ok := b.subscribers[chainID]
	if !ok {
		return nil
	}
	for ch := range subs {
		select {
		case ch <- msg:
		default:
			b.logger.Warn("subscriber buffer full, dropping message", "chain_id", chainID)
		}
	}
	return nil
}

// Subscribers reports how many subscribers chainID has.
func (b *Broadcaster) Subscribers(chainID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[chainID])
}
