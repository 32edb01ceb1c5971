// Package redis fans chain emissions out over Redis pub/sub so every server
// replica can stream a chain that another replica is running.
// Messages are fire-and-forget: nothing is stored.
package redis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "stepwise:chain:"

// Broadcaster implements ports.Broadcaster using Redis pub/sub.
type Broadcaster struct {
	client *backend.Client
	prefix string
	buffer int
	logger *slog.Logger
}

// Option configures the Broadcaster.
type Option func(*Broadcaster)

// WithPrefix sets the channel prefix.
func WithPrefix(prefix string) Option {
	return func(b *Broadcaster) {
		b.prefix = prefix
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broadcaster) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a broadcaster connected to address.
func New(address, password string, db int, opts ...Option) *Broadcaster {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromClient creates a broadcaster from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		client: client,
		prefix: defaultPrefix,
		buffer: 16,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Broadcaster) channel(chainID string) string {
	return b.prefix + chainID
}

// Publish sends msg to every subscriber of chainID on any replica.
func (b *Broadcaster) Publish(ctx context.Context, chainID string, msg []byte) error {
	if err := b.client.Publish(ctx, b.channel(chainID), msg).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// Subscribe returns once Redis confirmed the subscription, so no message published
// after it returns is missed.
func (b *Broadcaster) Subscribe(ctx context.Context, chainID string) (<-chan []byte, func(), error) {
	pubsub := b.client.Subscribe(ctx, b.channel(chainID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to redis: %w", err)
	}

	out := make(chan []byte, b.buffer)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					b.logger.Warn("subscriber buffer full, dropping message", "chain_id", chainID)
				}
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
			wg.Wait()
		})
	}, nil
}

// Close closes the redis client.
func (b *Broadcaster) Close() error {
	return b.client.Close()
}
