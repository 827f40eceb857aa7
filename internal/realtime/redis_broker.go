package realtime

import (
	"context"
	"sync"

	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisBroker carries change signals over Redis pub/sub so every server
// replica sees writes made by the others.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, topic string) error {
	if err := b.client.Publish(ctx, topic, payloadUpdated).Err(); err != nil {
		logger.Error("Failed to publish change signal", err, map[string]interface{}{
			"topic": topic,
		})
		return err
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (<-chan struct{}, func(), error) {
	pubsub := b.client.Subscribe(ctx, topic)
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		logger.Error("Failed to subscribe to change signals", err, map[string]interface{}{
			"topic": topic,
		})
		return nil, nil, err
	}

	out := make(chan struct{}, 1)
	done := make(chan struct{})
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}

	go func() {
		defer close(out)
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				unsubscribe()
				return
			case <-done:
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				signal(out)
			}
		}
	}()

	return out, unsubscribe, nil
}

// Close leaves the shared client to its owner.
func (b *RedisBroker) Close() error {
	return nil
}
