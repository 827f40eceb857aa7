package realtime

import (
	"context"
	"sync"

	"github.com/ikkim/storefront-backend/pkg/logger"
)

type subscriber struct {
	topic string
	ch    chan struct{}
}

// MemoryBroker is the single-process Broker. Subscribers are grouped per
// topic so one process can serve many sessions.
type MemoryBroker struct {
	mu     sync.RWMutex
	topics map[string][]*subscriber
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		topics: make(map[string][]*subscriber),
	}
}

func (b *MemoryBroker) Publish(_ context.Context, topic string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.topics[topic] {
		signal(sub.ch)
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topic string) (<-chan struct{}, func(), error) {
	sub := &subscriber{topic: topic, ch: make(chan struct{}, 1)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		ch := make(chan struct{})
		close(ch)
		return ch, func() {}, nil
	}
	b.topics[topic] = append(b.topics[topic], sub)
	count := len(b.topics[topic])
	b.mu.Unlock()

	logger.Debug("Realtime subscriber registered", map[string]interface{}{
		"topic":       topic,
		"subscribers": count,
	})

	done := make(chan struct{})
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(done)
			b.remove(sub)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-done:
		}
	}()

	return sub.ch, unsubscribe, nil
}

func (b *MemoryBroker) remove(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list, ok := b.topics[sub.topic]
	if !ok {
		return
	}
	remaining := make([]*subscriber, 0, len(list))
	for _, s := range list {
		if s != sub {
			remaining = append(remaining, s)
		}
	}
	if len(remaining) == 0 {
		delete(b.topics, sub.topic)
	} else {
		b.topics[sub.topic] = remaining
	}
	close(sub.ch)

	logger.Debug("Realtime subscriber unregistered", map[string]interface{}{
		"topic":     sub.topic,
		"remaining": len(remaining),
	})
}

// Subscribers reports how many subscribers listen on topic.
func (b *MemoryBroker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, list := range b.topics {
		for _, sub := range list {
			close(sub.ch)
		}
		delete(b.topics, topic)
	}
	b.closed = true
	return nil
}
