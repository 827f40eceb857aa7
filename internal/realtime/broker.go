package realtime

import (
	"context"
)

const (
	TopicProducts   = "products"
	cartTopicPrefix = "cart:"

	payloadUpdated = "updated"
)

// CartTopic is the change topic of one session's cart.
func CartTopic(sessionID string) string {
	return cartTopicPrefix + sessionID
}

// Broker fans change signals out to subscribers. Signals carry no payload:
// a subscriber that receives one reloads the full snapshot. Pending signals
// coalesce, so a slow subscriber sees at most one queued signal.
type Broker interface {
	Publish(ctx context.Context, topic string) error
	Subscribe(ctx context.Context, topic string) (<-chan struct{}, func(), error)
	Close() error
}

// signal performs a non-blocking send on a buffer of one.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
