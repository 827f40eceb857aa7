package realtime

import (
	"context"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
)

type ProductLister interface {
	FindAll(ctx context.Context) ([]model.Product, error)
}

type CartReader interface {
	FindBySession(ctx context.Context, sessionID string) ([]model.CartItem, error)
}

// Feed turns change signals into full snapshots. Every signal reloads the
// whole collection from the store, so subscribers never apply deltas.
type Feed struct {
	broker   Broker
	products ProductLister
	carts    CartReader
}

func NewFeed(broker Broker, products ProductLister, carts CartReader) *Feed {
	return &Feed{
		broker:   broker,
		products: products,
		carts:    carts,
	}
}

// SubscribeProducts delivers the current product list immediately and again
// after every product change. onError receives load and subscribe failures;
// it may be nil. The returned func stops delivery.
func (f *Feed) SubscribeProducts(ctx context.Context, onSnapshot func([]model.Product), onError func(error)) func() {
	load := func(ctx context.Context) {
		products, err := f.products.FindAll(ctx)
		if err != nil {
			logger.Error("Failed to load product snapshot", err)
			if onError != nil {
				onError(err)
			}
			return
		}
		onSnapshot(products)
	}
	return f.watch(ctx, TopicProducts, load, onError)
}

// SubscribeCart delivers the session's cart immediately and after every
// change to it.
func (f *Feed) SubscribeCart(ctx context.Context, sessionID string, onSnapshot func([]model.CartItem)) func() {
	load := func(ctx context.Context) {
		items, err := f.carts.FindBySession(ctx, sessionID)
		if err != nil {
			logger.Error("Failed to load cart snapshot", err, map[string]interface{}{
				"session_id": sessionID,
			})
			return
		}
		onSnapshot(items)
	}
	return f.watch(ctx, CartTopic(sessionID), load, nil)
}

func (f *Feed) watch(parent context.Context, topic string, load func(context.Context), onError func(error)) func() {
	ctx, cancel := context.WithCancel(parent)

	signals, unsubscribe, err := f.broker.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		if onError != nil {
			onError(err)
		}
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		load(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				load(ctx)
			}
		}
	}()

	return func() {
		cancel()
		unsubscribe()
		<-done
	}
}

// ProductsChanged publishes a product change signal. Failures are logged
// only; a missed signal is repaired by the next one.
func (f *Feed) ProductsChanged(ctx context.Context) {
	if err := f.broker.Publish(ctx, TopicProducts); err != nil {
		logger.Warn("Product change signal dropped", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (f *Feed) CartChanged(ctx context.Context, sessionID string) {
	if err := f.broker.Publish(ctx, CartTopic(sessionID)); err != nil {
		logger.Warn("Cart change signal dropped", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
}
