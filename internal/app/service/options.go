package service

import (
	"context"
	"time"

	"github.com/ikkim/storefront-backend/internal/app/model"
)

// ProductCache is the local view of products and carts kept in sync by the
// live feed. Services read products from it first and push optimistic
// changes into it after each successful write.
type ProductCache interface {
	Product(id uint) (model.Product, bool)
	ProductByName(name string) (model.Product, bool)
	ApplyLocalStock(productID uint, stock int)
	ApplyLocalCartLine(sessionID string, item model.CartItem)
	RemoveLocalCartLine(sessionID string, cartItemID uint)
	ApplyLocalCart(sessionID string, items []model.CartItem)
}

// ChangeNotifier announces that a store changed so subscribers reload.
type ChangeNotifier interface {
	ProductsChanged(ctx context.Context)
	CartChanged(ctx context.Context, sessionID string)
}

type noopNotifier struct{}

func (noopNotifier) ProductsChanged(context.Context) {}
func (noopNotifier) CartChanged(context.Context, string) {}

type collaborators struct {
	cache      ProductCache
	notifier   ChangeNotifier
	removalTTL time.Duration
	now        func() time.Time
}

type Option func(*collaborators)

func WithProductCache(cache ProductCache) Option {
	return func(c *collaborators) {
		c.cache = cache
	}
}

func WithChangeNotifier(notifier ChangeNotifier) Option {
	return func(c *collaborators) {
		if notifier != nil {
			c.notifier = notifier
		}
	}
}

func WithRemovalTTL(ttl time.Duration) Option {
	return func(c *collaborators) {
		if ttl > 0 {
			c.removalTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *collaborators) {
		c.now = now
	}
}

func newCollaborators(opts []Option) collaborators {
	c := collaborators{
		notifier:   noopNotifier{},
		removalTTL: 5 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
