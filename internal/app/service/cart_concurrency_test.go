package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// barrierCarts holds the first n cart line lookups until all of them have
// read, so every caller sees the same starting quantity.
type barrierCarts struct {
	repository.CartRepository
	calls   int32
	n       int32
	arrived sync.WaitGroup
}

func newBarrierCarts(inner repository.CartRepository, n int) *barrierCarts {
	b := &barrierCarts{CartRepository: inner, n: int32(n)}
	b.arrived.Add(n)
	return b
}

func (b *barrierCarts) FindBySessionAndProduct(ctx context.Context, sessionID string, productID uint) (*model.CartItem, error) {
	item, err := b.CartRepository.FindBySessionAndProduct(ctx, sessionID, productID)
	if atomic.AddInt32(&b.calls, 1) <= b.n {
		b.arrived.Done()
		b.arrived.Wait()
	}
	return item, err
}

// interleavedCarts runs afterRead once, right after the first line read,
// standing in for a second tab writing between read and write.
type interleavedCarts struct {
	repository.CartRepository
	once      sync.Once
	afterRead func()
}

func (c *interleavedCarts) FindByID(ctx context.Context, id uint) (*model.CartItem, error) {
	item, err := c.CartRepository.FindByID(ctx, id)
	c.once.Do(c.afterRead)
	return item, err
}

func (f *storeFixture) cartQuantity(t *testing.T, sessionID string, productID uint) int {
	item, err := f.carts.FindBySessionAndProduct(context.Background(), sessionID, productID)
	require.NoError(t, err)
	return item.Quantity
}

func TestCartService_ConcurrentAddSameSessionKeepsStockAndCartInStep(t *testing.T) {
	f := setupStoreFixture(t)
	lamp := f.createProduct(t, "Lamp", 20, 10)

	carts := newBarrierCarts(f.carts, 2)
	svc := NewCartService(carts, f.products, NewMemoryRemovalStore(), f.pricer)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := svc.AddToCart(ctx, sessionA, ProductRef{ID: lamp.ID}, 2)
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 6, f.stockOf(t, lamp.ID))
	assert.Equal(t, 4, f.cartQuantity(t, sessionA, lamp.ID), "every reserved unit is in the cart")
}

func TestCartService_UpdateQuantityRejectsStaleRead(t *testing.T) {
	f := setupStoreFixture(t)
	lamp := f.createProduct(t, "Lamp", 20, 10)
	ctx := context.Background()

	added, err := f.cartService().AddToCart(ctx, sessionA, ProductRef{ID: lamp.ID}, 2)
	require.NoError(t, err)

	carts := &interleavedCarts{CartRepository: f.carts}
	carts.afterRead = func() {
		_, err := NewCartService(f.carts, f.products, NewMemoryRemovalStore(), f.pricer).
			AddToCart(ctx, sessionA, ProductRef{ID: lamp.ID}, 1)
		require.NoError(t, err)
	}
	svc := NewCartService(carts, f.products, NewMemoryRemovalStore(), f.pricer)

	_, err = svc.UpdateQuantity(ctx, sessionA, added.Item.ID, 4)
	require.ErrorIs(t, err, ErrCartItemChanged)

	assert.Equal(t, 3, f.cartQuantity(t, sessionA, lamp.ID))
	assert.Equal(t, 7, f.stockOf(t, lamp.ID), "the rejected update gives its stock back")
}

func TestCartService_ConfirmRemovalRestoresQuantityHeldAtDelete(t *testing.T) {
	f := setupStoreFixture(t)
	svc := f.cartService()
	lamp := f.createProduct(t, "Lamp", 20, 10)
	ctx := context.Background()

	added, err := svc.AddToCart(ctx, sessionA, ProductRef{ID: lamp.ID}, 2)
	require.NoError(t, err)

	pending, err := svc.RequestRemoval(ctx, sessionA, added.Item.ID)
	require.NoError(t, err)

	// Another tab adds one more before the removal is confirmed.
	_, err = svc.AddToCart(ctx, sessionA, ProductRef{ID: lamp.ID}, 1)
	require.NoError(t, err)
	assert.Equal(t, 7, f.stockOf(t, lamp.ID))

	result, err := svc.ConfirmRemoval(ctx, sessionA, pending.Token)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Quantity)
	assert.Equal(t, 10, f.stockOf(t, lamp.ID))
}
