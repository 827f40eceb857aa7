package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type feedFixture struct {
	broker   *MemoryBroker
	products repository.ProductRepository
	carts    repository.CartRepository
	feed     *Feed
}

func setupFeed(t *testing.T) *feedFixture {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	broker := NewMemoryBroker()
	t.Cleanup(func() {
		broker.Close()
	})

	products := repository.NewProductRepository(testDB)
	carts := repository.NewCartRepository(testDB)
	return &feedFixture{
		broker:   broker,
		products: products,
		carts:    carts,
		feed:     NewFeed(broker, products, carts),
	}
}

func nextProducts(t *testing.T, ch <-chan []model.Product) []model.Product {
	t.Helper()
	select {
	case snapshot := <-ch:
		return snapshot
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for product snapshot")
		return nil
	}
}

func TestFeed_ProductSnapshots(t *testing.T) {
	f := setupFeed(t)
	ctx := context.Background()

	product := &model.Product{Name: "Lamp", Description: "Desk lamp", Price: 30, Stock: 5}
	require.NoError(t, f.products.Create(ctx, product))

	snapshots := make(chan []model.Product, 4)
	stop := f.feed.SubscribeProducts(ctx, func(p []model.Product) {
		snapshots <- p
	}, nil)
	defer stop()

	initial := nextProducts(t, snapshots)
	require.Len(t, initial, 1)
	assert.Equal(t, 5, initial[0].Stock)

	require.NoError(t, f.products.SetStock(ctx, product.ID, 2))
	f.feed.ProductsChanged(ctx)

	updated := nextProducts(t, snapshots)
	require.Len(t, updated, 1)
	assert.Equal(t, 2, updated[0].Stock)
}

func TestFeed_CartSnapshotsAreSessionScoped(t *testing.T) {
	f := setupFeed(t)
	ctx := context.Background()

	product := &model.Product{Name: "Pen", Description: "Blue pen", Price: 2, Stock: 10}
	require.NoError(t, f.products.Create(ctx, product))

	snapshots := make(chan []model.CartItem, 4)
	stop := f.feed.SubscribeCart(ctx, "anon_mine", func(items []model.CartItem) {
		snapshots <- items
	})
	defer stop()

	select {
	case items := <-snapshots:
		assert.Empty(t, items)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial cart snapshot")
	}

	f.feed.CartChanged(ctx, "anon_other")
	select {
	case <-snapshots:
		t.Fatal("another session's change must not reload this cart")
	case <-time.After(50 * time.Millisecond):
	}

	_, err := f.carts.AddQuantity(ctx, &model.CartItem{
		SessionID: "anon_mine",
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Quantity:  1,
	})
	require.NoError(t, err)
	f.feed.CartChanged(ctx, "anon_mine")

	select {
	case items := <-snapshots:
		require.Len(t, items, 1)
		assert.Equal(t, "Pen", items[0].Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cart snapshot")
	}
}

func TestFeed_StopEndsDelivery(t *testing.T) {
	f := setupFeed(t)
	ctx := context.Background()

	snapshots := make(chan []model.Product, 4)
	stop := f.feed.SubscribeProducts(ctx, func(p []model.Product) {
		snapshots <- p
	}, nil)
	nextProducts(t, snapshots)

	stop()
	assert.Equal(t, 0, f.broker.Subscribers(TopicProducts))

	f.feed.ProductsChanged(ctx)
	select {
	case <-snapshots:
		t.Fatal("snapshot delivered after stop")
	case <-time.After(50 * time.Millisecond):
	}
}

type failingLister struct{}

func (failingLister) FindAll(context.Context) ([]model.Product, error) {
	return nil, errors.New("store offline")
}

func TestFeed_LoadFailureReportsError(t *testing.T) {
	broker := NewMemoryBroker()
	defer broker.Close()
	feed := NewFeed(broker, failingLister{}, nil)

	errs := make(chan error, 1)
	stop := feed.SubscribeProducts(context.Background(), func([]model.Product) {
		t.Error("no snapshot expected")
	}, func(err error) {
		errs <- err
	})
	defer stop()

	select {
	case err := <-errs:
		assert.EqualError(t, err, "store offline")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error")
	}
}

func TestMirror_FollowsFeed(t *testing.T) {
	f := setupFeed(t)
	ctx := context.Background()

	product := &model.Product{Name: "Cup", Description: "Tea cup", Price: 8, Stock: 6}
	require.NoError(t, f.products.Create(ctx, product))

	mirror := NewMirror()
	stop := mirror.Follow(ctx, f.feed, nil)
	defer stop()

	require.Eventually(t, func() bool {
		return mirror.ProductsStatus() == StatusSynced
	}, 2*time.Second, 10*time.Millisecond)

	mirror.ApplyLocalStock(product.ID, 1)
	assert.Equal(t, StatusOptimistic, mirror.ProductsStatus())

	f.feed.ProductsChanged(ctx)
	require.Eventually(t, func() bool {
		p, ok := mirror.Product(product.ID)
		return ok && p.Stock == 6 && mirror.ProductsStatus() == StatusSynced
	}, 2*time.Second, 10*time.Millisecond)
}
