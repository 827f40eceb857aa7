package app

import (
	"context"
	"testing"
	"time"

	"github.com/ikkim/storefront-backend/config"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/app/service"
	"github.com/ikkim/storefront-backend/internal/db"
	"github.com/ikkim/storefront-backend/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// instance is one server process: its own mirror and services over the
// shared database and broker.
type instance struct {
	mirror   *realtime.Mirror
	products service.ProductService
	carts    service.CartService
	checkout service.CheckoutService
}

func newInstance(t *testing.T, testDB *gorm.DB, broker realtime.Broker) *instance {
	productRepo := repository.NewProductRepository(testDB)
	cartRepo := repository.NewCartRepository(testDB)
	orderRepo := repository.NewOrderRepository(testDB)

	checkoutCfg := config.CheckoutConfig{
		TaxRate:          0.10,
		ShippingPolicy:   "flat",
		FlatShippingRate: 10,
		DefaultEmail:     "customer@example.com",
		DeliveryDays:     7,
	}

	feed := realtime.NewFeed(broker, productRepo, cartRepo)
	mirror := realtime.NewMirror()
	stop := mirror.Follow(context.Background(), feed, nil)
	t.Cleanup(stop)

	pricer := service.NewPricer(checkoutCfg)
	opts := []service.Option{
		service.WithProductCache(mirror),
		service.WithChangeNotifier(feed),
	}

	return &instance{
		mirror:   mirror,
		products: service.NewProductService(productRepo, opts...),
		carts:    service.NewCartService(cartRepo, productRepo, service.NewMemoryRemovalStore(), pricer, opts...),
		checkout: service.NewCheckoutService(cartRepo, productRepo, orderRepo, pricer, checkoutCfg, opts...),
	}
}

func stockInMirror(m *realtime.Mirror, id uint) int {
	p, ok := m.Product(id)
	if !ok {
		return -1
	}
	return p.Stock
}

func TestInstancesConvergeOnSharedStore(t *testing.T) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	defer db.CleanupTestDB(testDB)

	broker := realtime.NewMemoryBroker()
	defer broker.Close()

	a := newInstance(t, testDB, broker)
	b := newInstance(t, testDB, broker)
	ctx := context.Background()

	created, err := a.products.CreateProduct(ctx, service.ProductInput{
		Name:        "Wool Hat",
		Description: "Warm",
		Price:       20,
		Stock:       3,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return stockInMirror(b.mirror, created.ID) == 3
	}, time.Second, 10*time.Millisecond)

	_, err = a.carts.AddToCart(ctx, "session-a", service.ProductRef{ID: created.ID}, 2)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return stockInMirror(b.mirror, created.ID) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, realtime.StatusSynced, b.mirror.ProductsStatus())

	_, err = b.carts.AddToCart(ctx, "session-b", service.ProductRef{ID: created.ID}, 2)
	var stockErr *service.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 1, stockErr.Available)

	_, err = b.carts.AddToCart(ctx, "session-b", service.ProductRef{ID: created.ID}, 1)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return stockInMirror(a.mirror, created.ID) == 0
	}, time.Second, 10*time.Millisecond)

	confirmation, err := a.checkout.Checkout(ctx, "session-a", service.CheckoutRequest{})
	require.NoError(t, err)
	require.Len(t, confirmation.Items, 1)
	assert.Equal(t, 2, confirmation.Items[0].Quantity)
	assert.InDelta(t, 54.0, confirmation.Total, 0.001)

	order, err := b.checkout.GetOrder(ctx, "session-a", confirmation.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, confirmation.OrderNumber, order.OrderNumber)

	items, err := b.carts.GetCart(ctx, "session-a")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRemoteSnapshotReplacesOptimisticState(t *testing.T) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	defer db.CleanupTestDB(testDB)

	broker := realtime.NewMemoryBroker()
	defer broker.Close()

	a := newInstance(t, testDB, broker)
	ctx := context.Background()

	product := &model.Product{Name: "Coffee Mug", Description: "Ceramic", Price: 12, Stock: 5}
	require.NoError(t, repository.NewProductRepository(testDB).Create(ctx, product))
	require.NoError(t, broker.Publish(ctx, realtime.TopicProducts))

	require.Eventually(t, func() bool {
		return stockInMirror(a.mirror, product.ID) == 5
	}, time.Second, 10*time.Millisecond)

	a.mirror.ApplyLocalStock(product.ID, 99)
	assert.Equal(t, realtime.StatusOptimistic, a.mirror.ProductsStatus())

	require.NoError(t, broker.Publish(ctx, realtime.TopicProducts))
	require.Eventually(t, func() bool {
		return stockInMirror(a.mirror, product.ID) == 5 &&
			a.mirror.ProductsStatus() == realtime.StatusSynced
	}, time.Second, 10*time.Millisecond)
}
