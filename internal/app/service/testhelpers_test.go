package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ikkim/storefront-backend/config"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/db"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func defaultCheckoutConfig() config.CheckoutConfig {
	return config.CheckoutConfig{
		TaxRate:           0.10,
		ShippingPolicy:    "flat",
		FlatShippingRate:  10,
		FreeShippingOver:  100,
		ThresholdShipping: 9.99,
		DefaultEmail:      "customer@example.com",
		DeliveryDays:      7,
	}
}

type recordingNotifier struct {
	mu             sync.Mutex
	productChanges int
	cartChanges    map[string]int
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{cartChanges: make(map[string]int)}
}

func (n *recordingNotifier) ProductsChanged(context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.productChanges++
}

func (n *recordingNotifier) CartChanged(_ context.Context, sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cartChanges[sessionID]++
}

func (n *recordingNotifier) cartCount(sessionID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cartChanges[sessionID]
}

func (n *recordingNotifier) productCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.productChanges
}

// fakeCache is a minimal ProductCache keyed by product id.
type fakeCache struct {
	mu       sync.Mutex
	products map[uint]model.Product
	carts    map[string]map[uint]model.CartItem
}

func newFakeCache(products ...model.Product) *fakeCache {
	c := &fakeCache{
		products: make(map[uint]model.Product),
		carts:    make(map[string]map[uint]model.CartItem),
	}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *fakeCache) Product(id uint) (model.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	return p, ok
}

func (c *fakeCache) ProductByName(name string) (model.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.products {
		if p.Name == name {
			return p, true
		}
	}
	return model.Product{}, false
}

func (c *fakeCache) ApplyLocalStock(productID uint, stock int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.products[productID]; ok {
		p.Stock = stock
		c.products[productID] = p
	}
}

func (c *fakeCache) ApplyLocalCartLine(sessionID string, item model.CartItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.carts[sessionID] == nil {
		c.carts[sessionID] = make(map[uint]model.CartItem)
	}
	c.carts[sessionID][item.ID] = item
}

func (c *fakeCache) RemoveLocalCartLine(sessionID string, cartItemID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.carts[sessionID], cartItemID)
}

func (c *fakeCache) ApplyLocalCart(sessionID string, items []model.CartItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := make(map[uint]model.CartItem, len(items))
	for _, item := range items {
		lines[item.ID] = item
	}
	c.carts[sessionID] = lines
}

func (c *fakeCache) cartLines(sessionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.carts[sessionID])
}

type storeFixture struct {
	db       *gorm.DB
	products repository.ProductRepository
	carts    repository.CartRepository
	orders   repository.OrderRepository
	notifier *recordingNotifier
	pricer   *Pricer
}

func setupStoreFixture(t *testing.T) *storeFixture {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	return &storeFixture{
		db:       testDB,
		products: repository.NewProductRepository(testDB),
		carts:    repository.NewCartRepository(testDB),
		orders:   repository.NewOrderRepository(testDB),
		notifier: newRecordingNotifier(),
		pricer:   NewPricer(defaultCheckoutConfig()),
	}
}

func (f *storeFixture) createProduct(t *testing.T, name string, price float64, stock int) *model.Product {
	product := &model.Product{
		Name:        name,
		Description: name + " description",
		Price:       price,
		Stock:       stock,
		Image:       "https://example.com/" + name + ".jpg",
	}
	require.NoError(t, f.products.Create(context.Background(), product))
	return product
}

func (f *storeFixture) stockOf(t *testing.T, id uint) int {
	product, err := f.products.FindByID(context.Background(), id)
	require.NoError(t, err)
	return product.Stock
}

func (f *storeFixture) cartService(opts ...Option) CartService {
	opts = append([]Option{WithChangeNotifier(f.notifier)}, opts...)
	return NewCartService(f.carts, f.products, NewMemoryRemovalStore(), f.pricer, opts...)
}

func redisTestClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available, skipping integration test:", err)
	}
	t.Cleanup(func() {
		client.Close()
	})
	return client
}
