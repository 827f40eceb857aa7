package realtime

import (
	"context"
	"sort"
	"sync"

	"github.com/ikkim/storefront-backend/internal/app/model"
)

// SyncStatus describes where a mirrored collection last came from.
type SyncStatus int

const (
	// StatusEmpty means no snapshot has arrived yet.
	StatusEmpty SyncStatus = iota
	// StatusSynced means the state equals the last remote snapshot.
	StatusSynced
	// StatusOptimistic means local changes were applied on top of the last
	// snapshot and the next snapshot will overwrite them.
	StatusOptimistic
)

func (s SyncStatus) String() string {
	switch s {
	case StatusSynced:
		return "synced"
	case StatusOptimistic:
		return "optimistic"
	default:
		return "empty"
	}
}

type mirroredCart struct {
	status   SyncStatus
	items    []model.CartItem
	watchers int
}

// Mirror is the process-local view of products and watched carts. Remote
// snapshots replace state wholesale; local changes only patch it until the
// next snapshot lands.
//
// Carts are tracked only for sessions someone is watching. Local cart
// changes for untracked sessions are ignored.
type Mirror struct {
	mu             sync.RWMutex
	products       map[uint]model.Product
	productsStatus SyncStatus
	carts          map[string]*mirroredCart
}

func NewMirror() *Mirror {
	return &Mirror{
		products: make(map[uint]model.Product),
		carts:    make(map[string]*mirroredCart),
	}
}

func (m *Mirror) ApplyProductsSnapshot(products []model.Product) {
	next := make(map[uint]model.Product, len(products))
	for _, p := range products {
		next[p.ID] = p
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = next
	m.productsStatus = StatusSynced
}

func (m *Mirror) ApplyCartSnapshot(sessionID string, items []model.CartItem) {
	copied := make([]model.CartItem, len(items))
	copy(copied, items)

	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[sessionID]
	if !ok {
		cart = &mirroredCart{}
		m.carts[sessionID] = cart
	}
	cart.items = copied
	cart.status = StatusSynced
}

func (m *Mirror) retainCart(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[sessionID]
	if !ok {
		cart = &mirroredCart{}
		m.carts[sessionID] = cart
	}
	cart.watchers++
}

func (m *Mirror) releaseCart(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[sessionID]
	if !ok {
		return
	}
	cart.watchers--
	if cart.watchers <= 0 {
		delete(m.carts, sessionID)
	}
}

func (m *Mirror) Product(id uint) (model.Product, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	return p, ok
}

func (m *Mirror) ProductByName(name string) (model.Product, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.products {
		if p.Name == name {
			return p, true
		}
	}
	return model.Product{}, false
}

// Products returns the mirrored products ordered by id.
func (m *Mirror) Products() []model.Product {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Mirror) ProductsStatus() SyncStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.productsStatus
}

// Cart returns the mirrored cart of a session and whether it is tracked.
func (m *Mirror) Cart(sessionID string) ([]model.CartItem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cart, ok := m.carts[sessionID]
	if !ok {
		return nil, false
	}
	out := make([]model.CartItem, len(cart.items))
	copy(out, cart.items)
	return out, true
}

func (m *Mirror) CartStatus(sessionID string) SyncStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if cart, ok := m.carts[sessionID]; ok {
		return cart.status
	}
	return StatusEmpty
}

func (m *Mirror) ApplyLocalStock(productID uint, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return
	}
	p.Stock = stock
	m.products[productID] = p
	m.productsStatus = StatusOptimistic
}

func (m *Mirror) ApplyLocalCartLine(sessionID string, item model.CartItem) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[sessionID]
	if !ok {
		return
	}
	for i := range cart.items {
		if cart.items[i].ID == item.ID {
			cart.items[i] = item
			cart.status = StatusOptimistic
			return
		}
	}
	cart.items = append(cart.items, item)
	cart.status = StatusOptimistic
}

func (m *Mirror) RemoveLocalCartLine(sessionID string, cartItemID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[sessionID]
	if !ok {
		return
	}
	kept := cart.items[:0]
	for _, item := range cart.items {
		if item.ID != cartItemID {
			kept = append(kept, item)
		}
	}
	cart.items = kept
	cart.status = StatusOptimistic
}

func (m *Mirror) ApplyLocalCart(sessionID string, items []model.CartItem) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[sessionID]
	if !ok {
		return
	}
	cart.items = make([]model.CartItem, len(items))
	copy(cart.items, items)
	cart.status = StatusOptimistic
}

// Follow keeps the product side of the mirror fed from the feed until the
// returned func is called.
func (m *Mirror) Follow(ctx context.Context, feed *Feed, onError func(error)) func() {
	return feed.SubscribeProducts(ctx, m.ApplyProductsSnapshot, onError)
}

// WatchCart tracks one session's cart while the returned func is not called.
// onSnapshot, when set, receives each snapshot after it is applied.
func (m *Mirror) WatchCart(ctx context.Context, feed *Feed, sessionID string, onSnapshot func([]model.CartItem)) func() {
	m.retainCart(sessionID)
	stop := feed.SubscribeCart(ctx, sessionID, func(items []model.CartItem) {
		m.ApplyCartSnapshot(sessionID, items)
		if onSnapshot != nil {
			onSnapshot(items)
		}
	})
	return func() {
		stop()
		m.releaseCart(sessionID)
	}
}
