package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

// ProductRef identifies the product a shopper asked for. Name is used when
// the id no longer resolves.
type ProductRef struct {
	ID   uint   `json:"product_id"`
	Name string `json:"name"`
}

type AddToCartResult struct {
	Item           *model.CartItem `json:"item"`
	RemainingStock int             `json:"remaining_stock"`
	Notification   *Notification   `json:"notification"`
}

type UpdateQuantityResult struct {
	Item                 *model.CartItem `json:"item,omitempty"`
	RemainingStock       int             `json:"remaining_stock"`
	ConfirmationRequired bool            `json:"confirmation_required"`
	PendingRemoval       *PendingRemoval `json:"pending_removal,omitempty"`
	Notification         *Notification   `json:"notification,omitempty"`
}

type RemovalResult struct {
	CartItemID    uint          `json:"cart_item_id"`
	ProductID     uint          `json:"product_id"`
	Quantity      int           `json:"quantity"`
	StockRestored bool          `json:"stock_restored"`
	Notification  *Notification `json:"notification"`
}

// OversubscribedLine flags a recovered line whose merged quantity is no
// longer covered by the product's current stock.
type OversubscribedLine struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Stock     int    `json:"stock"`
	Deleted   bool   `json:"deleted"`
}

type RecoveryResult struct {
	Recovered      bool                 `json:"recovered"`
	Items          []model.CartItem     `json:"items"`
	Oversubscribed []OversubscribedLine `json:"oversubscribed,omitempty"`
	Notification   *Notification        `json:"notification,omitempty"`
}

type CartSummary struct {
	ItemCount int `json:"item_count"`
	LineCount int `json:"line_count"`
	Totals
}

type CartService interface {
	GetCart(ctx context.Context, sessionID string) ([]model.CartItem, error)
	Summary(ctx context.Context, sessionID string) (*CartSummary, error)
	AddToCart(ctx context.Context, sessionID string, ref ProductRef, quantity int) (*AddToCartResult, error)
	UpdateQuantity(ctx context.Context, sessionID string, cartItemID uint, quantity int) (*UpdateQuantityResult, error)
	RequestRemoval(ctx context.Context, sessionID string, cartItemID uint) (*PendingRemoval, error)
	ConfirmRemoval(ctx context.Context, sessionID, token string) (*RemovalResult, error)
	CancelRemoval(ctx context.Context, sessionID, token string) error
	RecoverCart(ctx context.Context, sessionID string) (*RecoveryResult, error)
	ReleaseStaleReservations(ctx context.Context, before time.Time) (int, error)
	PurgeExpiredRemovals(ctx context.Context) (int, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	removals    PendingRemovalStore
	pricer      *Pricer
	collaborators
}

func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	removals PendingRemovalStore,
	pricer *Pricer,
	opts ...Option,
) CartService {
	if removals == nil {
		removals = NewMemoryRemovalStore()
	}
	return &cartService{
		cartRepo:      cartRepo,
		productRepo:   productRepo,
		removals:      removals,
		pricer:        pricer,
		collaborators: newCollaborators(opts),
	}
}

func (s *cartService) GetCart(ctx context.Context, sessionID string) ([]model.CartItem, error) {
	items, err := s.cartRepo.FindBySession(ctx, sessionID)
	if err != nil {
		logger.Error("Failed to fetch session cart", err, map[string]interface{}{
			"session_id": sessionID,
		})
		return nil, err
	}
	return items, nil
}

func (s *cartService) Summary(ctx context.Context, sessionID string) (*CartSummary, error) {
	items, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	summary := &CartSummary{
		LineCount: len(items),
		Totals:    s.pricer.Compute(items),
	}
	for _, item := range items {
		summary.ItemCount += item.Quantity
	}
	return summary, nil
}

func (s *cartService) AddToCart(ctx context.Context, sessionID string, ref ProductRef, quantity int) (*AddToCartResult, error) {
	log := logger.WithContext(map[string]interface{}{
		"session_id":   sessionID,
		"product_id":   ref.ID,
		"product_name": ref.Name,
		"quantity":     quantity,
	})
	log.Info("Adding item to cart")

	if quantity < 1 {
		log.Warn("Cannot add to cart: invalid quantity")
		return nil, ErrInvalidQuantity
	}

	product, cached, err := s.resolveProduct(ctx, ref)
	if err != nil {
		return nil, err
	}

	inCart, err := s.currentCartQuantity(ctx, sessionID, product.ID)
	if err != nil {
		return nil, err
	}

	// A cached product may be behind the store; confirm before rejecting.
	if product.Stock < quantity && cached {
		fresh, err := s.productRepo.FindByID(ctx, product.ID)
		if err == nil {
			product = fresh
		}
	}
	if product.Stock < quantity {
		log.Warn("Cannot add to cart: insufficient stock", map[string]interface{}{
			"stock":   product.Stock,
			"in_cart": inCart,
		})
		return nil, &InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   quantity,
			Available:   product.Stock,
			InCart:      inCart,
		}
	}

	if err := s.productRepo.DecrementStockIfAvailable(ctx, product.ID, quantity); err != nil {
		return nil, s.reservationFailure(ctx, product, quantity, inCart, err)
	}

	remaining := s.currentStock(ctx, product.ID, product.Stock-quantity)

	line := &model.CartItem{
		SessionID:  sessionID,
		ProductID:  product.ID,
		Name:       product.Name,
		Price:      product.Price,
		Image:      product.Image,
		Quantity:   quantity,
		StockAtAdd: remaining,
	}
	stored, err := s.cartRepo.AddQuantity(ctx, line)
	if err != nil {
		log.Error("Stock reserved but cart write failed", err, map[string]interface{}{
			"reserved": quantity,
		})
		return nil, &StoreWriteError{Op: "upsert cart item", Err: err}
	}

	if s.cache != nil {
		s.cache.ApplyLocalStock(product.ID, remaining)
		s.cache.ApplyLocalCartLine(sessionID, *stored)
	}
	s.notifier.ProductsChanged(ctx)
	s.notifier.CartChanged(ctx, sessionID)

	log.Info("Item added to cart", map[string]interface{}{
		"cart_item_id": stored.ID,
		"cart_qty":     stored.Quantity,
		"remaining":    remaining,
	})

	return &AddToCartResult{
		Item:           stored,
		RemainingStock: remaining,
		Notification:   Success(fmt.Sprintf("%s added to cart! (%d remaining)", product.Name, remaining)),
	}, nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, sessionID string, cartItemID uint, quantity int) (*UpdateQuantityResult, error) {
	log := logger.WithContext(map[string]interface{}{
		"session_id":   sessionID,
		"cart_item_id": cartItemID,
		"quantity":     quantity,
	})
	log.Info("Updating cart item quantity")

	if quantity <= 0 {
		removal, err := s.RequestRemoval(ctx, sessionID, cartItemID)
		if err != nil {
			return nil, err
		}
		return &UpdateQuantityResult{
			ConfirmationRequired: true,
			PendingRemoval:       removal,
		}, nil
	}

	item, err := s.findSessionItem(ctx, sessionID, cartItemID)
	if err != nil {
		return nil, err
	}

	delta := quantity - item.Quantity
	if delta == 0 {
		log.Debug("Quantity unchanged, nothing to write")
		return &UpdateQuantityResult{
			Item:           item,
			RemainingStock: s.currentStock(ctx, item.ProductID, 0),
		}, nil
	}

	if delta > 0 {
		if err := s.productRepo.DecrementStockIfAvailable(ctx, item.ProductID, delta); err != nil {
			product := &model.Product{ID: item.ProductID, Name: item.Name}
			return nil, s.reservationFailure(ctx, product, delta, item.Quantity, err)
		}
	} else {
		if err := s.productRepo.IncrementStock(ctx, item.ProductID, -delta); err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, &StoreWriteError{Op: "restore stock", Err: err}
			}
			log.Warn("Product no longer exists, lowering quantity without restoring stock")
		}
	}

	if err := s.cartRepo.UpdateQuantity(ctx, item.ID, item.Quantity, quantity); err != nil {
		switch {
		case errors.Is(err, repository.ErrQuantityChanged):
			log.Warn("Cart item changed since it was read, undoing stock adjustment", map[string]interface{}{
				"delta": delta,
			})
			s.undoStockDelta(ctx, item.ProductID, delta)
			return nil, ErrCartItemChanged
		case errors.Is(err, gorm.ErrRecordNotFound):
			s.undoStockDelta(ctx, item.ProductID, delta)
			return nil, ErrCartItemNotFound
		}
		log.Error("Stock adjusted but cart write failed", err, map[string]interface{}{
			"delta": delta,
		})
		return nil, &StoreWriteError{Op: "update cart item", Err: err}
	}
	item.Quantity = quantity

	remaining := s.currentStock(ctx, item.ProductID, 0)
	if s.cache != nil {
		s.cache.ApplyLocalStock(item.ProductID, remaining)
		s.cache.ApplyLocalCartLine(sessionID, *item)
	}
	s.notifier.ProductsChanged(ctx)
	s.notifier.CartChanged(ctx, sessionID)

	log.Info("Cart item quantity updated", map[string]interface{}{
		"delta":     delta,
		"remaining": remaining,
	})

	return &UpdateQuantityResult{
		Item:           item,
		RemainingStock: remaining,
		Notification:   Success(fmt.Sprintf("%s quantity updated to %d", item.Name, quantity)),
	}, nil
}

func (s *cartService) RequestRemoval(ctx context.Context, sessionID string, cartItemID uint) (*PendingRemoval, error) {
	item, err := s.findSessionItem(ctx, sessionID, cartItemID)
	if err != nil {
		return nil, err
	}

	removal := PendingRemoval{
		Token:      uuid.NewString(),
		SessionID:  sessionID,
		CartItemID: item.ID,
		ProductID:  item.ProductID,
		Name:       item.Name,
		Quantity:   item.Quantity,
		ExpiresAt:  s.now().Add(s.removalTTL),
	}
	if err := s.removals.Save(ctx, removal); err != nil {
		return nil, err
	}

	logger.Info("Cart removal pending confirmation", map[string]interface{}{
		"session_id":   sessionID,
		"cart_item_id": item.ID,
		"expires_at":   removal.ExpiresAt,
	})
	return &removal, nil
}

// ConfirmRemoval deletes the line first and then restores stock. A failed
// restore still reports the removal, downgraded to a warning.
func (s *cartService) ConfirmRemoval(ctx context.Context, sessionID, token string) (*RemovalResult, error) {
	removal, err := s.removals.Take(ctx, sessionID, token)
	if err != nil {
		logger.Warn("Cannot confirm removal: not pending", map[string]interface{}{
			"session_id": sessionID,
		})
		return nil, err
	}

	item, err := s.deleteSessionItem(ctx, sessionID, removal.CartItemID)
	if err != nil {
		return nil, err
	}

	result := &RemovalResult{
		CartItemID: item.ID,
		ProductID:  item.ProductID,
		Quantity:   item.Quantity,
	}

	if err := s.productRepo.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
		logger.Error("Cart item removed but stock restoration failed", err, map[string]interface{}{
			"session_id":   sessionID,
			"cart_item_id": item.ID,
			"product_id":   item.ProductID,
			"quantity":     item.Quantity,
		})
		result.Notification = Warning(fmt.Sprintf("%s removed from cart, but its stock could not be restored", item.Name))
	} else {
		result.StockRestored = true
		result.Notification = Success(fmt.Sprintf("%s removed from cart", item.Name))
	}

	if s.cache != nil {
		s.cache.RemoveLocalCartLine(sessionID, item.ID)
		if result.StockRestored {
			s.cache.ApplyLocalStock(item.ProductID, s.currentStock(ctx, item.ProductID, 0))
		}
	}
	s.notifier.ProductsChanged(ctx)
	s.notifier.CartChanged(ctx, sessionID)

	logger.Info("Cart item removed", map[string]interface{}{
		"session_id":     sessionID,
		"cart_item_id":   item.ID,
		"stock_restored": result.StockRestored,
	})
	return result, nil
}

func (s *cartService) CancelRemoval(ctx context.Context, sessionID, token string) error {
	if err := s.removals.Discard(ctx, sessionID, token); err != nil {
		return err
	}
	logger.Info("Cart removal cancelled", map[string]interface{}{
		"session_id": sessionID,
	})
	return nil
}

// RecoverCart adopts every stored cart line, merged by product, when the
// session starts with an empty cart. Source carts are left untouched.
func (s *cartService) RecoverCart(ctx context.Context, sessionID string) (*RecoveryResult, error) {
	current, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(current) > 0 {
		return &RecoveryResult{Items: current}, nil
	}

	all, err := s.cartRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return &RecoveryResult{Items: []model.CartItem{}}, nil
	}

	merged := make(map[uint]*model.CartItem)
	order := make([]uint, 0)
	for _, item := range all {
		if existing, ok := merged[item.ProductID]; ok {
			existing.Quantity += item.Quantity
			continue
		}
		line := item
		merged[item.ProductID] = &line
		order = append(order, item.ProductID)
	}

	items := make([]model.CartItem, 0, len(order))
	result := &RecoveryResult{Recovered: true}
	for _, productID := range order {
		line := merged[productID]
		items = append(items, *line)

		product, err := s.productRepo.FindByID(ctx, productID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			result.Oversubscribed = append(result.Oversubscribed, OversubscribedLine{
				ProductID: productID, Name: line.Name, Quantity: line.Quantity, Deleted: true,
			})
		case err != nil:
			return nil, err
		case product.Stock < line.Quantity:
			result.Oversubscribed = append(result.Oversubscribed, OversubscribedLine{
				ProductID: productID, Name: line.Name, Quantity: line.Quantity, Stock: product.Stock,
			})
		}
	}

	if err := s.cartRepo.ReplaceSessionItems(ctx, sessionID, items); err != nil {
		return nil, &StoreWriteError{Op: "replace session cart", Err: err}
	}

	adopted, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	result.Items = adopted

	if s.cache != nil {
		s.cache.ApplyLocalCart(sessionID, adopted)
	}
	s.notifier.CartChanged(ctx, sessionID)

	if len(result.Oversubscribed) > 0 {
		result.Notification = Warning(fmt.Sprintf("Cart recovered with %d item(s) exceeding current stock", len(result.Oversubscribed)))
	} else {
		result.Notification = Success(fmt.Sprintf("Recovered %d item(s) into your cart", len(adopted)))
	}

	logger.Info("Cart recovered from stored carts", map[string]interface{}{
		"session_id":     sessionID,
		"lines":          len(adopted),
		"source_lines":   len(all),
		"oversubscribed": len(result.Oversubscribed),
	})
	return result, nil
}

// ReleaseStaleReservations drops cart lines untouched since before and
// returns their quantity to stock.
func (s *cartService) ReleaseStaleReservations(ctx context.Context, before time.Time) (int, error) {
	stale, err := s.cartRepo.FindStale(ctx, before)
	if err != nil {
		return 0, err
	}

	released := 0
	sessions := make(map[string]struct{})
	for _, item := range stale {
		if err := s.cartRepo.Delete(ctx, item.ID, item.Quantity); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, repository.ErrQuantityChanged) {
				continue
			}
			logger.Error("Failed to release stale cart item", err, map[string]interface{}{
				"cart_item_id": item.ID,
			})
			continue
		}
		if err := s.productRepo.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Stale cart item released but stock restoration failed", err, map[string]interface{}{
				"cart_item_id": item.ID,
				"product_id":   item.ProductID,
				"quantity":     item.Quantity,
			})
		}
		if s.cache != nil {
			s.cache.RemoveLocalCartLine(item.SessionID, item.ID)
		}
		sessions[item.SessionID] = struct{}{}
		released++
	}

	if released > 0 {
		s.notifier.ProductsChanged(ctx)
		for sessionID := range sessions {
			s.notifier.CartChanged(ctx, sessionID)
		}
	}
	return released, nil
}

func (s *cartService) PurgeExpiredRemovals(ctx context.Context) (int, error) {
	return s.removals.PurgeExpired(ctx, s.now())
}

// resolveProduct tries the local cache, then the id, then an exact name
// match. The bool reports whether the product came from the cache.
func (s *cartService) resolveProduct(ctx context.Context, ref ProductRef) (*model.Product, bool, error) {
	if s.cache != nil {
		if ref.ID != 0 {
			if p, ok := s.cache.Product(ref.ID); ok {
				return &p, true, nil
			}
		} else if ref.Name != "" {
			if p, ok := s.cache.ProductByName(ref.Name); ok {
				return &p, true, nil
			}
		}
	}

	if ref.ID != 0 {
		product, err := s.productRepo.FindByID(ctx, ref.ID)
		if err == nil {
			return product, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, err
		}
	}

	if ref.Name != "" {
		product, err := s.productRepo.FindByName(ctx, ref.Name)
		if err == nil {
			if ref.ID != 0 {
				logger.Warn(ErrStaleProductReference.Error(), map[string]interface{}{
					"requested_id": ref.ID,
					"resolved_id":  product.ID,
					"name":         ref.Name,
				})
			}
			return product, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, err
		}
	}

	logger.Warn("Product not found", map[string]interface{}{
		"product_id": ref.ID,
		"name":       ref.Name,
	})
	return nil, false, ErrProductNotFound
}

func (s *cartService) currentCartQuantity(ctx context.Context, sessionID string, productID uint) (int, error) {
	item, err := s.cartRepo.FindBySessionAndProduct(ctx, sessionID, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return item.Quantity, nil
}

// deleteSessionItemAttempts bounds how often a removal re-reads a line that
// keeps changing underneath it.
const deleteSessionItemAttempts = 3

// deleteSessionItem deletes the line at the quantity it holds at delete
// time and returns that state, so the caller restores exactly that much.
func (s *cartService) deleteSessionItem(ctx context.Context, sessionID string, cartItemID uint) (*model.CartItem, error) {
	for attempt := 0; attempt < deleteSessionItemAttempts; attempt++ {
		item, err := s.findSessionItem(ctx, sessionID, cartItemID)
		if err != nil {
			return nil, err
		}

		err = s.cartRepo.Delete(ctx, item.ID, item.Quantity)
		switch {
		case err == nil:
			return item, nil
		case errors.Is(err, repository.ErrQuantityChanged):
			continue
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrCartItemNotFound
		default:
			return nil, &StoreWriteError{Op: "delete cart item", Err: err}
		}
	}
	return nil, ErrCartItemChanged
}

// undoStockDelta reverses a stock adjustment whose cart write lost a race.
func (s *cartService) undoStockDelta(ctx context.Context, productID uint, delta int) {
	var err error
	if delta > 0 {
		err = s.productRepo.IncrementStock(ctx, productID, delta)
	} else {
		err = s.productRepo.DecrementStockIfAvailable(ctx, productID, -delta)
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Failed to undo stock adjustment", err, map[string]interface{}{
			"product_id": productID,
			"delta":      delta,
		})
	}
}

func (s *cartService) findSessionItem(ctx context.Context, sessionID string, cartItemID uint) (*model.CartItem, error) {
	item, err := s.cartRepo.FindByID(ctx, cartItemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, err
	}
	if item.SessionID != sessionID {
		logger.Warn("Cart item belongs to another session", map[string]interface{}{
			"session_id":   sessionID,
			"cart_item_id": cartItemID,
		})
		return nil, ErrCartItemNotFound
	}
	return item, nil
}

// currentStock re-reads stock after a write, falling back when the read fails.
func (s *cartService) currentStock(ctx context.Context, productID uint, fallback int) int {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return fallback
	}
	return product.Stock
}

func (s *cartService) reservationFailure(ctx context.Context, product *model.Product, requested, inCart int, err error) error {
	switch {
	case errors.Is(err, repository.ErrStockUnavailable):
		available := s.currentStock(ctx, product.ID, 0)
		logger.Warn("Stock reservation rejected", map[string]interface{}{
			"product_id": product.ID,
			"requested":  requested,
			"available":  available,
		})
		if s.cache != nil {
			s.cache.ApplyLocalStock(product.ID, available)
		}
		return &InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   requested,
			Available:   available,
			InCart:      inCart,
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrProductNotFound
	default:
		return &StoreWriteError{Op: "reserve stock", Err: err}
	}
}
