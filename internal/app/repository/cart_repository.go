package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrQuantityChanged is returned by the compare-and-set writes when the
// line no longer holds the quantity the caller read.
var ErrQuantityChanged = errors.New("cart item quantity changed")

type CartRepository interface {
	FindBySession(ctx context.Context, sessionID string) ([]model.CartItem, error)
	FindByID(ctx context.Context, id uint) (*model.CartItem, error)
	FindBySessionAndProduct(ctx context.Context, sessionID string, productID uint) (*model.CartItem, error)
	AddQuantity(ctx context.Context, item *model.CartItem) (*model.CartItem, error)
	UpdateQuantity(ctx context.Context, id uint, from, to int) error
	Delete(ctx context.Context, id uint, quantity int) error
	RemoveByProduct(ctx context.Context, sessionID string, productID uint) error
	DeleteBySession(ctx context.Context, sessionID string) error
	FindAll(ctx context.Context) ([]model.CartItem, error)
	ReplaceSessionItems(ctx context.Context, sessionID string, items []model.CartItem) error
	FindStale(ctx context.Context, before time.Time) ([]model.CartItem, error)
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) FindBySession(ctx context.Context, sessionID string) ([]model.CartItem, error) {
	logger.Debug("Finding cart items by session in database", map[string]interface{}{
		"session_id": sessionID,
	})

	var items []model.CartItem
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).
		Order("created_at ASC").Order("id ASC").
		Find(&items).Error
	if err != nil {
		logger.Error("Failed to find cart items by session in database", err, map[string]interface{}{
			"session_id": sessionID,
		})
		return nil, err
	}

	logger.Debug("Cart items found by session in database", map[string]interface{}{
		"session_id": sessionID,
		"count":      len(items),
	})
	return items, nil
}

func (r *cartRepository) FindByID(ctx context.Context, id uint) (*model.CartItem, error) {
	logger.Debug("Finding cart item by ID in database", map[string]interface{}{
		"cart_item_id": id,
	})

	var item model.CartItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		logLookupFailure("Failed to find cart item by ID in database", err, map[string]interface{}{
			"cart_item_id": id,
		})
		return nil, err
	}

	logger.Debug("Cart item found by ID in database", map[string]interface{}{
		"cart_item_id": item.ID,
		"session_id":   item.SessionID,
		"product_id":   item.ProductID,
	})
	return &item, nil
}

func (r *cartRepository) FindBySessionAndProduct(ctx context.Context, sessionID string, productID uint) (*model.CartItem, error) {
	logger.Debug("Finding cart item by session and product in database", map[string]interface{}{
		"session_id": sessionID,
		"product_id": productID,
	})

	var item model.CartItem
	err := r.db.WithContext(ctx).Where("session_id = ? AND product_id = ?", sessionID, productID).
		First(&item).Error
	if err != nil {
		logLookupFailure("Failed to find cart item by session and product in database", err, map[string]interface{}{
			"session_id": sessionID,
			"product_id": productID,
		})
		return nil, err
	}

	return &item, nil
}

// AddQuantity inserts the line keyed by (session, product) or adds
// item.Quantity to the stored quantity in the same statement. An existing
// line keeps its snapshot fields.
func (r *cartRepository) AddQuantity(ctx context.Context, item *model.CartItem) (*model.CartItem, error) {
	logger.Debug("Adding cart item quantity in database", map[string]interface{}{
		"session_id": item.SessionID,
		"product_id": item.ProductID,
		"quantity":   item.Quantity,
	})

	row := *item
	row.ID = 0
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_items.quantity + ?", item.Quantity),
			"updated_at": time.Now(),
		}),
	}).Create(&row).Error
	if err != nil {
		logger.Error("Failed to add cart item quantity in database", err, map[string]interface{}{
			"session_id": item.SessionID,
			"product_id": item.ProductID,
			"quantity":   item.Quantity,
		})
		return nil, err
	}

	stored, err := r.FindBySessionAndProduct(ctx, item.SessionID, item.ProductID)
	if err != nil {
		return nil, err
	}

	logger.Debug("Cart item quantity added in database", map[string]interface{}{
		"cart_item_id": stored.ID,
		"session_id":   stored.SessionID,
		"quantity":     stored.Quantity,
	})
	return stored, nil
}

// UpdateQuantity moves the line from one quantity to another only if it
// still holds from.
func (r *cartRepository) UpdateQuantity(ctx context.Context, id uint, from, to int) error {
	logger.Debug("Updating cart item quantity in database", map[string]interface{}{
		"cart_item_id": id,
		"from":         from,
		"to":           to,
	})

	result := r.db.WithContext(ctx).Model(&model.CartItem{}).
		Where("id = ? AND quantity = ?", id, from).
		Updates(map[string]interface{}{"quantity": to, "updated_at": time.Now()})
	if result.Error != nil {
		logger.Error("Failed to update cart item quantity in database", result.Error, map[string]interface{}{
			"cart_item_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missOrChanged(ctx, id)
	}
	return nil
}

// Delete removes the line only if it still holds quantity, so the caller
// restores exactly what the line reserved.
func (r *cartRepository) Delete(ctx context.Context, id uint, quantity int) error {
	logger.Debug("Deleting cart item from database", map[string]interface{}{
		"cart_item_id": id,
		"quantity":     quantity,
	})

	result := r.db.WithContext(ctx).Where("id = ? AND quantity = ?", id, quantity).Delete(&model.CartItem{})
	if result.Error != nil {
		logger.Error("Failed to delete cart item from database", result.Error, map[string]interface{}{
			"cart_item_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missOrChanged(ctx, id)
	}

	logger.Debug("Cart item deleted from database", map[string]interface{}{
		"cart_item_id": id,
	})
	return nil
}

func (r *cartRepository) missOrChanged(ctx context.Context, id uint) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.CartItem{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	logger.Warn("Cart item changed concurrently", map[string]interface{}{
		"cart_item_id": id,
	})
	return ErrQuantityChanged
}

func (r *cartRepository) RemoveByProduct(ctx context.Context, sessionID string, productID uint) error {
	logger.Debug("Removing cart item by product from database", map[string]interface{}{
		"session_id": sessionID,
		"product_id": productID,
	})

	err := r.db.WithContext(ctx).Where("session_id = ? AND product_id = ?", sessionID, productID).
		Delete(&model.CartItem{}).Error
	if err != nil {
		logger.Error("Failed to remove cart item by product from database", err, map[string]interface{}{
			"session_id": sessionID,
			"product_id": productID,
		})
		return err
	}
	return nil
}

func (r *cartRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	logger.Debug("Deleting cart items by session from database", map[string]interface{}{
		"session_id": sessionID,
	})

	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&model.CartItem{}).Error; err != nil {
		logger.Error("Failed to delete cart items by session from database", err, map[string]interface{}{
			"session_id": sessionID,
		})
		return err
	}

	logger.Debug("Cart items deleted by session from database", map[string]interface{}{
		"session_id": sessionID,
	})
	return nil
}

func (r *cartRepository) FindAll(ctx context.Context) ([]model.CartItem, error) {
	logger.Debug("Finding all cart items in database", nil)

	var items []model.CartItem
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		logger.Error("Failed to find all cart items in database", err, nil)
		return nil, err
	}

	logger.Debug("All cart items found in database", map[string]interface{}{
		"count": len(items),
	})
	return items, nil
}

// ReplaceSessionItems swaps the session's whole cart for items in one
// transaction. The new lines get fresh timestamps.
func (r *cartRepository) ReplaceSessionItems(ctx context.Context, sessionID string, items []model.CartItem) error {
	logger.Debug("Replacing cart items for session in database", map[string]interface{}{
		"session_id": sessionID,
		"count":      len(items),
	})

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].ID = 0
			items[i].SessionID = sessionID
			items[i].CreatedAt = time.Time{}
			items[i].UpdatedAt = time.Time{}
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		logger.Error("Failed to replace cart items for session in database", err, map[string]interface{}{
			"session_id": sessionID,
		})
		return err
	}

	return nil
}

// FindStale returns lines not touched since before.
func (r *cartRepository) FindStale(ctx context.Context, before time.Time) ([]model.CartItem, error) {
	logger.Debug("Finding stale cart items in database", map[string]interface{}{
		"before": before,
	})

	var items []model.CartItem
	if err := r.db.WithContext(ctx).Where("updated_at < ?", before).Order("id ASC").Find(&items).Error; err != nil {
		logger.Error("Failed to find stale cart items in database", err, map[string]interface{}{
			"before": before,
		})
		return nil, err
	}
	return items, nil
}
