package repository

import (
	"context"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/ikkim/storefront-backend/pkg/util"
	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id uint) (*model.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	FindBySession(ctx context.Context, sessionID string) ([]model.Order, error)
}

const orderNumberAttempts = 5

type orderRepository struct {
	db         *gorm.DB
	nextNumber func() string
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db, nextNumber: util.GenerateOrderNumber}
}

func (r *orderRepository) preloadOrder(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("order_items.id ASC")
	})
}

// Create inserts the order together with its item snapshot. When the order
// number is already taken a fresh one is drawn and the insert retried.
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	logger.Debug("Creating order in database", map[string]interface{}{
		"order_number": order.OrderNumber,
		"session_id":   order.SessionID,
		"total":        order.Total,
		"items":        len(order.Items),
	})

	for attempt := 1; ; attempt++ {
		err := r.db.WithContext(ctx).Create(order).Error
		if err == nil {
			break
		}

		if attempt < orderNumberAttempts && r.numberTaken(ctx, order.OrderNumber) {
			logger.Warn("Order number already taken, drawing a new one", map[string]interface{}{
				"order_number": order.OrderNumber,
				"attempt":      attempt,
			})
			order.ID = 0
			for i := range order.Items {
				order.Items[i].ID = 0
				order.Items[i].OrderID = 0
			}
			order.OrderNumber = r.nextNumber()
			continue
		}

		logger.Error("Failed to create order in database", err, map[string]interface{}{
			"order_number": order.OrderNumber,
			"session_id":   order.SessionID,
		})
		return err
	}

	logger.Debug("Order created in database", map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	})
	return nil
}

func (r *orderRepository) numberTaken(ctx context.Context, orderNumber string) bool {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).Where("order_number = ?", orderNumber).Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

func (r *orderRepository) FindByID(ctx context.Context, id uint) (*model.Order, error) {
	logger.Debug("Finding order by ID in database", map[string]interface{}{
		"order_id": id,
	})

	var order model.Order
	if err := r.preloadOrder(ctx).First(&order, id).Error; err != nil {
		logLookupFailure("Failed to find order by ID in database", err, map[string]interface{}{
			"order_id": id,
		})
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	logger.Debug("Finding order by number in database", map[string]interface{}{
		"order_number": orderNumber,
	})

	var order model.Order
	if err := r.preloadOrder(ctx).Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		logLookupFailure("Failed to find order by number in database", err, map[string]interface{}{
			"order_number": orderNumber,
		})
		return nil, err
	}

	logger.Debug("Order found by number in database", map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"status":       order.Status,
	})
	return &order, nil
}

func (r *orderRepository) FindBySession(ctx context.Context, sessionID string) ([]model.Order, error) {
	logger.Debug("Finding orders by session in database", map[string]interface{}{
		"session_id": sessionID,
	})

	var orders []model.Order
	if err := r.preloadOrder(ctx).Where("session_id = ?", sessionID).
		Order("created_at DESC").Find(&orders).Error; err != nil {
		logger.Error("Failed to find orders by session in database", err, map[string]interface{}{
			"session_id": sessionID,
		})
		return nil, err
	}

	logger.Debug("Orders found by session in database", map[string]interface{}{
		"session_id": sessionID,
		"count":      len(orders),
	})
	return orders, nil
}
