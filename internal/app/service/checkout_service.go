package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ikkim/storefront-backend/config"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/ikkim/storefront-backend/pkg/util"
	"gorm.io/gorm"
)

type CheckoutRequest struct {
	Email string `json:"email"`
}

type CustomerInfo struct {
	Email             string    `json:"email"`
	OrderDate         time.Time `json:"order_date"`
	EstimatedDelivery time.Time `json:"estimated_delivery"`
}

// Confirmation is the display payload returned once an order is recorded.
type Confirmation struct {
	OrderNumber  string            `json:"order_number"`
	Items        []model.OrderItem `json:"items"`
	Totals
	CustomerInfo CustomerInfo  `json:"customer_info"`
	Notification *Notification `json:"notification"`
}

type CheckoutService interface {
	Checkout(ctx context.Context, sessionID string, req CheckoutRequest) (*Confirmation, error)
	GetOrder(ctx context.Context, sessionID, orderNumber string) (*model.Order, error)
	ListOrders(ctx context.Context, sessionID string) ([]model.Order, error)
}

type checkoutService struct {
	cartRepo     repository.CartRepository
	productRepo  repository.ProductRepository
	orderRepo    repository.OrderRepository
	pricer       *Pricer
	defaultEmail string
	deliveryDays int
	collaborators
}

func NewCheckoutService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	pricer *Pricer,
	cfg config.CheckoutConfig,
	opts ...Option,
) CheckoutService {
	deliveryDays := cfg.DeliveryDays
	if deliveryDays <= 0 {
		deliveryDays = 7
	}
	defaultEmail := cfg.DefaultEmail
	if defaultEmail == "" {
		defaultEmail = "customer@example.com"
	}
	return &checkoutService{
		cartRepo:      cartRepo,
		productRepo:   productRepo,
		orderRepo:     orderRepo,
		pricer:        pricer,
		defaultEmail:  defaultEmail,
		deliveryDays:  deliveryDays,
		collaborators: newCollaborators(opts),
	}
}

// Checkout records an order for the session's cart and then clears it.
// Stock is not touched: it was reserved when each line was added.
func (s *checkoutService) Checkout(ctx context.Context, sessionID string, req CheckoutRequest) (*Confirmation, error) {
	log := logger.Get().WithSession(sessionID)
	log.Info("Starting checkout")

	items, err := s.cartRepo.FindBySession(ctx, sessionID)
	if err != nil {
		log.Error("Failed to fetch cart for checkout", err)
		return nil, err
	}
	if len(items) == 0 {
		log.Warn("Cannot checkout: cart is empty")
		return nil, ErrEmptyCart
	}

	if err := s.verifyStock(ctx, items); err != nil {
		log.Warn("Cannot checkout: stock check failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	totals := s.pricer.Compute(items)
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = s.defaultEmail
	}

	order := &model.Order{
		OrderNumber:   util.GenerateOrderNumber(),
		SessionID:     sessionID,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Shipping:      totals.Shipping,
		Total:         totals.Total,
		Status:        model.OrderStatusCompleted,
		CustomerEmail: email,
		CreatedAt:     s.now(),
	}
	for _, item := range items {
		order.Items = append(order.Items, model.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Image:     item.Image,
			Quantity:  item.Quantity,
		})
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		log.Error("Failed to record order", err)
		return nil, &StoreWriteError{Op: "create order", Err: err}
	}

	notification := Success("Order placed successfully!")
	if err := s.cartRepo.DeleteBySession(ctx, sessionID); err != nil {
		log.Error("Order recorded but cart could not be cleared", err, map[string]interface{}{
			"order_number": order.OrderNumber,
		})
		notification = Warning("Order placed, but your cart could not be cleared")
	} else {
		if s.cache != nil {
			s.cache.ApplyLocalCart(sessionID, nil)
		}
		s.notifier.CartChanged(ctx, sessionID)
	}

	log.Info("Checkout completed", map[string]interface{}{
		"order_number": order.OrderNumber,
		"total":        order.Total,
		"lines":        len(order.Items),
	})

	return &Confirmation{
		OrderNumber: order.OrderNumber,
		Items:       order.Items,
		Totals:      totals,
		CustomerInfo: CustomerInfo{
			Email:             email,
			OrderDate:         order.CreatedAt,
			EstimatedDelivery: order.CreatedAt.AddDate(0, 0, s.deliveryDays),
		},
		Notification: notification,
	}, nil
}

// verifyStock re-reads every product from the store and fails on the first
// line whose product no longer exists. Stock itself cannot fail the check:
// each line's units left stock when they were added, and the conditional
// decrement never drives stock below zero, so a line's quantity is always
// covered by stock plus its own reservation.
func (s *checkoutService) verifyStock(ctx context.Context, items []model.CartItem) error {
	for _, item := range items {
		_, err := s.productRepo.FindByID(ctx, item.ProductID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &InsufficientStockError{
				ProductID:   item.ProductID,
				ProductName: item.Name,
				Requested:   item.Quantity,
				Available:   0,
				InCart:      item.Quantity,
				AtCheckout:  true,
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// GetOrder only returns orders placed by the same session.
func (s *checkoutService) GetOrder(ctx context.Context, sessionID, orderNumber string) (*model.Order, error) {
	number := strings.TrimSpace(orderNumber)
	if !strings.HasPrefix(number, "#") {
		number = "#" + number
	}

	order, err := s.orderRepo.FindByOrderNumber(ctx, number)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if order.SessionID != sessionID {
		logger.Warn("Order requested by another session", map[string]interface{}{
			"session_id":   sessionID,
			"order_number": number,
		})
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *checkoutService) ListOrders(ctx context.Context, sessionID string) ([]model.Order, error) {
	return s.orderRepo.FindBySession(ctx, sessionID)
}
