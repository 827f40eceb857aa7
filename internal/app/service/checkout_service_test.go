package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderNumberPattern = regexp.MustCompile(`^#\d{6}$`)

func setupCheckoutTest(t *testing.T, now time.Time) (CheckoutService, CartService, *storeFixture) {
	f := setupStoreFixture(t)
	clock := WithClock(func() time.Time { return now })
	checkout := NewCheckoutService(f.carts, f.products, f.orders, f.pricer, defaultCheckoutConfig(),
		WithChangeNotifier(f.notifier), clock)
	return checkout, f.cartService(clock), f
}

func countOrders(t *testing.T, f *storeFixture) int64 {
	var count int64
	require.NoError(t, f.db.Model(&model.Order{}).Count(&count).Error)
	return count
}

func TestCheckoutService_EmptyCart(t *testing.T) {
	checkout, _, f := setupCheckoutTest(t, time.Now())

	_, err := checkout.Checkout(context.Background(), sessionA, CheckoutRequest{})
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, int64(0), countOrders(t, f))
	assert.Equal(t, 0, f.notifier.cartCount(sessionA))
}

func TestCheckoutService_Checkout(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	checkout, carts, f := setupCheckoutTest(t, now)
	ctx := context.Background()

	lamp := f.createProduct(t, "Lamp", 10, 5)
	pen := f.createProduct(t, "Pen", 5, 5)
	_, err := carts.AddToCart(ctx, sessionA, ProductRef{ID: lamp.ID}, 2)
	require.NoError(t, err)
	_, err = carts.AddToCart(ctx, sessionA, ProductRef{ID: pen.ID}, 1)
	require.NoError(t, err)

	confirmation, err := checkout.Checkout(ctx, sessionA, CheckoutRequest{})
	require.NoError(t, err)

	assert.Regexp(t, orderNumberPattern, confirmation.OrderNumber)
	assert.Equal(t, 25.0, confirmation.Subtotal)
	assert.Equal(t, 2.5, confirmation.Tax)
	assert.Equal(t, 10.0, confirmation.Shipping)
	assert.Equal(t, 37.5, confirmation.Total)
	assert.Len(t, confirmation.Items, 2)
	assert.Equal(t, "customer@example.com", confirmation.CustomerInfo.Email)
	assert.Equal(t, now, confirmation.CustomerInfo.OrderDate)
	assert.Equal(t, now.AddDate(0, 0, 7), confirmation.CustomerInfo.EstimatedDelivery)
	assert.Equal(t, NotificationSuccess, confirmation.Notification.Type)

	items, err := carts.GetCart(ctx, sessionA)
	require.NoError(t, err)
	assert.Empty(t, items, "checkout clears the cart")

	assert.Equal(t, 3, f.stockOf(t, lamp.ID), "checkout does not decrement stock again")
	assert.Equal(t, 4, f.stockOf(t, pen.ID))

	order, err := checkout.GetOrder(ctx, sessionA, confirmation.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, order.Status)
	assert.Equal(t, 37.5, order.Total)
	assert.Len(t, order.Items, 2)
}

func TestCheckoutService_CustomEmail(t *testing.T) {
	checkout, carts, f := setupCheckoutTest(t, time.Now())
	ctx := context.Background()
	lamp := f.createProduct(t, "Lamp", 10, 5)

	_, err := carts.AddToCart(ctx, sessionA, ProductRef{ID: lamp.ID}, 1)
	require.NoError(t, err)

	confirmation, err := checkout.Checkout(ctx, sessionA, CheckoutRequest{Email: " buyer@example.com "})
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", confirmation.CustomerInfo.Email)
}

func TestCheckoutService_DeletedProductAbortsBeforeWrites(t *testing.T) {
	checkout, carts, f := setupCheckoutTest(t, time.Now())
	ctx := context.Background()
	lamp := f.createProduct(t, "Lamp", 10, 5)
	pen := f.createProduct(t, "Pen", 5, 5)

	_, err := carts.AddToCart(ctx, sessionA, ProductRef{ID: lamp.ID}, 1)
	require.NoError(t, err)
	_, err = carts.AddToCart(ctx, sessionA, ProductRef{ID: pen.ID}, 2)
	require.NoError(t, err)
	require.NoError(t, f.products.Delete(ctx, pen.ID))

	_, err = checkout.Checkout(ctx, sessionA, CheckoutRequest{})
	require.ErrorIs(t, err, ErrInsufficientStock)

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "Pen", stockErr.ProductName)
	assert.Equal(t, "Insufficient stock for Pen. Available: 0", stockErr.Error())

	assert.Equal(t, int64(0), countOrders(t, f))
	items, err := carts.GetCart(ctx, sessionA)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestCheckoutService_ReservedLinesPassWhenStockRunsOut(t *testing.T) {
	checkout, carts, f := setupCheckoutTest(t, time.Now())
	ctx := context.Background()
	lamp := f.createProduct(t, "Lamp", 10, 2)

	_, err := carts.AddToCart(ctx, sessionA, ProductRef{ID: lamp.ID}, 2)
	require.NoError(t, err)
	require.Equal(t, 0, f.stockOf(t, lamp.ID))

	confirmation, err := checkout.Checkout(ctx, sessionA, CheckoutRequest{})
	require.NoError(t, err)
	require.Len(t, confirmation.Items, 1)
	assert.Equal(t, 2, confirmation.Items[0].Quantity)
	assert.Equal(t, 0, f.stockOf(t, lamp.ID), "checkout does not touch stock")
}

func TestCheckoutService_GetOrder(t *testing.T) {
	checkout, carts, f := setupCheckoutTest(t, time.Now())
	ctx := context.Background()
	lamp := f.createProduct(t, "Lamp", 10, 5)

	_, err := carts.AddToCart(ctx, sessionA, ProductRef{ID: lamp.ID}, 1)
	require.NoError(t, err)
	confirmation, err := checkout.Checkout(ctx, sessionA, CheckoutRequest{})
	require.NoError(t, err)

	withoutHash := confirmation.OrderNumber[1:]
	order, err := checkout.GetOrder(ctx, sessionA, withoutHash)
	require.NoError(t, err)
	assert.Equal(t, confirmation.OrderNumber, order.OrderNumber)

	_, err = checkout.GetOrder(ctx, sessionB, confirmation.OrderNumber)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = checkout.GetOrder(ctx, sessionA, "#000001")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	orders, err := checkout.ListOrders(ctx, sessionA)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}
