package service

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound       = errors.New("product not found")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrEmptyCart             = errors.New("your cart is empty")
	ErrStoreWrite            = errors.New("store write failed")
	ErrStaleProductReference = errors.New("stale product reference")
	ErrCartItemNotFound      = errors.New("cart item not found")
	ErrRemovalNotPending     = errors.New("no pending removal for token")
	ErrCartItemChanged       = errors.New("cart item changed concurrently")
	ErrInvalidQuantity       = errors.New("quantity must be at least 1")
	ErrDuplicateProductName  = errors.New("a product with this name already exists")
	ErrInvalidProduct        = errors.New("invalid product data")
	ErrOrderNotFound         = errors.New("order not found")
)

// InsufficientStockError reports a rejected reservation together with what
// the store still had available at the time.
//
// Available is the product's stock count, even when the session already
// holds some of it. Stock is decremented when a line is added, so the
// count already excludes this cart's reservation and subtracting InCart
// again would undercount what can still be added.
type InsufficientStockError struct {
	ProductID   uint
	ProductName string
	Requested   int
	Available   int
	InCart      int
	AtCheckout  bool
}

func (e *InsufficientStockError) Error() string {
	switch {
	case e.AtCheckout:
		return fmt.Sprintf("Insufficient stock for %s. Available: %d", e.ProductName, e.Available)
	case e.InCart > 0:
		return fmt.Sprintf("Cannot add %d more. Only %d available.", e.Requested, e.Available)
	default:
		return fmt.Sprintf("Insufficient stock! Only %d available.", e.Available)
	}
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// StoreWriteError wraps a failed write against the product, cart or order store.
type StoreWriteError struct {
	Op  string
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStoreWrite, e.Op, e.Err)
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}

func (e *StoreWriteError) Is(target error) bool {
	return target == ErrStoreWrite
}

// ValidationError names the product field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidProduct
}
