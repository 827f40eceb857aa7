package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-backend/internal/app/service"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/internal/middleware"
)

// respondServiceError maps service errors onto status codes and error
// codes. Unknown errors go through the store error parser.
func respondServiceError(c *gin.Context, err error, context string) {
	log := middleware.GetLoggerFromContext(c)

	var stockErr *service.InsufficientStockError
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &stockErr):
		log.Warn("Insufficient stock", map[string]interface{}{
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
		apperrors.InsufficientStockResponse(c, stockErr.Error(), stockErr.Available)
	case errors.As(err, &validationErr):
		apperrors.RespondWithValidationError(c, map[string]string{
			validationErr.Field: validationErr.Message,
		})
	case errors.Is(err, service.ErrProductNotFound):
		apperrors.NotFound(c, apperrors.ProductNotFound, "Product not found")
	case errors.Is(err, service.ErrCartItemNotFound):
		apperrors.NotFound(c, apperrors.CartItemNotFound, "Cart item not found")
	case errors.Is(err, service.ErrOrderNotFound):
		apperrors.NotFound(c, apperrors.OrderNotFound, "Order not found")
	case errors.Is(err, service.ErrRemovalNotPending):
		apperrors.NotFound(c, apperrors.CartRemovalNotPending, "This removal is no longer pending")
	case errors.Is(err, service.ErrEmptyCart):
		apperrors.BadRequest(c, apperrors.CartEmpty, "Your cart is empty")
	case errors.Is(err, service.ErrInvalidQuantity):
		apperrors.BadRequest(c, apperrors.CartInvalidQuantity, "Quantity must be at least 1")
	case errors.Is(err, service.ErrCartItemChanged):
		apperrors.Conflict(c, apperrors.CartItemChanged, "This cart item was changed in another tab. Please reload and try again")
	case errors.Is(err, service.ErrDuplicateProductName):
		apperrors.Conflict(c, apperrors.ProductDuplicateName, "A product with this name already exists")
	case errors.Is(err, service.ErrStoreWrite):
		log.Error("Store write failed", err, map[string]interface{}{
			"context": context,
		})
		c.JSON(http.StatusInternalServerError, apperrors.ErrorResponse{
			Error:   apperrors.InternalStoreWrite,
			Message: "Your change could not be saved. Please reload and try again",
			Reload:  true,
		})
	default:
		log.Error("Request failed", err, map[string]interface{}{
			"context": context,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, context)
	}
}

// parseIDParam reads a positive numeric path parameter.
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		middleware.GetLoggerFromContext(c).Warn("Invalid id parameter", map[string]interface{}{
			"param": name,
			"value": raw,
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid id")
		return 0, false
	}
	return uint(id), true
}

// requireSession reads the session id placed by the session middleware.
func requireSession(c *gin.Context) (string, bool) {
	sessionID, ok := middleware.GetSessionID(c)
	if !ok {
		apperrors.Unauthorized(c, apperrors.SessionRequired, "")
		return "", false
	}
	return sessionID, true
}
