package controller

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-backend/internal/app/service"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/internal/middleware"
)

type CartController struct {
	cartService service.CartService
}

func NewCartController(cartService service.CartService) *CartController {
	return &CartController{
		cartService: cartService,
	}
}

type AddToCartRequest struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	Quantity  *int   `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// GetCart returns the session's cart lines with their totals
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	items, err := ctrl.cartService.GetCart(c.Request.Context(), sessionID)
	if err != nil {
		respondServiceError(c, err, "cart")
		return
	}
	summary, err := ctrl.cartService.Summary(c.Request.Context(), sessionID)
	if err != nil {
		respondServiceError(c, err, "cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":   items,
		"summary": summary,
	})
}

// GetSummary returns item count and totals only
// GET /api/v1/cart/summary
func (ctrl *CartController) GetSummary(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	summary, err := ctrl.cartService.Summary(c.Request.Context(), sessionID)
	if err != nil {
		respondServiceError(c, err, "cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary": summary,
	})
}

// AddToCart reserves stock and adds it to the cart
// POST /api/v1/cart
func (ctrl *CartController) AddToCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}
	if req.ProductID == 0 && req.Name == "" {
		apperrors.BadRequest(c, apperrors.ValidationRequired, "product_id or name is required")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	result, err := ctrl.cartService.AddToCart(c.Request.Context(), sessionID, service.ProductRef{
		ID:   req.ProductID,
		Name: req.Name,
	}, quantity)
	if err != nil {
		respondServiceError(c, err, "cart add")
		return
	}

	c.JSON(http.StatusCreated, result)
}

// UpdateCartItem sets a line's quantity. Zero or less starts a removal
// that must be confirmed.
// PUT /api/v1/cart/:id
func (ctrl *CartController) UpdateCartItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	sessionID, ok := requireSession(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid cart update request", map[string]interface{}{
			"cart_item_id": id,
			"error":        err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	result, err := ctrl.cartService.UpdateQuantity(c.Request.Context(), sessionID, id, *req.Quantity)
	if err != nil {
		respondServiceError(c, err, "cart update")
		return
	}

	if result.ConfirmationRequired {
		c.JSON(http.StatusAccepted, gin.H{
			"confirmation_required": true,
			"pending_removal":       result.PendingRemoval,
			"notification":          removalPrompt(result.PendingRemoval),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// RequestRemoval prepares a removal and returns its confirmation token
// POST /api/v1/cart/:id/removal
func (ctrl *CartController) RequestRemoval(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	removal, err := ctrl.cartService.RequestRemoval(c.Request.Context(), sessionID, id)
	if err != nil {
		respondServiceError(c, err, "cart removal")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"confirmation_required": true,
		"pending_removal":       removal,
		"notification":          removalPrompt(removal),
	})
}

// ConfirmRemoval deletes the line and restores its stock
// POST /api/v1/cart/removals/:token/confirm
func (ctrl *CartController) ConfirmRemoval(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	result, err := ctrl.cartService.ConfirmRemoval(c.Request.Context(), sessionID, c.Param("token"))
	if err != nil {
		respondServiceError(c, err, "cart removal")
		return
	}

	c.JSON(http.StatusOK, result)
}

// CancelRemoval drops a pending removal without touching the stores
// DELETE /api/v1/cart/removals/:token
func (ctrl *CartController) CancelRemoval(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	if err := ctrl.cartService.CancelRemoval(c.Request.Context(), sessionID, c.Param("token")); err != nil {
		respondServiceError(c, err, "cart removal")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cancelled": true,
	})
}

// RecoverCart adopts stored cart lines into an empty session cart
// POST /api/v1/cart/recover
func (ctrl *CartController) RecoverCart(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	result, err := ctrl.cartService.RecoverCart(c.Request.Context(), sessionID)
	if err != nil {
		respondServiceError(c, err, "cart recover")
		return
	}

	c.JSON(http.StatusOK, result)
}

func removalPrompt(removal *service.PendingRemoval) *service.Notification {
	if removal == nil {
		return nil
	}
	return service.Warning(fmt.Sprintf("Remove %s from cart?", removal.Name))
}
