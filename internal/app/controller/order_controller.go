package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-backend/internal/app/service"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/internal/middleware"
)

type OrderController struct {
	checkoutService service.CheckoutService
}

func NewOrderController(checkoutService service.CheckoutService) *OrderController {
	return &OrderController{
		checkoutService: checkoutService,
	}
}

type CheckoutRequest struct {
	Email string `json:"email" binding:"omitempty,email"`
}

// Checkout records an order for the session's cart
// POST /api/v1/checkout
func (ctrl *OrderController) Checkout(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	var req CheckoutRequest
	// The body is optional; an empty one, chunked or not, binds nothing.
	if c.Request.Body != nil {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			log.Warn("Invalid checkout request", map[string]interface{}{
				"error": err.Error(),
			})
			apperrors.RespondWithValidationError(c, map[string]string{
				"email": "Enter a valid email address",
			})
			return
		}
	}

	confirmation, err := ctrl.checkoutService.Checkout(c.Request.Context(), sessionID, service.CheckoutRequest{
		Email: req.Email,
	})
	if err != nil {
		respondServiceError(c, err, "checkout")
		return
	}

	c.JSON(http.StatusCreated, confirmation)
}

// GetOrder returns one of the session's orders. The leading '#' of the
// order number is optional.
// GET /api/v1/orders/:number
func (ctrl *OrderController) GetOrder(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	order, err := ctrl.checkoutService.GetOrder(c.Request.Context(), sessionID, c.Param("number"))
	if err != nil {
		respondServiceError(c, err, "order")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
	})
}

// ListOrders returns the session's orders
// GET /api/v1/orders
func (ctrl *OrderController) ListOrders(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	orders, err := ctrl.checkoutService.ListOrders(c.Request.Context(), sessionID)
	if err != nil {
		respondServiceError(c, err, "order")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}
