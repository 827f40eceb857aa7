package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-backend/config"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/app/service"
	"github.com/ikkim/storefront-backend/internal/db"
	"github.com/ikkim/storefront-backend/internal/middleware"
	"github.com/ikkim/storefront-backend/pkg/util"
	"github.com/stretchr/testify/require"
)

const testSessionSecret = "test-session-secret-for-controllers"

type controllerFixture struct {
	router      *gin.Engine
	products    repository.ProductRepository
	carts       repository.CartRepository
	cartService service.CartService
	session     *middleware.SessionMiddleware
}

func testCheckoutConfig() config.CheckoutConfig {
	return config.CheckoutConfig{
		TaxRate:           0.10,
		ShippingPolicy:    "flat",
		FlatShippingRate:  10,
		FreeShippingOver:  100,
		ThresholdShipping: 9.99,
		DefaultEmail:      "customer@example.com",
		DeliveryDays:      7,
	}
}

func setupControllerTest(t *testing.T) *controllerFixture {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	productRepo := repository.NewProductRepository(testDB)
	cartRepo := repository.NewCartRepository(testDB)
	orderRepo := repository.NewOrderRepository(testDB)
	pricer := service.NewPricer(testCheckoutConfig())

	cartService := service.NewCartService(cartRepo, productRepo, service.NewMemoryRemovalStore(), pricer)
	checkoutService := service.NewCheckoutService(cartRepo, productRepo, orderRepo, pricer, testCheckoutConfig())
	productService := service.NewProductService(productRepo)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware())

	session := middleware.NewSessionMiddleware(testSessionSecret)
	sessionCtrl := NewSessionController(config.SessionConfig{Secret: testSessionSecret, TokenExpiry: time.Hour})
	productCtrl := NewProductController(productService)
	cartCtrl := NewCartController(cartService)
	orderCtrl := NewOrderController(checkoutService)

	router.POST("/session", session.OptionalSession(), sessionCtrl.CreateSession)
	router.GET("/products", productCtrl.ListProducts)
	router.GET("/products/:id", productCtrl.GetProductByID)
	router.POST("/admin/products", productCtrl.CreateProduct)
	router.PUT("/admin/products/:id", productCtrl.UpdateProduct)
	router.DELETE("/admin/products/:id", productCtrl.DeleteProduct)

	cart := router.Group("", session.RequireSession())
	cart.GET("/cart", cartCtrl.GetCart)
	cart.GET("/cart/summary", cartCtrl.GetSummary)
	cart.POST("/cart", cartCtrl.AddToCart)
	cart.PUT("/cart/:id", cartCtrl.UpdateCartItem)
	cart.POST("/cart/:id/removal", cartCtrl.RequestRemoval)
	cart.POST("/cart/removals/:token/confirm", cartCtrl.ConfirmRemoval)
	cart.DELETE("/cart/removals/:token", cartCtrl.CancelRemoval)
	cart.POST("/cart/recover", cartCtrl.RecoverCart)
	cart.POST("/checkout", orderCtrl.Checkout)
	cart.GET("/orders", orderCtrl.ListOrders)
	cart.GET("/orders/:number", orderCtrl.GetOrder)

	return &controllerFixture{
		router:      router,
		products:    productRepo,
		carts:       cartRepo,
		cartService: cartService,
		session:     session,
	}
}

func (f *controllerFixture) createProduct(t *testing.T, name string, price float64, stock int) *model.Product {
	product := &model.Product{
		Name:        name,
		Description: name + " description",
		Price:       price,
		Stock:       stock,
	}
	require.NoError(t, f.products.Create(context.Background(), product))
	return product
}

func (f *controllerFixture) stockOf(t *testing.T, id uint) int {
	product, err := f.products.FindByID(context.Background(), id)
	require.NoError(t, err)
	return product.Stock
}

func newSessionToken(t *testing.T) (string, string) {
	sessionID := util.NewSessionID()
	token, err := util.GenerateSessionToken(sessionID, testSessionSecret, time.Hour)
	require.NoError(t, err)
	return sessionID, token
}

func (f *controllerFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(middleware.SessionTokenHeader, token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}
