package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-backend/config"
	"github.com/ikkim/storefront-backend/internal/app/controller"
	"github.com/ikkim/storefront-backend/internal/middleware"
)

type Router struct {
	sessionController  *controller.SessionController
	productController  *controller.ProductController
	cartController     *controller.CartController
	orderController    *controller.OrderController
	uploadController   *controller.UploadController
	realtimeController *controller.RealtimeController
	sessionMiddleware  *middleware.SessionMiddleware
	adminMiddleware    *middleware.AdminMiddleware
	config             *config.Config
}

func NewRouter(
	sessionController *controller.SessionController,
	productController *controller.ProductController,
	cartController *controller.CartController,
	orderController *controller.OrderController,
	uploadController *controller.UploadController,
	realtimeController *controller.RealtimeController,
	sessionMiddleware *middleware.SessionMiddleware,
	adminMiddleware *middleware.AdminMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		sessionController:  sessionController,
		productController:  productController,
		cartController:     cartController,
		orderController:    orderController,
		uploadController:   uploadController,
		realtimeController: realtimeController,
		sessionMiddleware:  sessionMiddleware,
		adminMiddleware:    adminMiddleware,
		config:             cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.RecoveryMiddleware())
	router.Use(cors.New(corsConfig(r.config.CORS.AllowedOrigins)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Storefront API is running",
		})
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/session", r.sessionMiddleware.OptionalSession(), r.sessionController.CreateSession)

		products := v1.Group("/products")
		{
			products.GET("", r.productController.ListProducts)
			products.GET("/:id", r.productController.GetProductByID)
		}

		admin := v1.Group("/admin")
		admin.Use(r.adminMiddleware.RequireAPIKey())
		{
			admin.POST("/products", r.productController.CreateProduct)
			admin.PUT("/products/:id", r.productController.UpdateProduct)
			admin.DELETE("/products/:id", r.productController.DeleteProduct)
			if r.uploadController != nil {
				admin.POST("/uploads/product-image", r.uploadController.GenerateProductImageURL)
			}
		}

		cart := v1.Group("/cart")
		cart.Use(r.sessionMiddleware.RequireSession())
		{
			cart.GET("", r.cartController.GetCart)
			cart.GET("/summary", r.cartController.GetSummary)
			cart.POST("", r.cartController.AddToCart)
			cart.POST("/recover", r.cartController.RecoverCart)
			cart.PUT("/:id", r.cartController.UpdateCartItem)
			cart.POST("/:id/removal", r.cartController.RequestRemoval)
			cart.POST("/removals/:token/confirm", r.cartController.ConfirmRemoval)
			cart.DELETE("/removals/:token", r.cartController.CancelRemoval)
		}

		v1.POST("/checkout", r.sessionMiddleware.RequireSession(), r.orderController.Checkout)

		orders := v1.Group("/orders")
		orders.Use(r.sessionMiddleware.RequireSession())
		{
			orders.GET("", r.orderController.ListOrders)
			orders.GET("/:number", r.orderController.GetOrder)
		}

		ws := v1.Group("/ws")
		{
			ws.GET("/products", r.realtimeController.StreamProducts)
			ws.GET("/cart", r.sessionMiddleware.RequireSession(), r.realtimeController.StreamCart)
		}
	}

	return router
}

func corsConfig(allowedOrigins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.SessionTokenHeader, middleware.AdminKeyHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	for _, origin := range allowedOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			return cfg
		}
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cfg
	}
	cfg.AllowOrigins = allowedOrigins
	return cfg
}
