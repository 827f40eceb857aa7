package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikkim/storefront-backend/config"
	"github.com/ikkim/storefront-backend/internal/app/controller"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/app/service"
	"github.com/ikkim/storefront-backend/internal/db"
	"github.com/ikkim/storefront-backend/internal/middleware"
	"github.com/ikkim/storefront-backend/internal/realtime"
	"github.com/ikkim/storefront-backend/internal/router"
	"github.com/ikkim/storefront-backend/internal/scheduler"
	"github.com/ikkim/storefront-backend/internal/storage"
	"github.com/ikkim/storefront-backend/internal/websocket"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/ikkim/storefront-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	logFormat := "json"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
		logFormat = "console"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      logFormat,
		EnableColor: true,
	})

	logger.Info("Starting Storefront Backend Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
		"realtime":    cfg.Realtime.Backend,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Initialize Redis (optional)
	if cfg.Redis.Enabled {
		if err := redis.Init(&cfg.Redis); err != nil {
			logger.Fatal("Failed to initialize Redis", err)
		}
		defer func() {
			if err := redis.Close(); err != nil {
				logger.Error("Failed to close Redis connection", err)
			}
		}()
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(db.GetDB())
	cartRepo := repository.NewCartRepository(db.GetDB())
	orderRepo := repository.NewOrderRepository(db.GetDB())

	// Live feed and local mirror
	var broker realtime.Broker
	switch cfg.Realtime.Backend {
	case "redis":
		if redis.GetClient() == nil {
			logger.Fatal("REALTIME_BACKEND=redis requires REDIS_ENABLED=true", errors.New("redis disabled"))
		}
		broker = realtime.NewRedisBroker(redis.GetClient())
	default:
		broker = realtime.NewMemoryBroker()
	}
	defer broker.Close()

	feed := realtime.NewFeed(broker, productRepo, cartRepo)
	mirror := realtime.NewMirror()

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	stopMirror := mirror.Follow(appCtx, feed, func(err error) {
		logger.Error("Product feed load failed", err)
	})
	defer stopMirror()

	var removals service.PendingRemovalStore
	if cfg.Redis.Enabled {
		removals = service.NewRedisRemovalStore(redis.GetClient())
	} else {
		removals = service.NewMemoryRemovalStore()
	}

	// Initialize services
	pricer := service.NewPricer(cfg.Checkout)
	opts := []service.Option{
		service.WithProductCache(mirror),
		service.WithChangeNotifier(feed),
		service.WithRemovalTTL(cfg.Cart.PendingRemovalTTL),
	}
	productService := service.NewProductService(productRepo, opts...)
	cartService := service.NewCartService(cartRepo, productRepo, removals, pricer, opts...)
	checkoutService := service.NewCheckoutService(cartRepo, productRepo, orderRepo, pricer, cfg.Checkout, opts...)

	// Background sweeps
	cartScheduler := scheduler.NewCartMaintenanceScheduler(cartService, cfg.Cart.ReservationTTL)
	if err := cartScheduler.Start(); err != nil {
		logger.Fatal("Failed to start cart maintenance scheduler", err)
	}
	defer cartScheduler.Stop()

	hub := websocket.NewHub()

	// Initialize controllers
	sessionController := controller.NewSessionController(cfg.Session)
	productController := controller.NewProductController(productService)
	cartController := controller.NewCartController(cartService)
	orderController := controller.NewOrderController(checkoutService)
	realtimeController := controller.NewRealtimeController(feed, mirror, hub, cfg.CORS.AllowedOrigins)

	var uploadController *controller.UploadController
	if cfg.S3.Bucket != "" {
		uploadController = controller.NewUploadController(storage.NewS3Storage(cfg.S3))
	}

	// Initialize middleware
	sessionMiddleware := middleware.NewSessionMiddleware(cfg.Session.Secret)
	adminMiddleware := middleware.NewAdminMiddleware(cfg.Admin.APIKeyHash)
	if cfg.Admin.APIKeyHash == "" {
		logger.Warn("ADMIN_API_KEY_HASH is empty, catalog writes are unprotected")
	}

	// Setup router
	r := router.NewRouter(
		sessionController,
		productController,
		cartController,
		orderController,
		uploadController,
		realtimeController,
		sessionMiddleware,
		adminMiddleware,
		cfg,
	)
	engine := r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: engine,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")

	hub.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}

	logger.Info("Server stopped successfully")
}
