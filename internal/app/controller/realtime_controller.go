package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/middleware"
	"github.com/ikkim/storefront-backend/internal/realtime"
	"github.com/ikkim/storefront-backend/internal/websocket"
)

const (
	streamProducts = "products"
	streamCart     = "cart"
)

// RealtimeController pushes product and cart snapshots over WebSocket.
type RealtimeController struct {
	feed     *realtime.Feed
	mirror   *realtime.Mirror
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
}

func NewRealtimeController(feed *realtime.Feed, mirror *realtime.Mirror, hub *websocket.Hub, allowedOrigins []string) *RealtimeController {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}

	return &RealtimeController{
		feed:   feed,
		mirror: mirror,
		hub:    hub,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(origins) == 0 {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
	}
}

// StreamProducts pushes the product list on connect and after every change
// GET /api/v1/ws/products
func (ctrl *RealtimeController) StreamProducts(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	client := websocket.NewClient(ctrl.hub, conn, streamProducts, "")
	stop := ctrl.feed.SubscribeProducts(c.Request.Context(), func(products []model.Product) {
		client.Push(streamProducts, products)
	}, func(err error) {
		client.Push("error", "Products could not be loaded")
	})
	defer stop()

	client.Run()
}

// StreamCart pushes the session's cart on connect and after every change.
// The session token travels in the token query parameter.
// GET /api/v1/ws/cart?token=
func (ctrl *RealtimeController) StreamCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	client := websocket.NewClient(ctrl.hub, conn, streamCart, sessionID)
	stop := ctrl.mirror.WatchCart(c.Request.Context(), ctrl.feed, sessionID, func(items []model.CartItem) {
		client.Push(streamCart, items)
	})
	defer stop()

	client.Run()
}
