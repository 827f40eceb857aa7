package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ikkim/storefront-backend/pkg/logger"
)

// Hub tracks open push connections per stream so the server can report
// them and close them on shutdown.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	if h.clients[client.Stream] == nil {
		h.clients[client.Stream] = make(map[*Client]struct{})
	}
	h.clients[client.Stream][client] = struct{}{}
	total := len(h.clients[client.Stream])
	h.mu.Unlock()

	logger.Info("WebSocket client registered", map[string]interface{}{
		"stream":     client.Stream,
		"session_id": client.Session,
		"total":      total,
	})
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	stream, ok := h.clients[client.Stream]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(stream, client)
	remaining := len(stream)
	if remaining == 0 {
		delete(h.clients, client.Stream)
	}
	h.mu.Unlock()

	logger.Info("WebSocket client unregistered", map[string]interface{}{
		"stream":     client.Stream,
		"session_id": client.Session,
		"remaining":  remaining,
	})
}

// Count returns the open connections on a stream.
func (h *Hub) Count(stream string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[stream])
}

// CloseAll sends a close frame to every client. Their read pumps then
// unregister them.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var all []*Client
	for _, stream := range h.clients {
		for c := range stream {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	deadline := time.Now().Add(writeWait)
	for _, c := range all {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		if err := c.Conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			c.Conn.Close()
		}
	}
}
