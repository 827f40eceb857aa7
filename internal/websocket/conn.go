package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ikkim/storefront-backend/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames; anything larger is a misbehaving peer.
	maxMessageSize = 4 * 1024
)

// Message is one snapshot frame pushed to the browser.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client is a push-only connection. It holds at most one unsent frame: a
// newer snapshot replaces an older one still waiting to be written.
type Client struct {
	Hub     *Hub
	Conn    *websocket.Conn
	Stream  string
	Session string
	send    chan []byte
	done    chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, stream, session string) *Client {
	return &Client{
		Hub:     hub,
		Conn:    conn,
		Stream:  stream,
		Session: session,
		send:    make(chan []byte, 1),
		done:    make(chan struct{}),
	}
}

// Push queues a frame, replacing any frame not yet written.
func (c *Client) Push(msgType string, data interface{}) {
	payload, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		logger.Error("Failed to marshal snapshot frame", err, map[string]interface{}{
			"stream": c.Stream,
		})
		return
	}

	select {
	case <-c.done:
		return
	default:
	}

	for {
		select {
		case c.send <- payload:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

// Done is closed once the connection has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Run pumps frames until the peer goes away. It blocks.
func (c *Client) Run() {
	if c.Hub != nil {
		c.Hub.Register(c)
	}
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		if c.Hub != nil {
			c.Hub.Unregister(c)
		}
		close(c.done)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket read error", err, map[string]interface{}{
					"stream":     c.Stream,
					"session_id": c.Session,
				})
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Error("Failed to write snapshot frame", err, map[string]interface{}{
					"stream":     c.Stream,
					"session_id": c.Session,
				})
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
