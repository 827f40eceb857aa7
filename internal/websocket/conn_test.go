package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func startServer(t *testing.T, hub *Hub, clients chan<- *Client) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, "products", "")
		clients <- client
		client.Run()
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func readFrame(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestClient_PushDeliversFrames(t *testing.T) {
	hub := NewHub()
	clients := make(chan *Client, 1)
	url := startServer(t, hub, clients)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	client := <-clients
	require.Eventually(t, func() bool {
		return hub.Count("products") == 1
	}, 2*time.Second, 10*time.Millisecond)

	client.Push("products", []string{"Hat"})

	msg := readFrame(t, conn)
	assert.Equal(t, "products", msg.Type)
	assert.Equal(t, []interface{}{"Hat"}, msg.Data)
}

func TestClient_UnregistersWhenPeerLeaves(t *testing.T) {
	hub := NewHub()
	clients := make(chan *Client, 1)
	url := startServer(t, hub, clients)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	client := <-clients

	require.Eventually(t, func() bool {
		return hub.Count("products") == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not finish after peer left")
	}
	assert.Equal(t, 0, hub.Count("products"))

	client.Push("products", nil)
}

func TestClient_PushKeepsLatestFrame(t *testing.T) {
	client := NewClient(nil, nil, "cart", "anon_a")

	client.Push("cart", 1)
	client.Push("cart", 2)
	client.Push("cart", 3)

	require.Len(t, client.send, 1)
	var msg Message
	require.NoError(t, json.Unmarshal(<-client.send, &msg))
	assert.Equal(t, float64(3), msg.Data)
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub()
	clients := make(chan *Client, 1)
	url := startServer(t, hub, clients)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	<-clients

	require.Eventually(t, func() bool {
		return hub.Count("products") == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.CloseAll()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}
