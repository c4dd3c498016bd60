package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfeeds/oracle-aggregator/pkg/logging"
)

func (h *WebSocketHub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func dialHub(t *testing.T, hub *WebSocketHub) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(hub.handleWebSocket))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	// The handler registers the client after the handshake completes.
	require.Eventually(t, func() bool {
		return hub.clientCount() == 1
	}, time.Second, 10*time.Millisecond)

	return conn
}

func TestWebSocketHub_BroadcastsPublications(t *testing.T) {
	hub := NewWebSocketHub(logging.NewNoopLogger())
	defer hub.stop()
	go hub.run()

	conn := dialHub(t, hub)

	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	hub.Publish("BTC", decimal.NewFromInt(50000), at)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	assert.Contains(t, string(message), `"type":"price_update"`)
	assert.Contains(t, string(message), `"asset":"BTC"`)
	assert.Contains(t, string(message), `"price":"50000"`)
	assert.Contains(t, string(message), `"timestamp":"2026-01-01T12:00:00Z"`)
}

func TestWebSocketHub_SubscriptionFiltering(t *testing.T) {
	hub := NewWebSocketHub(logging.NewNoopLogger())
	defer hub.stop()
	go hub.run()

	conn := dialHub(t, hub)

	// Narrow the subscription to ETH only.
	require.NoError(t, conn.WriteJSON(clientMessage{Type: "subscribe", Assets: []string{"ETH"}}))

	// Wait until the subscription change is applied before publishing.
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for client := range hub.clients {
			if !client.shouldReceive("BTC") && client.shouldReceive("ETH") {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	hub.Publish("BTC", decimal.NewFromInt(50000), time.Now())
	hub.Publish("ETH", decimal.NewFromInt(3000), time.Now())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	// The BTC update was filtered; the first frame is the ETH update.
	assert.Contains(t, string(message), `"asset":"ETH"`)
}

func TestWebSocketHub_PublishNeverBlocks(t *testing.T) {
	hub := NewWebSocketHub(logging.NewNoopLogger())
	// run() is intentionally not started: the queue fills up.
	for i := 0; i < 500; i++ {
		hub.Publish("BTC", decimal.NewFromInt(50000), time.Now())
	}
}
