package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/openfeeds/oracle-aggregator/pkg/logging"
)

// WebSocketHub fans accepted publications out to connected clients.
type WebSocketHub struct {
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]bool

	updates chan priceUpdate

	ctx    context.Context
	cancel context.CancelFunc
}

type wsClient struct {
	conn          *websocket.Conn
	send          chan []byte
	hub           *WebSocketHub
	subscribedAll bool
	subscribed    map[string]bool
	mu            sync.RWMutex
}

type priceUpdate struct {
	asset string
	price decimal.Decimal
	at    time.Time
}

// clientMessage is a message received from a client.
type clientMessage struct {
	Type   string   `json:"type"`   // "subscribe", "unsubscribe", "ping"
	Assets []string `json:"assets"` // assets to (un)subscribe
}

// updateMessage is sent to clients on every accepted publication.
type updateMessage struct {
	Type      string `json:"type"` // "price_update"
	Asset     string `json:"asset"`
	Price     string `json:"price"`
	Timestamp string `json:"timestamp"`
}

// NewWebSocketHub creates a streaming hub. Feed it publications through
// Publish, typically wired to the engine's publish listener.
func NewWebSocketHub(logger *logging.Logger) *WebSocketHub {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		clients: make(map[*wsClient]bool),
		updates: make(chan priceUpdate, 100),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Publish queues an accepted publication for broadcast. Drops the update
// rather than blocking the publishing round.
func (h *WebSocketHub) Publish(asset string, price decimal.Decimal, at time.Time) {
	select {
	case h.updates <- priceUpdate{asset: asset, price: price, at: at}:
	default:
		h.logger.Warn("Update channel full, dropping broadcast", "asset", asset)
	}
}

// run broadcasts queued updates until the hub is stopped.
func (h *WebSocketHub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case update := <-h.updates:
			h.broadcast(update)
		}
	}
}

func (h *WebSocketHub) stop() {
	h.cancel()
}

// handleWebSocket upgrades a connection and starts the client pumps.
func (h *WebSocketHub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", "error", err.Error())
		return
	}

	client := &wsClient{
		conn:          conn,
		send:          make(chan []byte, 256),
		hub:           h,
		subscribedAll: true, // subscribe to all assets by default
		subscribed:    make(map[string]bool),
	}

	h.registerClient(client)

	go client.writePump()
	go client.readPump()

	h.logger.Info("WebSocket client connected", "remote", conn.RemoteAddr().String())
}

func (h *WebSocketHub) registerClient(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

func (h *WebSocketHub) unregisterClient(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// broadcast sends one publication to every subscribed client.
func (h *WebSocketHub) broadcast(update priceUpdate) {
	message := updateMessage{
		Type:      "price_update",
		Asset:     update.asset,
		Price:     update.price.String(),
		Timestamp: update.at.UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal price update", "error", err.Error())
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.shouldReceive(update.asset) {
			select {
			case client.send <- data:
			default:
				h.logger.Warn("Client send buffer full, skipping update")
			}
		}
	}
}

// writePump sends queued messages and periodic pings to the connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Error("Failed to write message", "error", err.Error())
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client messages until the connection closes.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket error", "error", err.Error())
			}
			break
		}

		c.handleMessage(message)
	}
}

func (c *wsClient) handleMessage(data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.hub.logger.Warn("Invalid client message", "error", err.Error())
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subscribe(msg.Assets)
	case "unsubscribe":
		c.unsubscribe(msg.Assets)
	case "ping":
		c.sendPong()
	default:
		c.hub.logger.Warn("Unknown message type", "type", msg.Type)
	}
}

// subscribe narrows the client to specific assets; empty or "*" means all.
func (c *wsClient) subscribe(assets []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(assets) == 0 || (len(assets) == 1 && assets[0] == "*") {
		c.subscribedAll = true
		c.subscribed = make(map[string]bool)
	} else {
		c.subscribedAll = false
		for _, asset := range assets {
			c.subscribed[asset] = true
		}
	}
}

func (c *wsClient) unsubscribe(assets []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(assets) == 0 || (len(assets) == 1 && assets[0] == "*") {
		c.subscribedAll = false
		c.subscribed = make(map[string]bool)
	} else {
		for _, asset := range assets {
			delete(c.subscribed, asset)
		}
	}
}

func (c *wsClient) shouldReceive(asset string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.subscribedAll {
		return true
	}
	return c.subscribed[asset]
}

func (c *wsClient) sendPong() {
	pong := map[string]string{"type": "pong"}
	data, _ := json.Marshal(pong)
	select {
	case c.send <- data:
	default:
	}
}
