package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stockboard/market"
)

// wsMessage is the frame pushed to dashboard clients.
type wsMessage struct {
	Type      string          `json:"type"`
	Symbol    string          `json:"symbol,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// clientMessage is the frame received from dashboard clients.
type clientMessage struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte

	mu            sync.Mutex
	subscriptions map[string]bool
}

func (c *wsClient) subscribed(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscriptions[symbol]
}

// Hub fans enriched snapshots out to dashboard websockets. Clients subscribe
// per symbol; the refresh loop reloads subscribed symbols on a fixed cadence
// and pushes the latest snapshot to everyone watching.
type Hub struct {
	loader   SeriesLoader
	interval time.Duration

	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient

	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

func NewHub(loader SeriesLoader, refresh time.Duration) *Hub {
	if refresh <= 0 {
		refresh = 30 * time.Second
	}
	return &Hub{
		loader:     loader,
		interval:   refresh,
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: zap.S(),
	}
}

// Run owns the client set and the refresh cadence until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.log.Infow("ws client connected", "total", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.log.Infow("ws client disconnected", "total", len(h.clients))

		case <-ticker.C:
			h.pushSnapshots(ctx)

		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.log.Info("ws hub stopped")
			return
		}
	}
}

// pushSnapshots reloads every symbol at least one client watches and sends
// the snapshot to its subscribers.
func (h *Hub) pushSnapshots(ctx context.Context) {
	symbols := make(map[string]bool)
	for client := range h.clients {
		client.mu.Lock()
		for s := range client.subscriptions {
			symbols[s] = true
		}
		client.mu.Unlock()
	}

	for symbol := range symbols {
		series, err := h.loader.Load(ctx, symbol, market.IntervalDaily)
		if err != nil {
			h.log.Warnw("ws refresh failed", "symbol", symbol, "err", err)
			continue
		}

		data, err := json.Marshal(series.Snapshot(0))
		if err != nil {
			continue
		}
		frame, _ := json.Marshal(wsMessage{
			Type:      "snapshot",
			Symbol:    series.Symbol,
			Timestamp: time.Now(),
			Data:      data,
		})

		for client := range h.clients {
			if !client.subscribed(symbol) {
				continue
			}
			select {
			case client.send <- frame:
			default:
				close(client.send)
				delete(h.clients, client)
			}
		}
	}
}

// HandleWebSocket upgrades the connection and starts the client pumps.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("ws upgrade failed", "err", err)
		return
	}

	client := &wsClient{
		conn:          conn,
		send:          make(chan []byte, 64),
		subscriptions: make(map[string]bool),
	}

	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.S().Warnw("ws read error", "err", err)
			}
			break
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		c.handle(msg)
	}
}

func (c *wsClient) handle(msg clientMessage) {
	if msg.Symbol == "" && msg.Type != "ping" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Type {
	case "subscribe":
		c.subscriptions[msg.Symbol] = true
	case "unsubscribe":
		delete(c.subscriptions, msg.Symbol)
	}
}
