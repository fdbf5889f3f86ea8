package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"trading-gatewayv1/internal/metrics"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
)

// Hub manages WebSocket clients and Redis PubSub fan-out for bracket order
// events. It delegates to focused components:
//   - PubSubRouter: Redis pattern subscription + message routing
//   - Broadcaster: envelope construction + client-filtered fan-out
type Hub struct {
	Rdb *goredis.Client

	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64

	logger  *slog.Logger
	metrics *metrics.Metrics

	Router      *PubSubRouter
	Broadcaster *Broadcaster
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
}

// NewHub creates a Hub for managing WS clients and PubSub. The metrics
// handle may be nil.
func NewHub(rdb *goredis.Client, logger *slog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		Rdb:     rdb,
		clients: make(map[*Client]bool),
		latest:  make(map[string]latestEntry),
		logger:  logger,
		metrics: m,
	}
	h.Router = NewPubSubRouter(h)
	h.Broadcaster = NewBroadcaster(h)
	return h
}

// Run starts the PubSub subscription loop. Blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.Router.Run(ctx)
}

// broadcast delegates to Broadcaster for fan-out.
func (h *Hub) broadcast(channel string, data []byte) {
	h.Broadcaster.Broadcast(channel, data)
}

// HandleWSRequest registers an upgraded connection and starts its pumps.
// lastTS, when set, limits the initial snapshot to events after that time.
func (h *Hub) HandleWSRequest(conn *websocket.Conn, lastTS string) {
	client := &Client{
		conn:    conn,
		send:    make(chan []byte, 256),
		hub:     h,
		symbols: make(map[string]bool),
	}

	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.setClientGauge(count)

	h.logger.Info("ws client connected", "total", count)

	go client.sendInitialState(lastTS)
	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	h.setClientGauge(count)
	close(c.send)
}

// GetLatestAll returns a snapshot of the last event seen per channel.
func (h *Hub) GetLatestAll() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) setClientGauge(n int) {
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(n))
	}
}
