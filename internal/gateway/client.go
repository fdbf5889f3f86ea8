package gateway

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"trading-gatewayv1/internal/events"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Per-client symbol subscriptions. Empty set = receive everything.
	subMu   sync.RWMutex
	symbols map[string]bool
}

// SubscribeMsg is the client-to-server subscription message.
type SubscribeMsg struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

func (c *Client) sendInitialState(lastTS string) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	var cutoff time.Time
	if lastTS != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, lastTS); err == nil {
			cutoff = parsed
		}
	}

	for channel, entry := range c.hub.latest {
		if !cutoff.IsZero() && !entry.TS.After(cutoff) {
			continue
		}
		envelope, _ := json.Marshal(map[string]interface{}{
			"channel": channel,
			"data":    json.RawMessage(entry.Data),
			"ts":      entry.TS.Format(time.RFC3339Nano),
			"initial": true,
		})
		select {
		case c.send <- envelope:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Write coalescing: batch queued messages into a single frame
			// with newline separators
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		c.hub.logger.Info("ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var base struct {
			Type string `json:"type"`
			Ping int64  `json:"ping"`
		}
		if json.Unmarshal(msg, &base) != nil {
			continue
		}

		switch base.Type {
		case "SUBSCRIBE":
			var subMsg SubscribeMsg
			if err := json.Unmarshal(msg, &subMsg); err != nil {
				continue
			}
			c.handleSubscribe(subMsg)

		case "UNSUBSCRIBE":
			var unsubMsg SubscribeMsg
			if err := json.Unmarshal(msg, &unsubMsg); err != nil {
				continue
			}
			c.handleUnsubscribe(unsubMsg)

		default:
			if base.Ping > 0 {
				pong, _ := json.Marshal(map[string]interface{}{
					"type":      "pong",
					"ping":      base.Ping,
					"server_ts": time.Now().UnixMilli(),
				})
				select {
				case c.send <- pong:
				default:
				}
			}
		}
	}
}

// handleSubscribe adds the message's symbols to this client's filter set.
func (c *Client) handleSubscribe(msg SubscribeMsg) {
	c.subMu.Lock()
	for _, sym := range msg.Symbols {
		if sym == "" {
			continue
		}
		c.symbols[strings.ToUpper(sym)] = true
	}
	count := len(c.symbols)
	c.subMu.Unlock()

	c.hub.logger.Info("ws client subscribed", "symbols", msg.Symbols, "total", count)
}

// handleUnsubscribe removes the message's symbols from the filter set.
func (c *Client) handleUnsubscribe(msg SubscribeMsg) {
	c.subMu.Lock()
	for _, sym := range msg.Symbols {
		delete(c.symbols, strings.ToUpper(sym))
	}
	c.subMu.Unlock()

	c.hub.logger.Info("ws client unsubscribed", "symbols", msg.Symbols)
}

// matchesChannel reports whether this client should receive a message
// published on channel. Clients with no explicit subscriptions receive
// everything.
func (c *Client) matchesChannel(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	if len(c.symbols) == 0 {
		return true
	}
	sym, ok := parseChannel(channel)
	if !ok {
		return true
	}
	return c.symbols[sym]
}

// parseChannel extracts the symbol from a bracket event channel like
// "pub:bracket:INFY". Returns false for channels outside that namespace.
func parseChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, events.ChannelPrefix) {
		return "", false
	}
	sym := channel[len(events.ChannelPrefix):]
	if sym == "" {
		return "", false
	}
	return sym, true
}
