package gateway

import (
	"strconv"
	"time"
)

// Broadcaster constructs envelope JSON and sends filtered messages to clients.
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a Broadcaster backed by the given Hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// Broadcast sends data on a channel to all subscribed clients.
// Uses hand-crafted JSON envelope for performance (~1μs vs ~25μs for json.Marshal).
func (b *Broadcaster) Broadcast(channel string, data []byte) {
	now := time.Now().UTC()

	b.hub.mu.Lock()
	b.hub.latest[channel] = latestEntry{Data: data, TS: now}
	b.hub.seq++
	seq := b.hub.seq
	b.hub.mu.Unlock()

	buf := make([]byte, 0, len(channel)+len(data)+128)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')

	b.hub.mu.RLock()
	defer b.hub.mu.RUnlock()
	for client := range b.hub.clients {
		if !client.matchesChannel(channel) {
			continue
		}
		select {
		case client.send <- buf:
		default:
		}
	}
}
