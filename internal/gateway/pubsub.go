package gateway

import (
	"context"

	"trading-gatewayv1/internal/events"
)

// PubSubRouter manages the Redis PubSub subscription and routes messages
// to the broadcaster for fan-out to WebSocket clients.
type PubSubRouter struct {
	hub *Hub
}

// NewPubSubRouter creates a PubSubRouter backed by the given Hub.
func NewPubSubRouter(hub *Hub) *PubSubRouter {
	return &PubSubRouter{hub: hub}
}

// Run pattern-subscribes to all bracket order channels and routes messages.
// Blocks until ctx is cancelled.
func (r *PubSubRouter) Run(ctx context.Context) {
	pattern := events.ChannelPrefix + "*"
	pubsub := r.hub.Rdb.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	r.hub.logger.Info("subscribed to PubSub pattern", "pattern", pattern)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.hub.broadcast(msg.Channel, []byte(msg.Payload))
		}
	}
}
