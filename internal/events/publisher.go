// Package events publishes bracket order progress events to Redis PubSub.
// Consumers (the gateway WebSocket hub, external subscribers) listen on
// per-symbol channels.
package events

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"trading-gatewayv1/internal/metrics"
	"trading-gatewayv1/internal/model"
)

// ChannelPrefix is the PubSub channel namespace for bracket order events.
// Full channel: pub:bracket:<SYMBOL>.
const ChannelPrefix = "pub:bracket:"

// Channel returns the PubSub channel for a symbol.
func Channel(symbol string) string {
	return ChannelPrefix + strings.ToUpper(symbol)
}

// Publisher publishes BracketOrderEvents, guarded by a circuit breaker so a
// Redis outage degrades to dropped events instead of blocked requests.
type Publisher struct {
	rdb     *goredis.Client
	breaker *CircuitBreaker
	metrics *metrics.Metrics // optional
}

// NewPublisher creates a Publisher. m may be nil.
func NewPublisher(rdb *goredis.Client, m *metrics.Metrics) *Publisher {
	p := &Publisher{
		rdb:     rdb,
		breaker: NewCircuitBreaker(5, 10*time.Second),
		metrics: m,
	}
	p.breaker.OnStateChange = func(from, to State) {
		log.Printf("[events] circuit breaker %s -> %s", from, to)
		if p.metrics != nil {
			p.metrics.EventBreakerState.Set(float64(to))
			if to == StateOpen {
				p.metrics.EventBreakerTrips.Inc()
			}
		}
	}
	return p
}

// Publish sends the event on its symbol channel. Best-effort: the error is
// returned for logging but callers must not fail the order on it.
func (p *Publisher) Publish(ctx context.Context, ev model.BracketOrderEvent) error {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	err = p.breaker.Execute(func() error {
		return p.rdb.Publish(ctx, Channel(ev.Symbol), payload).Err()
	})
	if p.metrics != nil {
		if err != nil {
			p.metrics.EventsDropped.Inc()
		} else {
			p.metrics.EventsPublished.Inc()
		}
	}
	return err
}
