// Package paper simulates a broker without network calls. Useful for
// development and staging: entries always fill and the OCO pair is
// acknowledged with a single simulated GTT group id.
package paper

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"trading-gatewayv1/internal/broker"
)

// PlacedOrder records a simulated placement for inspection.
type PlacedOrder struct {
	OrderID  string
	Kind     string // "entry" or "oco"
	Symbol   string
	Action   string
	Quantity int64
	PlacedAt time.Time
}

// Broker is the simulated adapter. Safe for concurrent use.
type Broker struct {
	mu       sync.Mutex
	orderSeq int64
	placed   []PlacedOrder
}

// New creates a paper broker.
func New() *Broker {
	return &Broker{placed: make([]PlacedOrder, 0, 64)}
}

func (b *Broker) Name() string { return "paper" }

// PlaceEntry always fills.
func (b *Broker) PlaceEntry(ctx context.Context, authToken string, ord broker.EntryOrder) (broker.EntryResult, error) {
	b.mu.Lock()
	b.orderSeq++
	orderID := fmt.Sprintf("PAPER-%d", b.orderSeq)
	b.placed = append(b.placed, PlacedOrder{
		OrderID:  orderID,
		Kind:     "entry",
		Symbol:   ord.Symbol,
		Action:   ord.Action,
		Quantity: ord.Quantity,
		PlacedAt: time.Now(),
	})
	b.mu.Unlock()

	log.Printf("[paper] entry %s %s qty=%d price=%.2f order=%s",
		ord.Action, ord.Symbol, ord.Quantity, ord.Price, orderID)
	return broker.EntryResult{Success: true, OrderID: orderID}, nil
}

// PlaceOCO acknowledges the pair with an SL rule id and a group id but no
// distinct target id, the way GTT-group brokers respond.
func (b *Broker) PlaceOCO(ctx context.Context, authToken string, ord broker.OCOOrder) (broker.OCOResult, error) {
	b.mu.Lock()
	b.orderSeq++
	slID := fmt.Sprintf("PAPER-GTT-%d", b.orderSeq)
	b.orderSeq++
	groupID := fmt.Sprintf("PAPER-OCO-%d", b.orderSeq)
	b.placed = append(b.placed, PlacedOrder{
		OrderID:  groupID,
		Kind:     "oco",
		Symbol:   ord.Symbol,
		Action:   ord.Action,
		Quantity: ord.Quantity,
		PlacedAt: time.Now(),
	})
	b.mu.Unlock()

	log.Printf("[paper] oco %s sl=%.2f target=%.2f sl_rule=%s group=%s",
		ord.Symbol, ord.SLPrice, ord.TargetPrice, slID, groupID)
	return broker.OCOResult{
		Success:   true,
		SLOrderID: slID,
		GroupID:   groupID,
	}, nil
}

// Placed returns a snapshot of all simulated placements.
func (b *Broker) Placed() []PlacedOrder {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]PlacedOrder, len(b.placed))
	copy(cp, b.placed)
	return cp
}
