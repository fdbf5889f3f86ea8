// Package broker defines the capability interfaces a broker adapter must
// implement to participate in bracket order placement, plus a static
// registry mapping broker identifiers to adapters.
//
// Every adapter can place an entry order. GTT OCO support is optional and
// discovered at runtime via a type assertion to OCOPlacer; its absence is a
// degraded-but-valid capability, not an error.
package broker

import "context"

// EntryOrder is the entry leg of a bracket order.
type EntryOrder struct {
	Symbol    string
	Exchange  string
	Product   string
	Action    string // normalized BUY or SELL
	Quantity  int64
	Price     float64
	PriceType string // LIMIT for bracket entries
	OrderType string // REGULAR for bracket entries
	Validity  string
	Tag       string
}

// EntryResult is the broker's verdict on an entry placement.
// Message carries the broker's raw reason on failure.
type EntryResult struct {
	Success bool
	OrderID string
	Message string
}

// OCOOrder is the protective GTT OCO pair for a confirmed entry.
type OCOOrder struct {
	Symbol      string
	Exchange    string
	Product     string
	Action      string // the entry action; legs are placed opposite
	Quantity    int64
	SLPrice     float64
	TargetPrice float64
}

// OCOResult reports the protective pair placement. Some brokers return a
// single group/GTT rule id rather than a distinct target order id; callers
// fall back to GroupID when TargetOrderID is empty.
type OCOResult struct {
	Success       bool
	SLOrderID     string
	TargetOrderID string
	GroupID       string
	Message       string
}

// Broker is the minimum capability set: synchronous entry placement.
type Broker interface {
	// Name returns the registry identifier, e.g. "angelone".
	Name() string

	// PlaceEntry places the entry leg using the caller's session token.
	PlaceEntry(ctx context.Context, authToken string, ord EntryOrder) (EntryResult, error)
}

// OCOPlacer is the optional protective-pair capability.
type OCOPlacer interface {
	PlaceOCO(ctx context.Context, authToken string, ord OCOOrder) (OCOResult, error)
}

// SupportsOCO reports whether the adapter can place a GTT OCO pair.
func SupportsOCO(b Broker) bool {
	_, ok := b.(OCOPlacer)
	return ok
}
