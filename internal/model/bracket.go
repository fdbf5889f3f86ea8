package model

import "time"

// Valid field sets for bracket order requests. These mirror the values the
// upstream brokers accept for Indian cash/derivative segments.
var (
	ValidExchanges = []string{"NSE", "BSE", "MCX", "NCDEX", "FOREX"}
	ValidProducts  = []string{"MIS", "CNC", "NRML"}
)

// Request defaults applied by the transport layer before orchestration.
const (
	DefaultOrderType = "REGULAR"
	DefaultPriceType = "LIMIT"
	DefaultValidity  = "DAY"
)

// BracketOrderRequest is the client payload for placing a bracket order:
// an entry order plus a protective GTT OCO pair (stop-loss + target).
//
// Quantity and the three prices are pointers so a missing field can be told
// apart from an explicit zero during validation.
type BracketOrderRequest struct {
	APIKey            string   `json:"apikey,omitempty"`
	Symbol            string   `json:"symbol"`
	Exchange          string   `json:"exchange"`
	Product           string   `json:"product"`
	Action            string   `json:"action"` // BUY or SELL, case-insensitive
	Quantity          *int64   `json:"quantity"`
	EntryPrice        *float64 `json:"entry_price"`
	SLPrice           *float64 `json:"sl_price"`
	TargetPrice       *float64 `json:"target_price"`
	OrderType         string   `json:"ordertype,omitempty"`
	PriceType         string   `json:"pricetype,omitempty"`
	DisclosedQuantity int64    `json:"disclosed_quantity,omitempty"`
	Validity          string   `json:"validity,omitempty"`
	Tag               string   `json:"tag,omitempty"`
}

// ApplyDefaults fills the optional fields the same way the API schema does.
func (r *BracketOrderRequest) ApplyDefaults() {
	if r.OrderType == "" {
		r.OrderType = DefaultOrderType
	}
	if r.PriceType == "" {
		r.PriceType = DefaultPriceType
	}
	if r.Validity == "" {
		r.Validity = DefaultValidity
	}
}

// Redacted returns a copy safe for logging: the API key is stripped.
func (r BracketOrderRequest) Redacted() BracketOrderRequest {
	r.APIKey = ""
	return r
}

// BracketOrderResponse is the single synchronous reply per request. Status is
// "success" or "error"; the order echo fields are set only on success.
type BracketOrderResponse struct {
	Status        string  `json:"status"`
	Message       string  `json:"message"`
	EntryOrderID  string  `json:"entry_order_id,omitempty"`
	Symbol        string  `json:"symbol,omitempty"`
	EntryPrice    float64 `json:"entry_price,omitempty"`
	SLPrice       float64 `json:"sl_price,omitempty"`
	TargetPrice   float64 `json:"target_price,omitempty"`
	Quantity      int64   `json:"quantity,omitempty"`
	Action        string  `json:"action,omitempty"`
	SLOrderID     string  `json:"sl_order_id,omitempty"`
	TargetOrderID string  `json:"target_order_id,omitempty"`
	GTTOrderID    string  `json:"gtt_order_id,omitempty"`
}

// Event statuses published on the bracket order event channel.
const (
	EventEntryPlaced       = "entry_order_placed"
	EventCompleted         = "completed"
	EventPartialFailure    = "partial_failure"
	EventPartialCompletion = "partial_completion"
	EventError             = "error"
)

// BracketOrderEvent is the append-only progress record published per
// orchestration checkpoint. EntryOrderID is the join key across the
// entry stage and the asynchronous OCO stage.
type BracketOrderEvent struct {
	Symbol        string    `json:"symbol"`
	Status        string    `json:"status"`
	EntryOrderID  string    `json:"entry_order_id"`
	SLOrderID     string    `json:"sl_order_id,omitempty"`
	TargetOrderID string    `json:"target_order_id,omitempty"`
	Message       string    `json:"message"`
	TS            time.Time `json:"ts"`
}
