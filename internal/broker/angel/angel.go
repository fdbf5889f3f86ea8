// Package angel adapts Angel One SmartAPI to the gateway's broker
// capability interfaces. The protective OCO pair is implemented as a pair
// of GTT rules (stop-loss leg + target leg) on the exit side.
package angel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"trading-gatewayv1/internal/broker"
	"trading-gatewayv1/pkg/smartconnect"
)

// Name is the registry identifier for this adapter.
const Name = "angelone"

// gateway product → SmartAPI producttype
var productMap = map[string]string{
	"MIS":  "INTRADAY",
	"CNC":  "DELIVERY",
	"NRML": "CARRYFORWARD",
}

// Broker places orders on Angel One. The client is stateless per request:
// the caller's session token is bound per call.
type Broker struct {
	sc *smartconnect.SmartConnect

	// GTT rule validity in days.
	gttTimePeriod int
}

// New creates an adapter using the Angel One application API key.
func New(apiKey string) *Broker {
	return NewWithClient(smartconnect.New(smartconnect.Config{APIKey: apiKey}))
}

// NewWithClient creates an adapter over an existing client (tests point
// this at an httptest server).
func NewWithClient(sc *smartconnect.SmartConnect) *Broker {
	return &Broker{sc: sc, gttTimePeriod: 365}
}

func (b *Broker) Name() string { return Name }

// PlaceEntry places the bracket entry as a NORMAL limit order.
// A broker-side rejection comes back as an unsuccessful EntryResult, not an
// error; errors are reserved for transport failures.
func (b *Broker) PlaceEntry(ctx context.Context, authToken string, ord broker.EntryOrder) (broker.EntryResult, error) {
	sc := b.sc.WithSession(authToken)

	duration := ord.Validity
	if duration == "" {
		duration = "DAY"
	}
	orderID, err := sc.PlaceOrder(smartconnect.OrderParams{
		Variety:         "NORMAL",
		TradingSymbol:   ord.Symbol,
		TransactionType: ord.Action,
		Exchange:        ord.Exchange,
		OrderType:       ord.PriceType,
		ProductType:     mapProduct(ord.Product),
		Duration:        duration,
		Price:           strconv.FormatFloat(ord.Price, 'f', 2, 64),
		Quantity:        strconv.FormatInt(ord.Quantity, 10),
		OrderTag:        ord.Tag,
	})
	if err != nil {
		var apiErr *smartconnect.APIError
		if errors.As(err, &apiErr) {
			return broker.EntryResult{Success: false, Message: apiErr.Message}, nil
		}
		return broker.EntryResult{}, err
	}
	return broker.EntryResult{Success: true, OrderID: orderID}, nil
}

// PlaceOCO creates the stop-loss and target GTT rules on the exit side of
// the entry action. If the target leg fails after the SL leg was created,
// the SL rule is cancelled best-effort so a lone leg is not left armed.
func (b *Broker) PlaceOCO(ctx context.Context, authToken string, ord broker.OCOOrder) (broker.OCOResult, error) {
	sc := b.sc.WithSession(authToken)

	exitSide := "SELL"
	if ord.Action == "SELL" {
		exitSide = "BUY"
	}
	product := mapProduct(ord.Product)

	slID, err := sc.GTTCreateRule(smartconnect.GTTParams{
		TradingSymbol:   ord.Symbol,
		Exchange:        ord.Exchange,
		ProductType:     product,
		TransactionType: exitSide,
		Price:           ord.SLPrice,
		Qty:             ord.Quantity,
		TriggerPrice:    ord.SLPrice,
		TimePeriod:      b.gttTimePeriod,
	})
	if err != nil {
		return ocoFailure(err, fmt.Sprintf("SL rule creation failed: %v", err))
	}

	targetID, err := sc.GTTCreateRule(smartconnect.GTTParams{
		TradingSymbol:   ord.Symbol,
		Exchange:        ord.Exchange,
		ProductType:     product,
		TransactionType: exitSide,
		Price:           ord.TargetPrice,
		Qty:             ord.Quantity,
		TriggerPrice:    ord.TargetPrice,
		TimePeriod:      b.gttTimePeriod,
	})
	if err != nil {
		if cancelErr := sc.GTTCancelRule(slID, "", ord.Exchange); cancelErr != nil {
			log.Printf("[angel] failed to cancel orphaned SL rule %s: %v", slID, cancelErr)
		}
		return ocoFailure(err, fmt.Sprintf("target rule creation failed: %v", err))
	}

	return broker.OCOResult{
		Success:       true,
		SLOrderID:     slID,
		TargetOrderID: targetID,
	}, nil
}

// ocoFailure maps API rejections to unsuccessful results and keeps
// transport errors as errors.
func ocoFailure(err error, msg string) (broker.OCOResult, error) {
	var apiErr *smartconnect.APIError
	if errors.As(err, &apiErr) {
		return broker.OCOResult{Success: false, Message: apiErr.Message}, nil
	}
	return broker.OCOResult{}, fmt.Errorf("%s", msg)
}

func mapProduct(product string) string {
	if mapped, ok := productMap[product]; ok {
		return mapped
	}
	return product
}
