package angel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"trading-gatewayv1/internal/broker"
	"trading-gatewayv1/pkg/smartconnect"
)

const (
	placePath  = "/rest/secure/angelbroking/order/v1/placeOrder"
	gttCreate  = "/gtt-service/rest/secure/angelbroking/gtt/v1/createRule"
	gttCancel  = "/gtt-service/rest/secure/angelbroking/gtt/v1/cancelRule"
	okTemplate = `{"status":true,"message":"SUCCESS","errorcode":"","data":%s}`
)

func newTestBroker(handler http.HandlerFunc) (*Broker, *httptest.Server) {
	srv := httptest.NewServer(handler)
	sc := smartconnect.New(smartconnect.Config{APIKey: "test-key", RootURL: srv.URL})
	return NewWithClient(sc), srv
}

func entryOrder() broker.EntryOrder {
	return broker.EntryOrder{
		Symbol:    "INFY-EQ",
		Exchange:  "NSE",
		Product:   "MIS",
		Action:    "BUY",
		Quantity:  10,
		Price:     1500,
		PriceType: "LIMIT",
		OrderType: "REGULAR",
	}
}

func TestPlaceEntry_Success(t *testing.T) {
	var gotBody map[string]string
	b, srv := newTestBroker(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != placePath {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprintf(w, okTemplate, `{"orderid":"240901000000123"}`)
	})
	defer srv.Close()

	res, err := b.PlaceEntry(context.Background(), "jwt", entryOrder())
	if err != nil {
		t.Fatalf("PlaceEntry: %v", err)
	}
	if !res.Success || res.OrderID != "240901000000123" {
		t.Fatalf("result = %+v", res)
	}
	if gotBody["producttype"] != "INTRADAY" {
		t.Errorf("producttype = %q, want INTRADAY", gotBody["producttype"])
	}
	if gotBody["price"] != "1500.00" {
		t.Errorf("price = %q", gotBody["price"])
	}
	if gotBody["variety"] != "NORMAL" {
		t.Errorf("variety = %q", gotBody["variety"])
	}
}

func TestPlaceEntry_BrokerRejection(t *testing.T) {
	b, srv := newTestBroker(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":false,"message":"Insufficient funds","errorcode":"AB1004","data":null}`)
	})
	defer srv.Close()

	res, err := b.PlaceEntry(context.Background(), "jwt", entryOrder())
	if err != nil {
		t.Fatalf("rejection must not be a transport error: %v", err)
	}
	if res.Success {
		t.Fatal("expected unsuccessful result")
	}
	if res.Message != "Insufficient funds" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestPlaceOCO_CreatesBothLegsOnExitSide(t *testing.T) {
	var rules []map[string]any
	b, srv := newTestBroker(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != gttCreate {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		rules = append(rules, body)
		fmt.Fprintf(w, okTemplate, fmt.Sprintf(`{"id":%d}`, 1000050+len(rules)))
	})
	defer srv.Close()

	res, err := b.PlaceOCO(context.Background(), "jwt", broker.OCOOrder{
		Symbol:      "INFY-EQ",
		Exchange:    "NSE",
		Product:     "MIS",
		Action:      "BUY",
		Quantity:    10,
		SLPrice:     1480,
		TargetPrice: 1550,
	})
	if err != nil {
		t.Fatalf("PlaceOCO: %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if res.SLOrderID != "1000051" || res.TargetOrderID != "1000052" {
		t.Errorf("rule ids = %q, %q", res.SLOrderID, res.TargetOrderID)
	}
	if len(rules) != 2 {
		t.Fatalf("created %d rules, want 2", len(rules))
	}
	// Entry was BUY, both protective legs exit on SELL.
	for i, rule := range rules {
		if rule["transactiontype"] != "SELL" {
			t.Errorf("rule %d side = %v, want SELL", i, rule["transactiontype"])
		}
	}
	if rules[0]["triggerprice"].(float64) != 1480 {
		t.Errorf("sl trigger = %v", rules[0]["triggerprice"])
	}
	if rules[1]["triggerprice"].(float64) != 1550 {
		t.Errorf("target trigger = %v", rules[1]["triggerprice"])
	}
}

func TestPlaceOCO_TargetLegFailureCancelsSL(t *testing.T) {
	var creates, cancels int
	b, srv := newTestBroker(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case gttCreate:
			creates++
			if creates == 1 {
				fmt.Fprintf(w, okTemplate, `{"id":1000051}`)
				return
			}
			fmt.Fprint(w, `{"status":false,"message":"Trigger price out of range","errorcode":"AB9001","data":null}`)
		case gttCancel:
			cancels++
			fmt.Fprintf(w, okTemplate, `{"id":1000051}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	defer srv.Close()

	res, err := b.PlaceOCO(context.Background(), "jwt", broker.OCOOrder{
		Symbol: "INFY-EQ", Exchange: "NSE", Product: "MIS", Action: "BUY",
		Quantity: 10, SLPrice: 1480, TargetPrice: 1550,
	})
	if err != nil {
		t.Fatalf("rejection must not be a transport error: %v", err)
	}
	if res.Success {
		t.Fatal("expected unsuccessful result")
	}
	if res.Message != "Trigger price out of range" {
		t.Errorf("message = %q", res.Message)
	}
	if cancels != 1 {
		t.Errorf("SL rule cancelled %d times, want 1", cancels)
	}
}

func TestMapProduct(t *testing.T) {
	tests := []struct{ in, want string }{
		{"MIS", "INTRADAY"},
		{"CNC", "DELIVERY"},
		{"NRML", "CARRYFORWARD"},
		{"UNKNOWN", "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := mapProduct(tt.in); got != tt.want {
			t.Errorf("mapProduct(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
