package smartconnect

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(handler http.HandlerFunc) (*SmartConnect, *httptest.Server) {
	srv := httptest.NewServer(handler)
	sc := New(Config{APIKey: "test-key", AccessToken: "jwt", RootURL: srv.URL})
	return sc, srv
}

func TestPlaceOrder_Success(t *testing.T) {
	var gotPath string
	var gotBody OrderParams
	sc, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		if r.Header.Get("Authorization") != "Bearer jwt" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("X-PrivateKey") != "test-key" {
			t.Errorf("missing X-PrivateKey header")
		}
		w.Write([]byte(`{"status":true,"message":"SUCCESS","data":{"orderid":"230211000123"}}`))
	})
	defer srv.Close()

	orderID, err := sc.PlaceOrder(OrderParams{
		Variety:         "NORMAL",
		TradingSymbol:   "INFY-EQ",
		TransactionType: "BUY",
		Exchange:        "NSE",
		OrderType:       "LIMIT",
		ProductType:     "INTRADAY",
		Duration:        "DAY",
		Price:           "1500.00",
		Quantity:        "1",
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if orderID != "230211000123" {
		t.Errorf("order id: got %q", orderID)
	}
	if gotPath != routes["api.order.place"] {
		t.Errorf("path: got %q", gotPath)
	}
	if gotBody.TradingSymbol != "INFY-EQ" || gotBody.Quantity != "1" {
		t.Errorf("body: got %+v", gotBody)
	}
}

func TestPlaceOrder_Rejected(t *testing.T) {
	sc, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":false,"message":"Insufficient funds","errorcode":"AB1004","data":null}`))
	})
	defer srv.Close()

	_, err := sc.PlaceOrder(OrderParams{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "Insufficient funds" || apiErr.Code != "AB1004" {
		t.Errorf("got %+v", apiErr)
	}
}

func TestPost_TokenException(t *testing.T) {
	sc, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error_type":"TokenException","message":"Token expired"}`))
	})
	defer srv.Close()

	_, err := sc.PlaceOrder(OrderParams{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "TokenException" || apiErr.HTTP != http.StatusForbidden {
		t.Errorf("got %+v", apiErr)
	}
}

func TestGTTCreateRule_NumericID(t *testing.T) {
	sc, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		// The GTT service returns the rule id as a bare number.
		w.Write([]byte(`{"status":true,"message":"SUCCESS","data":{"id":1000051}}`))
	})
	defer srv.Close()

	id, err := sc.GTTCreateRule(GTTParams{
		TradingSymbol:   "INFY-EQ",
		Exchange:        "NSE",
		ProductType:     "DELIVERY",
		TransactionType: "SELL",
		Price:           1480,
		Qty:             1,
		TriggerPrice:    1480,
	})
	if err != nil {
		t.Fatalf("GTTCreateRule: %v", err)
	}
	if id != "1000051" {
		t.Errorf("rule id: got %q", id)
	}
}

func TestGenerateSession_BindsToken(t *testing.T) {
	sc, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"message":"SUCCESS","data":{"jwtToken":"new-jwt","refreshToken":"rt","feedToken":"ft"}}`))
	})
	defer srv.Close()

	tokens, err := sc.GenerateSession("C123", "pin", "123456")
	if err != nil {
		t.Fatalf("GenerateSession: %v", err)
	}
	if tokens.JWTToken != "new-jwt" || tokens.FeedToken != "ft" {
		t.Errorf("tokens: got %+v", tokens)
	}
	if sc.accessToken != "new-jwt" {
		t.Errorf("client not bound to new JWT")
	}
}
