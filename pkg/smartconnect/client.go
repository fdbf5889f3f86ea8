// Package smartconnect is a minimal Angel One SmartAPI client covering what
// the order gateway needs: session generation, order placement, and GTT
// rule management.
package smartconnect

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const (
	defaultRoot    = "https://apiconnect.angelone.in"
	defaultTimeout = 7 * time.Second
)

var routes = map[string]string{
	"api.login":  "/rest/auth/angelbroking/user/v1/loginByPassword",
	"api.logout": "/rest/secure/angelbroking/user/v1/logout",
	"api.token":  "/rest/auth/angelbroking/jwt/v1/generateTokens",

	"api.order.place":  "/rest/secure/angelbroking/order/v1/placeOrder",
	"api.order.cancel": "/rest/secure/angelbroking/order/v1/cancelOrder",
	"api.order.book":   "/rest/secure/angelbroking/order/v1/getOrderBook",

	"api.gtt.create":  "/gtt-service/rest/secure/angelbroking/gtt/v1/createRule",
	"api.gtt.cancel":  "/gtt-service/rest/secure/angelbroking/gtt/v1/cancelRule",
	"api.gtt.details": "/rest/secure/angelbroking/gtt/v1/ruleDetails",
}

// Config configures a SmartConnect client.
type Config struct {
	APIKey      string
	AccessToken string

	RootURL string        // default: https://apiconnect.angelone.in
	Timeout time.Duration // default: 7s
	Debug   bool

	ClientLocalIP  string // default 127.0.0.1
	ClientPublicIP string // default 106.193.147.98
	ClientMAC      string // default fd:12:3a:56:78:90
}

// SmartConnect is an Angel One SmartAPI REST client.
type SmartConnect struct {
	apiKey      string
	accessToken string

	rootURL string
	debug   bool

	httpClient *http.Client

	clientLocalIP  string
	clientPublicIP string
	clientMAC      string
}

// New creates a client from cfg, applying defaults for unset fields.
func New(cfg Config) *SmartConnect {
	root := cfg.RootURL
	if root == "" {
		root = defaultRoot
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	localIP := cfg.ClientLocalIP
	if localIP == "" {
		localIP = "127.0.0.1"
	}
	publicIP := cfg.ClientPublicIP
	if publicIP == "" {
		publicIP = "106.193.147.98"
	}
	mac := cfg.ClientMAC
	if mac == "" {
		mac = "fd:12:3a:56:78:90"
	}
	return &SmartConnect{
		apiKey:         cfg.APIKey,
		accessToken:    cfg.AccessToken,
		rootURL:        root,
		debug:          cfg.Debug,
		httpClient:     &http.Client{Timeout: timeout},
		clientLocalIP:  localIP,
		clientPublicIP: publicIP,
		clientMAC:      mac,
	}
}

// WithSession returns a shallow copy bound to accessToken. The HTTP client
// is shared, so per-request copies are cheap.
func (sc *SmartConnect) WithSession(accessToken string) *SmartConnect {
	cp := *sc
	cp.accessToken = accessToken
	return &cp
}

// APIResponse is the common SmartAPI envelope.
type APIResponse struct {
	Status    bool            `json:"status"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"errorcode"`
	Data      json.RawMessage `json:"data"`
}

// APIError is returned when the API answers with status=false or an
// error_type body (e.g. TokenException).
type APIError struct {
	Code    string
	Message string
	HTTP    int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("smartapi: %s (%s, http %d)", e.Message, e.Code, e.HTTP)
}

func (sc *SmartConnect) requestHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("X-ClientLocalIP", sc.clientLocalIP)
	h.Set("X-ClientPublicIP", sc.clientPublicIP)
	h.Set("X-MACAddress", sc.clientMAC)
	h.Set("X-PrivateKey", sc.apiKey)
	h.Set("X-UserType", "USER")
	h.Set("X-SourceID", "WEB")
	if sc.accessToken != "" {
		h.Set("Authorization", "Bearer "+sc.accessToken)
	}
	return h
}

func (sc *SmartConnect) post(route string, params any) (*APIResponse, error) {
	uri, ok := routes[route]
	if !ok {
		return nil, fmt.Errorf("unknown route: %s", route)
	}
	reqURL := sc.rootURL + uri

	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = sc.requestHeaders()

	if sc.debug {
		log.Printf("[smartconnect] POST %s body=%s", reqURL, body)
	}

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if sc.debug {
		log.Printf("[smartconnect] response code=%d body=%s", resp.StatusCode, raw)
	}

	// Exception-style body: {"error_type": "TokenException", "message": "..."}
	var exc struct {
		ErrorType string `json:"error_type"`
		Message   string `json:"message"`
	}
	if json.Unmarshal(raw, &exc) == nil && exc.ErrorType != "" {
		return nil, &APIError{Code: exc.ErrorType, Message: exc.Message, HTTP: resp.StatusCode}
	}

	var out APIResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("couldn't parse JSON response: %w", err)
	}
	if !out.Status {
		return &out, &APIError{Code: out.ErrorCode, Message: out.Message, HTTP: resp.StatusCode}
	}
	return &out, nil
}

// SessionTokens are the credentials returned by a successful login.
type SessionTokens struct {
	JWTToken     string `json:"jwtToken"`
	RefreshToken string `json:"refreshToken"`
	FeedToken    string `json:"feedToken"`
}

// GenerateSession logs in with client code, password, and a fresh TOTP code,
// and binds the resulting JWT to this client.
func (sc *SmartConnect) GenerateSession(clientCode, password, totp string) (SessionTokens, error) {
	res, err := sc.post("api.login", map[string]string{
		"clientcode": clientCode,
		"password":   password,
		"totp":       totp,
	})
	if err != nil {
		return SessionTokens{}, err
	}

	var tokens SessionTokens
	if err := json.Unmarshal(res.Data, &tokens); err != nil {
		return SessionTokens{}, fmt.Errorf("unexpected login response format: %w", err)
	}
	if tokens.JWTToken == "" {
		return SessionTokens{}, errors.New("login succeeded but no JWT token returned")
	}
	sc.accessToken = tokens.JWTToken
	return tokens, nil
}

// TerminateSession logs out the given client code.
func (sc *SmartConnect) TerminateSession(clientCode string) error {
	_, err := sc.post("api.logout", map[string]string{"clientcode": clientCode})
	return err
}

// OrderParams are the fields SmartAPI's placeOrder accepts. Numeric fields
// are strings on the wire.
type OrderParams struct {
	Variety           string `json:"variety"` // NORMAL, STOPLOSS, AMO
	TradingSymbol     string `json:"tradingsymbol"`
	SymbolToken       string `json:"symboltoken,omitempty"`
	TransactionType   string `json:"transactiontype"` // BUY, SELL
	Exchange          string `json:"exchange"`
	OrderType         string `json:"ordertype"`   // MARKET, LIMIT, SL, SL-M
	ProductType       string `json:"producttype"` // INTRADAY, DELIVERY, CARRYFORWARD
	Duration          string `json:"duration"`    // DAY, IOC
	Price             string `json:"price,omitempty"`
	Quantity          string `json:"quantity"`
	DisclosedQuantity string `json:"disclosedquantity,omitempty"`
	OrderTag          string `json:"ordertag,omitempty"`
}

// PlaceOrder places an order and returns the broker order id.
func (sc *SmartConnect) PlaceOrder(params OrderParams) (string, error) {
	res, err := sc.post("api.order.place", params)
	if err != nil {
		return "", err
	}
	var data struct {
		OrderID string `json:"orderid"`
	}
	if err := json.Unmarshal(res.Data, &data); err != nil || data.OrderID == "" {
		return "", fmt.Errorf("invalid placeOrder response: %s", res.Data)
	}
	return data.OrderID, nil
}

// CancelOrder cancels an order by id.
func (sc *SmartConnect) CancelOrder(orderID, variety string) error {
	_, err := sc.post("api.order.cancel", map[string]string{
		"orderid": orderID,
		"variety": variety,
	})
	return err
}

// GTTParams are the fields for a GTT rule. A rule fires a limit order at
// Price when the trigger price is crossed.
type GTTParams struct {
	TradingSymbol   string  `json:"tradingsymbol"`
	SymbolToken     string  `json:"symboltoken,omitempty"`
	Exchange        string  `json:"exchange"`
	ProductType     string  `json:"producttype"`
	TransactionType string  `json:"transactiontype"`
	Price           float64 `json:"price"`
	Qty             int64   `json:"qty"`
	TriggerPrice    float64 `json:"triggerprice"`
	DisclosedQty    int64   `json:"disclosedqty"`
	TimePeriod      int     `json:"timeperiod,omitempty"` // rule validity in days
}

// GTTCreateRule creates a GTT rule and returns the rule id.
func (sc *SmartConnect) GTTCreateRule(params GTTParams) (string, error) {
	res, err := sc.post("api.gtt.create", params)
	if err != nil {
		return "", err
	}
	var data struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(res.Data, &data); err != nil || data.ID.String() == "" {
		return "", fmt.Errorf("invalid createRule response: %s", res.Data)
	}
	return data.ID.String(), nil
}

// GTTCancelRule cancels a GTT rule.
func (sc *SmartConnect) GTTCancelRule(ruleID, symbolToken, exchange string) error {
	_, err := sc.post("api.gtt.cancel", map[string]string{
		"id":          ruleID,
		"symboltoken": symbolToken,
		"exchange":    exchange,
	})
	return err
}
