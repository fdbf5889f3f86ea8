package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"trading-gatewayv1/internal/model"
)

func TestTelegramNotifier_SendsMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("bot-token", "chat-42")
	n.apiBase = srv.URL

	err := n.Send(context.Background(), Alert{
		Level:   AlertWarning,
		Title:   "placebracketorder: error",
		Message: "Entry order failed",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/botbot-token/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["chat_id"] != "chat-42" {
		t.Errorf("chat_id = %q", gotBody["chat_id"])
	}
	if gotBody["parse_mode"] != "MarkdownV2" {
		t.Errorf("parse_mode = %q", gotBody["parse_mode"])
	}
	if !strings.Contains(gotBody["text"], "placebracketorder") {
		t.Errorf("text = %q", gotBody["text"])
	}
}

func TestTelegramNotifier_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("tok", "chat")
	n.apiBase = srv.URL

	if err := n.Send(context.Background(), Alert{Title: "x"}); err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestEscapeMarkdown(t *testing.T) {
	in := "BUY INFY entry=1500.00 (pending)"
	out := escapeMarkdown(in)
	for _, want := range []string{`\.`, `\(`, `\)`, `\=`} {
		if !strings.Contains(out, want) {
			t.Errorf("escaped %q missing %q", out, want)
		}
	}
}

func TestWebhookNotifier_Payload(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.Send(context.Background(), Alert{
		Level:   AlertInfo,
		Title:   "placebracketorder: success",
		Message: "Bracket order completed successfully",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["service"] != "order_gateway" {
		t.Errorf("service = %q", got["service"])
	}
	if got["level"] != "INFO" {
		t.Errorf("level = %q", got["level"])
	}
	if got["ts"] == "" {
		t.Error("payload missing ts")
	}
}

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Send(_ context.Context, _ Alert) error {
	s.calls++
	return s.err
}

func TestMultiNotifier_AttemptsAllBackends(t *testing.T) {
	a := &stubNotifier{err: errors.New("telegram down")}
	b := &stubNotifier{}
	m := NewMultiNotifier(a, b)

	err := m.Send(context.Background(), Alert{Title: "x"})
	if err == nil || err.Error() != "telegram down" {
		t.Errorf("err = %v", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("calls = %d, %d; want 1, 1", a.calls, b.calls)
	}
}

func TestOrderAlert_Format(t *testing.T) {
	qty := int64(10)
	entry, sl, target := 1500.0, 1480.0, 1550.0
	req := model.BracketOrderRequest{
		Symbol:      "INFY",
		Exchange:    "NSE",
		Product:     "MIS",
		Action:      "BUY",
		Quantity:    &qty,
		EntryPrice:  &entry,
		SLPrice:     &sl,
		TargetPrice: &target,
	}
	resp := model.BracketOrderResponse{
		Status:        "success",
		Message:       "Bracket order completed successfully",
		EntryOrderID:  "E-1",
		SLOrderID:     "S-1",
		TargetOrderID: "T-1",
	}

	alert := OrderAlert("placebracketorder", req, resp, "secret-api-key-123")
	if alert.Level != AlertInfo {
		t.Errorf("level = %q", alert.Level)
	}
	if alert.Title != "placebracketorder: success" {
		t.Errorf("title = %q", alert.Title)
	}
	for _, want := range []string{"BUY INFY", "qty=10", "entry=1500.00", "entry_order_id: E-1", "sl_order_id: S-1"} {
		if !strings.Contains(alert.Message, want) {
			t.Errorf("message missing %q:\n%s", want, alert.Message)
		}
	}
	if strings.Contains(alert.Message, "secret-api-key-123") {
		t.Error("message leaks the full api key")
	}
	if !strings.Contains(alert.Message, "secret...") {
		t.Errorf("message missing masked key:\n%s", alert.Message)
	}
}

func TestOrderAlert_FailureLevel(t *testing.T) {
	alert := OrderAlert("placebracketorder",
		model.BracketOrderRequest{Symbol: "INFY", Action: "BUY"},
		model.BracketOrderResponse{Status: "error", Message: "Entry order failed: rejected"},
		"")
	if alert.Level != AlertWarning {
		t.Errorf("level = %q, want WARNING", alert.Level)
	}
}
