package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"trading-gatewayv1/internal/apilog"
	"trading-gatewayv1/internal/logger"
	"trading-gatewayv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// OrderPlacer runs one bracket order and returns the response body plus
// its HTTP status code.
type OrderPlacer interface {
	Place(ctx context.Context, req model.BracketOrderRequest) (model.BracketOrderResponse, int)
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// decodeErrMessage maps a request decode error to the client-facing message.
// A wrong-typed quantity (float, string) gets its own message; everything
// else is a malformed body.
func decodeErrMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field == "quantity" {
		return "Invalid quantity"
	}
	return "Invalid JSON request body"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, rdb *goredis.Client, orders OrderPlacer, journal *apilog.Journal, processStart time.Time) {
	// WebSocket event stream
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Error("ws upgrade failed", "err", err)
			return
		}
		lastTS := r.URL.Query().Get("last_ts")
		hub.HandleWSRequest(conn, lastTS)
	})

	// REST: place a bracket order
	mux.HandleFunc("/api/v1/bracketorder", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			SetCORS(w)
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, model.BracketOrderResponse{
				Status:  "error",
				Message: "Method not allowed",
			})
			return
		}

		var req model.BracketOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, model.BracketOrderResponse{
				Status:  "error",
				Message: decodeErrMessage(err),
			})
			return
		}
		req.ApplyDefaults()

		ctx := logger.WithTraceID(r.Context(), logger.GenerateTraceID(req.Symbol, time.Now()))
		resp, code := orders.Place(ctx, req)
		writeJSON(w, code, resp)
	})

	// REST: latest event per channel
	mux.HandleFunc("/api/v1/events/latest", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, hub.GetLatestAll())
	})

	// REST: recent order log records, newest first
	mux.HandleFunc("/api/v1/orders/log", func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if s := r.URL.Query().Get("limit"); s != "" {
			if l, err := strconv.Atoi(s); err == nil && l > 0 && l <= 500 {
				limit = l
			}
		}
		records, err := journal.Recent(limit)
		if err != nil {
			hub.logger.Error("order log read failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"status":  "error",
				"message": "Failed to read order log",
			})
			return
		}
		writeJSON(w, http.StatusOK, records)
	})

	// Health endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		redisOK := true
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			redisOK = false
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":     "ok",
			"redis":      redisOK,
			"ws_clients": hub.ClientCount(),
			"uptime_sec": int64(time.Since(processStart).Seconds()),
			"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
