// Package metrics exposes Prometheus metrics and a liveness-checked health
// endpoint for the order gateway.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bracket order gateway.
type Metrics struct {
	BracketOrdersTotal *prometheus.CounterVec // labels: result (success, validation_error, auth_error, broker_not_found, entry_failed, error)
	EntryPlaceDur      prometheus.Histogram
	OCOPlaceDur        prometheus.Histogram
	OCOOutcomes        *prometheus.CounterVec // labels: outcome (completed, partial_failure, unsupported, error)

	EventsPublished prometheus.Counter
	EventsDropped   prometheus.Counter
	JournalDropped  prometheus.Counter
	AlertsSent      prometheus.Counter
	AlertsFailed    prometheus.Counter

	WSClients prometheus.Gauge

	// Event-publish circuit breaker
	EventBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	EventBreakerTrips prometheus.Counter
}

// NewMetrics registers and returns all gateway metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		BracketOrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_bracket_orders_total",
			Help: "Bracket order requests by synchronous result",
		}, []string{"result"}),
		EntryPlaceDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_entry_place_duration_seconds",
			Help:    "Broker entry order placement latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		OCOPlaceDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_oco_place_duration_seconds",
			Help:    "Broker GTT OCO placement latency (grace delay excluded)",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		OCOOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_oco_outcomes_total",
			Help: "Terminal outcomes of the asynchronous OCO stage",
		}, []string{"outcome"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_events_published_total",
			Help: "Bracket order events published to Redis",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_events_dropped_total",
			Help: "Bracket order events dropped (publish failure or open breaker)",
		}),
		JournalDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_journal_dropped_total",
			Help: "Order log records dropped because the journal queue was full",
		}),
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_alerts_sent_total",
			Help: "Order alerts delivered to the notification channel",
		}),
		AlertsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_alerts_failed_total",
			Help: "Order alert deliveries that failed",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_ws_clients",
			Help: "Currently connected WebSocket event-stream clients",
		}),
		EventBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_event_breaker_state",
			Help: "Event publisher circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		EventBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_event_breaker_trips_total",
			Help: "Times the event publisher circuit breaker tripped open",
		}),
	}

	prometheus.MustRegister(
		m.BracketOrdersTotal,
		m.EntryPlaceDur,
		m.OCOPlaceDur,
		m.OCOOutcomes,
		m.EventsPublished,
		m.EventsDropped,
		m.JournalDropped,
		m.AlertsSent,
		m.AlertsFailed,
		m.WSClients,
		m.EventBreakerState,
		m.EventBreakerTrips,
	)

	return m
}

// StartServer serves /metrics and /healthz on addr in a background goroutine.
func StartServer(addr string, health *HealthStatus) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if health != nil {
		mux.Handle("/healthz", health)
	}
	go func() {
		log.Printf("[metrics] serving on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// HealthStatus represents gateway health for the /healthz probe.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool `json:"redis_connected"`
	SQLiteOK       bool `json:"sqlite_ok"`
	Brokers        []string

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus(brokers []string) *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
		Brokers:   brokers,
	}
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the order-log database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx is cancelled.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	status := struct {
		Status          string    `json:"status"`
		RedisConnected  bool      `json:"redis_connected"`
		SQLiteOK        bool      `json:"sqlite_ok"`
		Brokers         []string  `json:"brokers"`
		RedisLatencyMs  float64   `json:"redis_latency_ms"`
		SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
		LastCheckAt     time.Time `json:"last_check_at"`
		UptimeSec       int64     `json:"uptime_sec"`
	}{
		Status:          overallStatus,
		RedisConnected:  h.RedisConnected,
		SQLiteOK:        h.SQLiteOK,
		Brokers:         h.Brokers,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt,
		UptimeSec:       int64(time.Since(h.StartedAt).Seconds()),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	json.NewEncoder(w).Encode(status)
}
