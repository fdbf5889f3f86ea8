package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trading-gatewayv1/config"
	"trading-gatewayv1/internal/apilog"
	"trading-gatewayv1/internal/auth"
	"trading-gatewayv1/internal/bracket"
	"trading-gatewayv1/internal/broker"
	"trading-gatewayv1/internal/broker/angel"
	"trading-gatewayv1/internal/broker/paper"
	"trading-gatewayv1/internal/events"
	"trading-gatewayv1/internal/gateway"
	"trading-gatewayv1/internal/logger"
	"trading-gatewayv1/internal/metrics"
	"trading-gatewayv1/internal/notification"

	goredis "github.com/go-redis/redis/v8"
)

var processStart = time.Now()

func main() {
	log := logger.Init("order_gateway", slog.LevelInfo)
	log.Info("starting...")

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Redis ----
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("redis connection failed", "addr", cfg.RedisAddr, "err", err)
		os.Exit(1)
	}
	log.Info("redis connected", "addr", cfg.RedisAddr)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()

	// ---- Order log journal ----
	journal, err := apilog.NewJournal(cfg.OrderLogPath, 1024)
	if err != nil {
		log.Error("order log open failed", "path", cfg.OrderLogPath, "err", err)
		os.Exit(1)
	}
	defer journal.Close()
	journal.OnDrop = func() { prom.JournalDropped.Inc() }

	// ---- Auth session store ----
	authStore, err := auth.NewStore(cfg.AuthDBPath)
	if err != nil {
		log.Error("auth store open failed", "path", cfg.AuthDBPath, "err", err)
		os.Exit(1)
	}
	defer authStore.Close()

	// ---- Broker registry ----
	registry := broker.NewRegistry()
	registry.Register(paper.New())

	var angelSession *angel.SessionManager
	if cfg.BrokerMode == "live" {
		registry.Register(angel.New(cfg.AngelAPIKey))
		angelSession = angel.NewSessionManager(angel.SessionConfig{
			APIKey:     cfg.AngelAPIKey,
			ClientCode: cfg.AngelClientCode,
			Password:   cfg.AngelPassword,
			TOTPSecret: cfg.AngelTOTPSecret,
		})
	}
	log.Info("brokers registered", "brokers", registry.Names(), "mode", cfg.BrokerMode)

	health := metrics.NewHealthStatus(registry.Names())
	metrics.StartServer(cfg.MetricsAddr, health)
	health.StartLivenessChecker(ctx, rdb, journal.DB(), 10*time.Second)

	// Seed the gateway API key so callers can authenticate. In live mode the
	// session manager refreshes the JWT on a timer; paper mode uses a static
	// token.
	if cfg.GatewayAPIKey != "" {
		seedBroker := "paper"
		if cfg.BrokerMode == "live" {
			seedBroker = angel.Name
		}
		seed := func(jwt string) error {
			return authStore.Seed(ctx, cfg.GatewayAPIKey, jwt, seedBroker)
		}
		if angelSession != nil {
			go angelSession.Run(ctx, cfg.SessionRefresh, seed)
		} else if err := seed("paper-session"); err != nil {
			log.Error("auth seed failed", "err", err)
			os.Exit(1)
		}
	}

	// ---- Event publisher ----
	publisher := events.NewPublisher(rdb, prom)

	// ---- Notifications ----
	var backends []notification.Notifier
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.AlertWebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.AlertWebhookURL))
	}
	var alerts notification.Notifier
	switch len(backends) {
	case 0:
		alerts = notification.NewLogNotifier()
	case 1:
		alerts = backends[0]
	default:
		alerts = notification.NewMultiNotifier(backends...)
	}

	// ---- Orchestrator ----
	orchestrator := bracket.NewOrchestrator(bracket.OrchestratorConfig{
		Auth:       authStore,
		Brokers:    registry,
		Journal:    journal,
		Events:     publisher,
		Alerts:     alerts,
		Logger:     log,
		Metrics:    prom,
		GraceDelay: cfg.OrderDelay,
	})
	defer orchestrator.Close()

	// ---- WebSocket hub ----
	hub := gateway.NewHub(rdb, log, prom)
	go hub.Run(ctx)

	// ---- HTTP server ----
	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub, rdb, orchestrator, journal, processStart)
	srv := &http.Server{Addr: cfg.GatewayAddr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("serving", "addr", cfg.GatewayAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
}
