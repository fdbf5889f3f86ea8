package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// HTTP
	GatewayAddr string
	MetricsAddr string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	OrderLogPath  string
	AuthDBPath    string

	// Broker selection: "live" uses Angel One, "paper" uses the simulated broker.
	BrokerMode string

	// Angel One credentials (required in live mode)
	AngelAPIKey     string
	AngelClientCode string
	AngelPassword   string
	AngelTOTPSecret string

	// Gateway API key seeded into the auth store at startup
	GatewayAPIKey string

	// Delay between entry placement and GTT OCO placement
	OrderDelay time.Duration

	// Angel One session refresh interval
	SessionRefresh time.Duration

	// Notifications
	TelegramBotToken string
	TelegramChatID   string
	AlertWebhookURL  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	cfg := &Config{
		GatewayAddr: getEnv("GATEWAY_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		OrderLogPath:  getEnv("ORDER_LOG_PATH", "data/orders.db"),
		AuthDBPath:    getEnv("AUTH_DB_PATH", "data/auth.db"),

		BrokerMode: getEnv("BROKER_MODE", "live"),

		GatewayAPIKey: getEnv("GATEWAY_API_KEY", ""),

		OrderDelay:     time.Duration(getEnvInt("BRACKET_ORDER_DELAY_MS", 500)) * time.Millisecond,
		SessionRefresh: time.Duration(getEnvInt("SESSION_REFRESH_MIN", 360)) * time.Minute,

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		AlertWebhookURL:  getEnv("ALERT_WEBHOOK_URL", ""),
	}

	if cfg.BrokerMode == "live" {
		cfg.AngelAPIKey = mustEnv("ANGEL_API_KEY")
		cfg.AngelClientCode = mustEnv("ANGEL_CLIENT_CODE")
		cfg.AngelPassword = mustEnv("ANGEL_PASSWORD")
		cfg.AngelTOTPSecret = mustEnv("ANGEL_TOTP_SECRET")
	}

	return cfg
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] ignoring invalid value for %s: %q", key, v)
		return fallback
	}
	return n
}
