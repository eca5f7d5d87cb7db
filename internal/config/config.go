package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// PlatformConfig holds the ingest endpoint and credentials for one platform.
type PlatformConfig struct {
	URL    string
	APIKey string
}

// Config holds application configuration values.
type Config struct {
	HTTPAddr    string
	TerminalID  string
	OrdersTable string
	// DynamoEndpoint points the store at DynamoDB Local on offline-capable
	// terminals; empty means the default regional endpoint.
	DynamoEndpoint string
	SyncQueueURL   string // empty disables sync event publishing
	MetricsEnabled bool

	TickInterval    time.Duration
	Concurrency     int
	DispatchTimeout time.Duration

	Shopify     PlatformConfig
	WooCommerce PlatformConfig
	BigCommerce PlatformConfig
}

// Load reads environment variables and returns a populated Config.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		TerminalID:     getEnv("TERMINAL_ID", ""),
		OrdersTable:    getEnv("ORDERS_TABLE", "pos_orders"),
		DynamoEndpoint: getEnv("DYNAMODB_ENDPOINT", "http://localhost:8000"),
		SyncQueueURL:   getEnv("SYNC_EVENTS_QUEUE_URL", ""),
		MetricsEnabled: getEnv("METRICS_ENABLED", "false") == "true",

		TickInterval:    getEnvDuration("SYNC_TICK_SECONDS", 30) * time.Second,
		Concurrency:     getEnvInt("SYNC_CONCURRENCY", 3),
		DispatchTimeout: getEnvDuration("DISPATCH_TIMEOUT_SECONDS", 20) * time.Second,

		Shopify: PlatformConfig{
			URL:    getEnv("SHOPIFY_ORDERS_URL", ""),
			APIKey: getEnv("SHOPIFY_API_KEY", ""),
		},
		WooCommerce: PlatformConfig{
			URL:    getEnv("WOOCOMMERCE_ORDERS_URL", ""),
			APIKey: getEnv("WOOCOMMERCE_API_KEY", ""),
		},
		BigCommerce: PlatformConfig{
			URL:    getEnv("BIGCOMMERCE_ORDERS_URL", ""),
			APIKey: getEnv("BIGCOMMERCE_API_KEY", ""),
		},
	}

	if cfg.TerminalID == "" {
		log.Fatal("TERMINAL_ID must be set")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback))
}
