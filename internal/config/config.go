package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig aggregates runtime configuration, injected through environment
// variables to avoid hardcoding deploy details.
type AppConfig struct {
	HTTPAddr string
	DBPath   string

	RedisAddr string
	RedisDB   int

	// Kafka cluster (comma separated brokers), topic and consumer group
	// for order lifecycle events.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox (API appends atomically, relay forwards to Kafka).
	OrderEventStream   string
	OrderEventGroup    string
	OrderEventConsumer string

	// Order creation rate limit and ledger cache policy.
	CreateRateLimit  int
	CreateRateWindow time.Duration
	StockCacheTTL    time.Duration

	// Fallback acting-user identity for transitions without one.
	DefaultActingUser string

	// Simple admin token guarding the stock preload endpoint.
	PreloadAdminToken string
}

// Load reads and validates configuration, falling back to defaults.
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DBPath:             getEnv("DB_PATH", "order_admin.db"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:            0,
		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "order-events"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "order-notification-consumer"),
		OrderEventStream:   getEnv("ORDER_EVENT_STREAM", "order_admin:order_events"),
		OrderEventGroup:    getEnv("ORDER_EVENT_GROUP", "order-admin-relay-group"),
		OrderEventConsumer: getEnv("ORDER_EVENT_CONSUMER", "order-admin-relay-1"),
		CreateRateLimit:    100,
		CreateRateWindow:   time.Second,
		StockCacheTTL:      24 * time.Hour,
		DefaultActingUser:  getEnv("DEFAULT_ACTING_USER", "backoffice"),
		PreloadAdminToken:  getEnv("PRELOAD_ADMIN_TOKEN", "dev-admin-token"),
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	rateLimit, err := getEnvInt("CREATE_RATE_LIMIT", cfg.CreateRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid CREATE_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("CREATE_RATE_LIMIT must be > 0")
	}
	cfg.CreateRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("CREATE_RATE_WINDOW_SEC", int(cfg.CreateRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid CREATE_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("CREATE_RATE_WINDOW_SEC must be > 0")
	}
	cfg.CreateRateWindow = time.Duration(rateWindowSec) * time.Second

	stockTTLHour, err := getEnvInt("STOCK_CACHE_TTL_HOUR", int(cfg.StockCacheTTL.Hours()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid STOCK_CACHE_TTL_HOUR: %w", err)
	}
	if stockTTLHour <= 0 {
		return AppConfig{}, fmt.Errorf("STOCK_CACHE_TTL_HOUR must be > 0")
	}
	cfg.StockCacheTTL = time.Duration(stockTTLHour) * time.Hour

	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.KafkaGroupID == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
	}
	if cfg.OrderEventStream == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_STREAM must not be empty")
	}
	if cfg.OrderEventGroup == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_GROUP must not be empty")
	}
	if cfg.OrderEventConsumer == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_CONSUMER must not be empty")
	}
	if cfg.DefaultActingUser == "" {
		return AppConfig{}, fmt.Errorf("DEFAULT_ACTING_USER must not be empty")
	}

	return cfg, nil
}

// getEnv reads a string env var, returning the fallback when unset.
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt reads an integer env var, returning the fallback when unset.
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// splitCSV parses a comma separated string into a slice.
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
