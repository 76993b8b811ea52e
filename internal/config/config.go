package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	IdentityREST  = "rest"
	IdentityToken = "token"
)

type Config struct {
	APIURL         string
	WSURL          string
	Token          string
	IdentitySource string
	IdentityClaim  string
	ReconnectDelay time.Duration
	HTTPTimeout    time.Duration
	CacheDriver    string
	CacheDSN       string
	AMQPURL        string
	AMQPExchange   string
	OTLPEndpoint   string
	Port           string
	LocalToken     string
	Environment    string
	DebugRoutes    bool
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		APIURL:         getEnv("CHAT_API_URL", "http://localhost:8080"),
		WSURL:          getEnv("CHAT_WS_URL", "ws://localhost:8080/ws"),
		Token:          getEnv("CHAT_TOKEN", ""),
		IdentitySource: strings.ToLower(getEnv("CHAT_IDENTITY_SOURCE", IdentityREST)),
		IdentityClaim:  getEnv("CHAT_IDENTITY_CLAIM", "sub"),
		CacheDriver:    getEnv("CHAT_CACHE_DRIVER", ""),
		CacheDSN:       getEnv("CHAT_CACHE_DSN", "chat-cache.db"),
		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "chat.events"),
		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Port:           getEnv("PORT", "8090"),
		LocalToken:     getEnv("LOCAL_API_TOKEN", ""),
		Environment:    getEnv("ENVIRONMENT", "local"),
	}

	var err error
	if cfg.ReconnectDelay, err = getDuration("CHAT_RECONNECT_DELAY", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getDuration("CHAT_HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.DebugRoutes, err = getBool("DEBUG_ROUTES", false); err != nil {
		return nil, err
	}

	switch cfg.IdentitySource {
	case IdentityREST, IdentityToken:
	default:
		return nil, fmt.Errorf("CHAT_IDENTITY_SOURCE: unknown source %q", cfg.IdentitySource)
	}
	switch cfg.CacheDriver {
	case "", "sqlite3", "postgres":
	default:
		return nil, fmt.Errorf("CHAT_CACHE_DRIVER: unsupported driver %q", cfg.CacheDriver)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive", key)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
