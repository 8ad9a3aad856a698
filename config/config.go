package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string // default: 8080

	// Stores
	LedgerBackend string // "redis", "postgres" or "memory"; default: redis
	UsageBackend  string // "postgres" or "redis"; default: postgres
	PostgresDSN   string
	RedisAddr     string

	// Providers
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	GoogleAPIKey     string
	ElevenLabsAPIKey string
	StabilityAPIKey  string
	SunoAPIKey       string
	UpstreamTimeout  time.Duration // default: 60s

	// Auth
	GatewaySecret        string
	RequireGatewaySecret bool
	AdminSecret          string

	// Pricing
	MarginMultiplier float64 // default: 1.8
	USDPerCredit     float64 // default: 0.01
	PricingFile      string

	// Usage log
	UsageQueueSize int // default: 1024
	UsageWorkers   int // default: 2

	// Observability
	LogLevel             string // default: info
	OTELExporterType     string // "stdout" or "otlp"
	OTELExporterEndpoint string // default: "localhost:4317"

	RunSeed bool
}

func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		LedgerBackend:        getEnv("LEDGER_BACKEND", "redis"),
		UsageBackend:         getEnv("USAGE_BACKEND", "postgres"),
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey:      os.Getenv("ANTHROPIC_API_KEY"),
		GoogleAPIKey:         os.Getenv("GOOGLE_API_KEY"),
		ElevenLabsAPIKey:     os.Getenv("ELEVENLABS_API_KEY"),
		StabilityAPIKey:      os.Getenv("STABILITY_API_KEY"),
		SunoAPIKey:           os.Getenv("SUNO_API_KEY"),
		GatewaySecret:        os.Getenv("GATEWAY_SECRET"),
		AdminSecret:          os.Getenv("ADMIN_SECRET"),
		PricingFile:          os.Getenv("PRICING_FILE"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		OTELExporterType:     getEnv("OTEL_EXPORTER_TYPE", "stdout"),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.RequireGatewaySecret, err = getBool("REQUIRE_GATEWAY_SECRET", false); err != nil {
		return nil, err
	}
	if cfg.RunSeed, err = getBool("RUN_SEED", false); err != nil {
		return nil, err
	}
	if cfg.MarginMultiplier, err = getFloat("MARGIN_MULTIPLIER", 1.8); err != nil {
		return nil, err
	}
	if cfg.USDPerCredit, err = getFloat("USD_PER_CREDIT", 0.01); err != nil {
		return nil, err
	}
	if cfg.UsageQueueSize, err = getInt("USAGE_QUEUE_SIZE", 1024); err != nil {
		return nil, err
	}
	if cfg.UsageWorkers, err = getInt("USAGE_WORKERS", 2); err != nil {
		return nil, err
	}
	timeout := getEnv("UPSTREAM_TIMEOUT", "60s")
	if cfg.UpstreamTimeout, err = time.ParseDuration(timeout); err != nil {
		return nil, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LedgerBackend {
	case "redis", "postgres", "memory":
	default:
		return fmt.Errorf("invalid LEDGER_BACKEND %q", c.LedgerBackend)
	}
	switch c.UsageBackend {
	case "redis", "postgres":
	default:
		return fmt.Errorf("invalid USAGE_BACKEND %q", c.UsageBackend)
	}

	if c.NeedsPostgres() && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required")
	}
	if c.NeedsRedis() && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.RequireGatewaySecret && c.GatewaySecret == "" {
		return fmt.Errorf("GATEWAY_SECRET is required when REQUIRE_GATEWAY_SECRET is set")
	}
	if c.MarginMultiplier <= 0 || c.USDPerCredit <= 0 {
		return fmt.Errorf("MARGIN_MULTIPLIER and USD_PER_CREDIT must be positive")
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) NeedsPostgres() bool {
	return c.LedgerBackend == "postgres" || c.UsageBackend == "postgres"
}

func (c *Config) NeedsRedis() bool {
	return c.LedgerBackend == "redis" || c.UsageBackend == "redis"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
