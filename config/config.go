package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Payment gateway configuration
	GatewayBaseURL       string
	GatewayMerchantID    string
	GatewayClientID      string
	GatewayClientKey     string
	GatewayHMACKey       string
	GatewayWebhookSecret string
	Currency             string
	CheckoutSuccessURL   string
	CheckoutCancelURL    string

	// Gateway realtime settlement stream (deferred rail)
	GatewayPNSubKey    string
	GatewayPNSubSecret string
	GatewayPNUUID      string
	GatewayPNChannel   string

	// Notification service (PubNub)
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	NotifyChannel      string

	// Fee defaults, used when the platform_config collection is unreadable
	DefaultPlatformPct  decimal.Decimal
	DefaultGatewayPct   decimal.Decimal
	DefaultGatewayFixed decimal.Decimal

	// Ticket code verification
	TicketVerifySecret string

	// Timeout configuration
	CheckoutTimeout time.Duration
	ReferenceTTL    time.Duration

	// Payable reference regeneration limit
	ReferenceRateLimit  int
	ReferenceRateWindow time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	// Optional .env for local development; real env vars win when both are set.
	_ = godotenv.Load()

	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// Gateway
		GatewayBaseURL:       getEnv("GATEWAY_BASE_URL", "https://gateway.example.com"),
		GatewayMerchantID:    getEnv("GATEWAY_MERCHANT_ID", ""),
		GatewayClientID:      getEnv("GATEWAY_CLIENT_ID", ""),
		GatewayClientKey:     getEnv("GATEWAY_CLIENT_KEY", ""),
		GatewayHMACKey:       getEnv("GATEWAY_HMAC_KEY", ""),
		GatewayWebhookSecret: getEnv("GATEWAY_WEBHOOK_SECRET", ""),
		Currency:             getEnv("CURRENCY", "BRL"),
		CheckoutSuccessURL:   getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/checkout/success"),
		CheckoutCancelURL:    getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/checkout/cancel"),

		// Gateway settlement stream
		GatewayPNSubKey:    getEnv("GATEWAY_PN_SUB_KEY", ""),
		GatewayPNSubSecret: getEnv("GATEWAY_PN_SUB_SECRET", ""),
		GatewayPNUUID:      getEnv("GATEWAY_PN_UUID", ""),
		GatewayPNChannel:   getEnv("GATEWAY_PN_CHANNEL", ""),

		// Notifications
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		NotifyChannel:      getEnv("NOTIFY_CHANNEL", "ticket-notifications"),

		// Fee defaults
		DefaultPlatformPct:  getEnvAsDecimal("DEFAULT_PLATFORM_FEE_PCT", "5"),
		DefaultGatewayPct:   getEnvAsDecimal("DEFAULT_GATEWAY_FEE_PCT", "4.35"),
		DefaultGatewayFixed: getEnvAsDecimal("DEFAULT_GATEWAY_FIXED_FEE", "0.50"),

		TicketVerifySecret: getEnv("TICKET_VERIFY_SECRET", ""),

		// Timeouts
		CheckoutTimeout: getEnvAsDuration("CHECKOUT_TIMEOUT", "30s"),
		ReferenceTTL:    getEnvAsDuration("REFERENCE_TTL", "24h"),

		// Reference regeneration limit
		ReferenceRateLimit:  getEnvAsInt("REFERENCE_RATE_LIMIT", 5),
		ReferenceRateWindow: getEnvAsDuration("REFERENCE_RATE_WINDOW", "1h"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsDecimal(key string, defaultValue string) decimal.Decimal {
	valueStr := getEnv(key, defaultValue)
	if value, err := decimal.NewFromString(valueStr); err == nil {
		return value
	}
	value, _ := decimal.NewFromString(defaultValue)
	return value
}
