package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Reservations and sessions
	ReservationBackend       string
	ReservationHoldTTL       time.Duration
	ReservationSweepInterval time.Duration
	SessionTTL               time.Duration

	// Scheduling
	SlotHorizonDays int
	SlotMaxCount    int
	SlotDuration    time.Duration
	ClinicTimezone  string
	DirectoryLimit  int

	// Fees and payments
	ConsultationFee  int64
	Currency         string
	PaymentProcessor string
	PayOSClientID    string
	PayOSAPIKey      string
	PayOSChecksumKey string
	PayOSBaseURL     string
	StripeSecretKey  string
	StripeBaseURL    string
	PaymentTimeout   time.Duration
	PaymentLinkTTL   time.Duration

	// HTTP surface
	AdminJWTSecret     string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// Booked-event delivery
	BookingEventsQueueURL string
	AWSRegion             string
	AWSAccessKeyID        string
	AWSSecretAccessKey    string
	AWSEndpointOverride   string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first without overriding the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		ReservationBackend:       strings.ToLower(strings.TrimSpace(getEnv("RESERVATION_BACKEND", "auto"))),
		ReservationHoldTTL:       getEnvAsDuration("RESERVATION_HOLD_TTL", 10*time.Minute),
		ReservationSweepInterval: getEnvAsDuration("RESERVATION_SWEEP_INTERVAL", time.Minute),
		SessionTTL:               getEnvAsDuration("SESSION_TTL", 30*time.Minute),

		SlotHorizonDays: getEnvAsInt("SLOT_HORIZON_DAYS", 7),
		SlotMaxCount:    getEnvAsInt("SLOT_MAX_COUNT", 50),
		SlotDuration:    getEnvAsDuration("SLOT_DURATION", 30*time.Minute),
		ClinicTimezone:  getEnv("CLINIC_TIMEZONE", "Asia/Ho_Chi_Minh"),
		DirectoryLimit:  getEnvAsInt("DIRECTORY_LIMIT", 5),

		ConsultationFee:  int64(getEnvAsInt("CONSULTATION_FEE", 200000)),
		Currency:         strings.ToUpper(getEnv("CURRENCY", "VND")),
		PaymentProcessor: strings.ToLower(strings.TrimSpace(getEnv("PAYMENT_PROCESSOR", "payos"))),
		PayOSClientID:    getEnv("PAYOS_CLIENT_ID", ""),
		PayOSAPIKey:      getEnv("PAYOS_API_KEY", ""),
		PayOSChecksumKey: getEnv("PAYOS_CHECKSUM_KEY", ""),
		PayOSBaseURL:     getEnv("PAYOS_BASE_URL", ""),
		StripeSecretKey:  getEnv("STRIPE_SECRET_KEY", ""),
		StripeBaseURL:    getEnv("STRIPE_BASE_URL", ""),
		PaymentTimeout:   getEnvAsDuration("PAYMENT_TIMEOUT", 5*time.Second),
		PaymentLinkTTL:   getEnvAsDuration("PAYMENT_LINK_TTL", 15*time.Minute),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		BookingEventsQueueURL: getEnv("BOOKING_EVENTS_QUEUE_URL", ""),
		AWSRegion:             getEnv("AWS_REGION", "ap-southeast-1"),
		AWSAccessKeyID:        getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:   getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// UseRedisReservations reports whether holds live in Redis. "auto" picks
// Redis whenever an address is configured.
func (c *Config) UseRedisReservations() bool {
	switch c.ReservationBackend {
	case "redis":
		return true
	case "memory":
		return false
	default:
		return c.RedisAddr != ""
	}
}

// MockPaymentsEnabled reports whether the unauthenticated mock payment
// completion may be served: always outside production, and in production
// only when no real processor is configured.
func (c *Config) MockPaymentsEnabled() bool {
	if !strings.EqualFold(strings.TrimSpace(c.Env), "production") {
		return true
	}
	switch c.PaymentProcessor {
	case "", "mock", "none":
		return true
	default:
		return false
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blank entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
