package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "RESERVATION_BACKEND", "RESERVATION_HOLD_TTL", "CONSULTATION_FEE", "CURRENCY", "CORS_ALLOWED_ORIGINS", "REDIS_ADDR"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.ReservationHoldTTL != 10*time.Minute {
		t.Fatalf("expected default hold ttl, got %s", cfg.ReservationHoldTTL)
	}
	if cfg.ConsultationFee != 200000 || cfg.Currency != "VND" {
		t.Fatalf("expected default fee 200000 VND, got %d %s", cfg.ConsultationFee, cfg.Currency)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "http://localhost:3000" {
		t.Fatalf("expected default cors origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.UseRedisReservations() {
		t.Fatalf("expected memory reservations without redis address")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("RESERVATION_HOLD_TTL", "5m")
	t.Setenv("SLOT_HORIZON_DAYS", "14")
	t.Setenv("CONSULTATION_FEE", "350000")
	t.Setenv("CURRENCY", "vnd")
	t.Setenv("PAYMENT_PROCESSOR", " Stripe ")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.vn, ,https://b.example.vn")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.ReservationHoldTTL != 5*time.Minute {
		t.Fatalf("expected hold ttl override, got %s", cfg.ReservationHoldTTL)
	}
	if cfg.SlotHorizonDays != 14 {
		t.Fatalf("expected horizon override, got %d", cfg.SlotHorizonDays)
	}
	if cfg.ConsultationFee != 350000 || cfg.Currency != "VND" {
		t.Fatalf("expected fee override, got %d %s", cfg.ConsultationFee, cfg.Currency)
	}
	if cfg.PaymentProcessor != "stripe" {
		t.Fatalf("expected normalized processor, got %q", cfg.PaymentProcessor)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.vn" {
		t.Fatalf("expected two cors origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rate override, got %v", cfg.RateLimitRPS)
	}
	if !cfg.UseRedisReservations() {
		t.Fatalf("expected auto backend to pick redis")
	}
}

func TestReservationBackendOverride(t *testing.T) {
	cfg := &Config{ReservationBackend: "memory", RedisAddr: "redis:6379"}
	if cfg.UseRedisReservations() {
		t.Fatalf("expected explicit memory backend to win")
	}
	cfg = &Config{ReservationBackend: "redis"}
	if !cfg.UseRedisReservations() {
		t.Fatalf("expected explicit redis backend")
	}
}

func TestMockPaymentsEnabled(t *testing.T) {
	cases := []struct {
		env, processor string
		want           bool
	}{
		{"development", "payos", true},
		{"staging", "stripe", true},
		{"production", "mock", true},
		{"production", "", true},
		{"Production", "payos", false},
		{"production", "stripe", false},
	}
	for _, tc := range cases {
		cfg := &Config{Env: tc.env, PaymentProcessor: tc.processor}
		if got := cfg.MockPaymentsEnabled(); got != tc.want {
			t.Fatalf("env=%s processor=%s: expected %v, got %v", tc.env, tc.processor, tc.want, got)
		}
	}
}
