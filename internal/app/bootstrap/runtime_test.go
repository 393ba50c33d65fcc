package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/wolfman30/hospital-booking/internal/booking"
	appconfig "github.com/wolfman30/hospital-booking/internal/config"
	"github.com/wolfman30/hospital-booking/internal/events"
	"github.com/wolfman30/hospital-booking/internal/payments"
	"github.com/wolfman30/hospital-booking/internal/reservations"
	"github.com/wolfman30/hospital-booking/pkg/logging"
)

func TestBuildRedisClientDisabled(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, logging.Discard(), true); client != nil {
		t.Fatalf("expected nil client without address")
	}
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: mr.Addr()}

	client := BuildRedisClient(context.Background(), cfg, logging.Discard(), true)
	if client == nil {
		t.Fatalf("expected client for reachable redis")
	}
	_ = client.Close()

	mr.Close()
	if client := BuildRedisClient(context.Background(), cfg, logging.Discard(), true); client != nil {
		t.Fatalf("expected nil client when ping fails")
	}
}

func TestConnectPostgresSkipsWithoutURL(t *testing.T) {
	pool, err := ConnectPostgres(context.Background(), &appconfig.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool != nil {
		t.Fatalf("expected nil pool")
	}
	if OpenSQLDB(nil) != nil {
		t.Fatalf("expected nil sql db for nil pool")
	}
}

func TestBuildReservationStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: mr.Addr(), ReservationBackend: "auto"}
	client := BuildRedisClient(context.Background(), cfg, logging.Discard(), true)
	t.Cleanup(func() { _ = client.Close() })

	store, err := BuildReservationStore(cfg, client, logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*reservations.RedisStore); !ok {
		t.Fatalf("expected redis store, got %T", store)
	}

	store, err = BuildReservationStore(cfg, nil, logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*reservations.MemoryStore); !ok {
		t.Fatalf("expected memory fallback, got %T", store)
	}

	cfg.ReservationBackend = "redis"
	if _, err := BuildReservationStore(cfg, nil, logging.Discard()); err == nil {
		t.Fatalf("expected error when redis is forced but unavailable")
	}

	cfg.ReservationBackend = "memory"
	store, _ = BuildReservationStore(cfg, client, logging.Discard())
	if _, ok := store.(*reservations.MemoryStore); !ok {
		t.Fatalf("expected explicit memory store, got %T", store)
	}

	if _, err := BuildReservationStore(nil, nil, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestBuildSessionStore(t *testing.T) {
	if _, ok := BuildSessionStore(&appconfig.Config{SessionTTL: time.Minute}, nil).(*booking.MemorySessionStore); !ok {
		t.Fatalf("expected memory session store without redis")
	}
	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.Discard(), false)
	t.Cleanup(func() { _ = client.Close() })
	if _, ok := BuildSessionStore(nil, client).(*booking.RedisSessionStore); !ok {
		t.Fatalf("expected redis session store")
	}
}

func TestBuildCheckoutProvider(t *testing.T) {
	tests := []struct {
		processor string
		want      string
		wantErr   bool
	}{
		{processor: "payos", want: payments.ProviderPayOS},
		{processor: "stripe", want: payments.ProviderStripe},
		{processor: "mock", want: payments.ProviderMock},
		{processor: "", want: payments.ProviderMock},
		{processor: "none", want: payments.ProviderMock},
		{processor: "paypal", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.processor, func(t *testing.T) {
			cfg := &appconfig.Config{PaymentProcessor: tt.processor, PaymentTimeout: time.Second, PaymentLinkTTL: time.Minute}
			provider, err := BuildCheckoutProvider(cfg, logging.Discard())
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.processor)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if provider == nil || provider.Name() != tt.want {
				t.Fatalf("expected %s provider, got %v", tt.want, provider)
			}
		})
	}

	if _, err := BuildCheckoutProvider(nil, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestBuildEventPublisherWithoutDatabaseLogs(t *testing.T) {
	pub := BuildEventPublisher(context.Background(), nil, nil, "", logging.Discard())
	if _, ok := pub.(*events.LogPublisher); !ok {
		t.Fatalf("expected log publisher, got %T", pub)
	}
}
