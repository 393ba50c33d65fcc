package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/hospital-booking/internal/booking"
	appconfig "github.com/wolfman30/hospital-booking/internal/config"
	"github.com/wolfman30/hospital-booking/internal/reservations"
	"github.com/wolfman30/hospital-booking/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// ConnectPostgres opens and pings a pool. It returns nil without error when
// no database is configured.
func ConnectPostgres(ctx context.Context, cfg *appconfig.Config) (*pgxpool.Pool, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return pool, nil
}

// OpenSQLDB exposes the pool through database/sql for the audit trail.
func OpenSQLDB(pool *pgxpool.Pool) *sql.DB {
	if pool == nil {
		return nil
	}
	return stdlib.OpenDBFromPool(pool)
}

// BuildReservationStore picks the hold store. Redis is required when the
// backend is forced to redis; auto falls back to memory when the client is nil.
func BuildReservationStore(cfg *appconfig.Config, client *redis.Client, logger *logging.Logger) (reservations.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.UseRedisReservations() {
		if client != nil {
			logger.Info("reservations stored in redis")
			return reservations.NewRedisStore(client, ""), nil
		}
		if cfg.ReservationBackend == "redis" {
			return nil, fmt.Errorf("bootstrap: redis reservation backend requested but redis is unavailable")
		}
	}
	logger.Warn("reservations stored in memory; holds are lost on restart and not shared across instances")
	return reservations.NewMemoryStore(), nil
}

// BuildSessionStore keeps workflow state next to the holds when Redis is up.
func BuildSessionStore(cfg *appconfig.Config, client *redis.Client) booking.SessionStore {
	ttl := booking.DefaultSessionTTL
	if cfg != nil && cfg.SessionTTL > 0 {
		ttl = cfg.SessionTTL
	}
	if client != nil {
		return booking.NewRedisSessionStore(client, "", ttl)
	}
	return booking.NewMemorySessionStore(ttl)
}
