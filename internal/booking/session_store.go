package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSessionTTL bounds how long an idle booking session is remembered.
const DefaultSessionTTL = 30 * time.Minute

// SessionStore persists workflow snapshots by session id.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (Snapshot, bool, error)
	Save(ctx context.Context, snap Snapshot) error
}

type memorySession struct {
	snap      Snapshot
	expiresAt time.Time
}

// MemorySessionStore keeps snapshots in process.
type MemorySessionStore struct {
	mu    sync.Mutex
	items map[string]memorySession
	ttl   time.Duration
	now   func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemorySessionStore{
		items: make(map[string]memorySession),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *MemorySessionStore) Load(_ context.Context, sessionID string) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[sessionID]
	if !ok {
		return Snapshot{}, false, nil
	}
	if !s.now().Before(item.expiresAt) {
		delete(s.items, sessionID)
		return Snapshot{}, false, nil
	}
	return item.snap, true, nil
}

func (s *MemorySessionStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	snap.UpdatedAt = now.UTC()
	s.items[snap.SessionID] = memorySession{snap: snap, expiresAt: now.Add(s.ttl)}

	// Opportunistic eviction keeps abandoned sessions from accumulating.
	for id, item := range s.items {
		if !now.Before(item.expiresAt) {
			delete(s.items, id)
		}
	}
	return nil
}

// RedisSessionStore shares snapshots across API replicas.
type RedisSessionStore struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisSessionStore(client *redis.Client, prefix string, ttl time.Duration) *RedisSessionStore {
	if client == nil {
		panic("booking: redis client cannot be nil")
	}
	if prefix == "" {
		prefix = "booking_session"
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionStore{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
		tracer: otel.Tracer("hospital.internal.booking.sessions"),
	}
}

func (s *RedisSessionStore) key(sessionID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, sessionID)
}

func (s *RedisSessionStore) Load(ctx context.Context, sessionID string) (Snapshot, bool, error) {
	ctx, span := s.tracer.Start(ctx, "booking.load_session")
	defer span.End()

	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Snapshot{}, false, nil
		}
		span.RecordError(err)
		return Snapshot{}, false, fmt.Errorf("booking: failed to load session: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		span.RecordError(err)
		return Snapshot{}, false, fmt.Errorf("booking: failed to decode session: %w", err)
	}
	return snap, true, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, snap Snapshot) error {
	ctx, span := s.tracer.Start(ctx, "booking.save_session")
	defer span.End()

	snap.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(snap)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("booking: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(snap.SessionID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("booking: failed to persist session: %w", err)
	}
	return nil
}
