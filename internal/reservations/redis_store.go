package reservations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Slot keys hold "<reservation id>|<expires at unix ms>"; an expiry of 0
// marks a confirmed hold. The scripts compare expiry against the caller's
// clock so Redis and the memory store agree on what "expired" means.
var (
	acquireScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local sep = string.find(cur, '|', 1, true)
  local exp = tonumber(string.sub(cur, sep + 1))
  if exp == 0 or exp > tonumber(ARGV[5]) then
    return string.sub(cur, 1, sep - 1)
  end
end
redis.call('SET', KEYS[1], ARGV[1] .. '|' .. ARGV[6], 'PX', ARGV[3])
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[4])
return ARGV[1]
`)

	confirmScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then return 0 end
local sep = string.find(cur, '|', 1, true)
if string.sub(cur, 1, sep - 1) ~= ARGV[1] then return 0 end
local exp = tonumber(string.sub(cur, sep + 1))
if exp ~= 0 and exp <= tonumber(ARGV[2]) then return 0 end
redis.call('SET', KEYS[1], ARGV[1] .. '|0')
redis.call('SET', KEYS[2], ARGV[3])
return 1
`)

	releaseScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local sep = string.find(cur, '|', 1, true)
  if string.sub(cur, 1, sep - 1) == ARGV[1] then
    if tonumber(string.sub(cur, sep + 1)) == 0 then return -1 end
    redis.call('DEL', KEYS[1])
  end
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

	reopenScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local sep = string.find(cur, '|', 1, true)
  if string.sub(cur, 1, sep - 1) == ARGV[1] and tonumber(string.sub(cur, sep + 1)) == 0 then
    local ttl = tonumber(ARGV[2]) - tonumber(ARGV[3])
    if ttl > 0 then
      redis.call('SET', KEYS[1], ARGV[1] .. '|' .. ARGV[2], 'PX', ttl)
    else
      redis.call('DEL', KEYS[1])
    end
  end
end
redis.call('SET', KEYS[2], ARGV[4], 'PX', ARGV[5])
return 1
`)
)

// RedisStore shares reservations across API replicas through Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store using client; keys are namespaced by prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if client == nil {
		panic("reservations: redis client cannot be nil")
	}
	if prefix == "" {
		prefix = "reservation"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) slotKey(key string) string { return s.prefix + ":slot:" + key }
func (s *RedisStore) idKey(id string) string    { return s.prefix + ":id:" + id }

func (s *RedisStore) Acquire(ctx context.Context, candidate Reservation, now time.Time) (Reservation, error) {
	payload, err := json.Marshal(candidate)
	if err != nil {
		return Reservation{}, fmt.Errorf("reservations: encode: %w", err)
	}
	ttl := candidate.ExpiresAt.Sub(now)
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	holderID, err := acquireScript.Run(ctx, s.client,
		[]string{s.slotKey(candidate.SlotKey), s.idKey(candidate.ID)},
		candidate.ID,
		payload,
		ttl.Milliseconds(),
		(ttl + terminalRetention).Milliseconds(),
		now.UnixMilli(),
		candidate.ExpiresAt.UnixMilli(),
	).Text()
	if err != nil {
		return Reservation{}, fmt.Errorf("reservations: acquire: %w", err)
	}
	if holderID == candidate.ID {
		return candidate, nil
	}
	holder, err := s.Get(ctx, holderID)
	if errors.Is(err, ErrNotFound) {
		return Reservation{ID: holderID, SlotKey: candidate.SlotKey, Status: StatusHeld, ExpiresAt: now.Add(time.Second)}, nil
	}
	return holder, err
}

func (s *RedisStore) Get(ctx context.Context, id string) (Reservation, error) {
	data, err := s.client.Get(ctx, s.idKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Reservation{}, ErrNotFound
		}
		return Reservation{}, fmt.Errorf("reservations: load %s: %w", id, err)
	}
	var r Reservation
	if err := json.Unmarshal(data, &r); err != nil {
		return Reservation{}, fmt.Errorf("reservations: decode %s: %w", id, err)
	}
	return r, nil
}

func (s *RedisStore) Confirm(ctx context.Context, id string, now time.Time) (Reservation, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	switch r.Status {
	case StatusConfirmed:
		return r, nil
	case StatusReleased:
		return r, ErrReleased
	}
	if !r.Active(now) {
		r.Status = StatusExpired
		return r, ErrExpired
	}

	confirmed := r
	confirmedAt := now
	confirmed.Status = StatusConfirmed
	confirmed.ConfirmedAt = &confirmedAt
	payload, err := json.Marshal(confirmed)
	if err != nil {
		return Reservation{}, fmt.Errorf("reservations: encode: %w", err)
	}
	ok, err := confirmScript.Run(ctx, s.client,
		[]string{s.slotKey(r.SlotKey), s.idKey(r.ID)},
		r.ID, now.UnixMilli(), payload,
	).Int()
	if err != nil {
		return Reservation{}, fmt.Errorf("reservations: confirm: %w", err)
	}
	if ok == 1 {
		return confirmed, nil
	}

	// Lost the slot between the read and the script; report what happened.
	latest, err := s.Get(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	switch latest.Status {
	case StatusConfirmed:
		return latest, nil
	case StatusReleased:
		return latest, ErrReleased
	}
	latest.Status = StatusExpired
	return latest, ErrExpired
}

func (s *RedisStore) Release(ctx context.Context, id string, now time.Time) (Reservation, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	switch r.Status {
	case StatusReleased:
		return r, nil
	case StatusConfirmed:
		return r, ErrConfirmed
	}
	if !r.Active(now) {
		r.Status = StatusExpired
		return r, nil
	}

	released := r
	releasedAt := now
	released.Status = StatusReleased
	released.ReleasedAt = &releasedAt
	payload, err := json.Marshal(released)
	if err != nil {
		return Reservation{}, fmt.Errorf("reservations: encode: %w", err)
	}
	res, err := releaseScript.Run(ctx, s.client,
		[]string{s.slotKey(r.SlotKey), s.idKey(r.ID)},
		r.ID, payload, terminalRetention.Milliseconds(),
	).Int()
	if err != nil {
		return Reservation{}, fmt.Errorf("reservations: release: %w", err)
	}
	if res == -1 {
		confirmed, err := s.Get(ctx, id)
		if err != nil {
			return Reservation{}, err
		}
		return confirmed, ErrConfirmed
	}
	return released, nil
}

func (s *RedisStore) Reopen(ctx context.Context, id string, now time.Time) (Reservation, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if r.Status != StatusConfirmed {
		return r, nil
	}

	reopened := r
	reopened.Status = StatusHeld
	reopened.ConfirmedAt = nil
	ttl := r.ExpiresAt.Sub(now)
	if ttl <= 0 {
		reopened.Status = StatusExpired
		ttl = 0
	}
	payload, err := json.Marshal(reopened)
	if err != nil {
		return Reservation{}, fmt.Errorf("reservations: encode: %w", err)
	}
	if err := reopenScript.Run(ctx, s.client,
		[]string{s.slotKey(r.SlotKey), s.idKey(r.ID)},
		r.ID, r.ExpiresAt.UnixMilli(), now.UnixMilli(), payload, (ttl + terminalRetention).Milliseconds(),
	).Err(); err != nil {
		return Reservation{}, fmt.Errorf("reservations: reopen: %w", err)
	}
	return reopened, nil
}

func (s *RedisStore) Holders(ctx context.Context, slotKeys []string, now time.Time) (map[string]Reservation, error) {
	out := make(map[string]Reservation)
	if len(slotKeys) == 0 {
		return out, nil
	}
	keys := make([]string, len(slotKeys))
	for i, k := range slotKeys {
		keys[i] = s.slotKey(k)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("reservations: holders: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		id, expMs, ok := parseSlotValue(raw)
		if !ok {
			continue
		}
		if expMs != 0 && expMs <= now.UnixMilli() {
			continue
		}
		holder, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out[slotKeys[i]] = holder
	}
	return out, nil
}

// Sweep is a no-op: Redis expires slot keys through their PX TTL.
func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func parseSlotValue(raw string) (string, int64, bool) {
	id, exp, found := strings.Cut(raw, "|")
	if !found || id == "" {
		return "", 0, false
	}
	expMs, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return id, expMs, true
}
