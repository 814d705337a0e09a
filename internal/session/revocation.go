package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"rukun-service/pkg/config"
)

// RevocationStore records, per admin, the moment from which previously issued
// session tokens stop being honored. It is consulted on every session
// resolve, which bounds the staleness window of a deactivated principal to
// one request instead of the full token lifetime.
type RevocationStore interface {
	Revoke(ctx context.Context, adminID uint, at time.Time) error
	RevokedAfter(ctx context.Context, adminID uint) (time.Time, bool, error)
}

// NewStore returns a Redis-backed store when an address is configured and an
// in-memory one otherwise. Entries only need to outlive the token lifetime.
func NewStore(cfg *config.RedisConfig, ttl time.Duration) RevocationStore {
	if cfg == nil || cfg.Addr == "" {
		return NewMemoryStore()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStore(client, ttl)
}

// RedisStore keeps revocation marks in Redis with a TTL of the token
// lifetime: once every token issued before the mark has expired on its own,
// the mark is useless and may lapse.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(adminID uint) string {
	return fmt.Sprintf("session:revoked:%d", adminID)
}

func (s *RedisStore) Revoke(ctx context.Context, adminID uint, at time.Time) error {
	return s.client.Set(ctx, s.key(adminID), strconv.FormatInt(at.UnixNano(), 10), s.ttl).Err()
}

func (s *RedisStore) RevokedAfter(ctx context.Context, adminID uint) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, s.key(adminID)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	nanos, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(0, nanos), true, nil
}

// MemoryStore is the single-process fallback used when Redis is not
// configured, and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	revoked map[uint]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{revoked: make(map[uint]time.Time)}
}

func (s *MemoryStore) Revoke(_ context.Context, adminID uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.revoked[adminID]; !ok || at.After(existing) {
		s.revoked[adminID] = at
	}
	return nil
}

func (s *MemoryStore) RevokedAfter(_ context.Context, adminID uint) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.revoked[adminID]
	return at, ok, nil
}
