package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists the current flow per user. Load returns IdleFlow for users
// without a stored flow.
type Store interface {
	Load(ctx context.Context, userID int64) (Flow, error)
	Save(ctx context.Context, userID int64, f Flow) error
	Clear(ctx context.Context, userID int64) error
}

// MemoryStore keeps flows in process memory. Flows are lost on restart.
type MemoryStore struct {
	mu    sync.Mutex
	flows map[int64]Flow
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flows: make(map[int64]Flow)}
}

func (s *MemoryStore) Load(_ context.Context, userID int64) (Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.flows[userID]; ok {
		return f, nil
	}
	return IdleFlow{}, nil
}

func (s *MemoryStore) Save(_ context.Context, userID int64, f Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if IsIdle(f) {
		delete(s.flows, userID)
		return nil
	}
	s.flows[userID] = f
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	delete(s.flows, userID)
	s.mu.Unlock()
	return nil
}

// Len returns the number of users with an active flow.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.flows)
}

// RedisStore keeps flows in Redis as JSON with a sliding TTL, so an
// in-progress booking survives a restart and abandoned flows expire.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps a connected client. ttl <= 0 disables expiry.
func NewRedisStore(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "flow"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

// ConnectRedis parses a redis:// URL, connects and pings.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (s *RedisStore) key(userID int64) string {
	return s.prefix + ":" + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) Load(ctx context.Context, userID int64) (Flow, error) {
	val, err := s.rdb.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return IdleFlow{}, nil
	}
	if err != nil {
		return nil, err
	}
	return Unmarshal(val)
}

func (s *RedisStore) Save(ctx context.Context, userID int64, f Flow) error {
	if IsIdle(f) {
		return s.Clear(ctx, userID)
	}
	data, err := Marshal(f)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(userID), data, s.ttl).Err()
}

func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	return s.rdb.Del(ctx, s.key(userID)).Err()
}
