package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultStatePrefix = "critique:state:"

// RedisStateStore keeps dialog state as JSON values with a Redis TTL, so several bot
// replicas can share one conversation.
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStateStore connects to addr. Expiry is delegated to Redis.
func NewRedisStateStore(addr, password string, ttl time.Duration) (*RedisStateStore, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	return &RedisStateStore{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		ttl:    ttl,
		prefix: defaultStatePrefix,
	}, nil
}

func (s *RedisStateStore) key(user string) string {
	return s.prefix + user
}

func (s *RedisStateStore) Get(ctx context.Context, user string) (State, bool, error) {
	raw, err := s.client.Get(ctx, s.key(user)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("redis get state: %w", err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, false, fmt.Errorf("decode state: %w", err)
	}
	return st, true, nil
}

func (s *RedisStateStore) Put(ctx context.Context, user string, st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.client.Set(ctx, s.key(user), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Delete(ctx context.Context, user string) error {
	if err := s.client.Del(ctx, s.key(user)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis del state: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisStateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *RedisStateStore) Close() error {
	return s.client.Close()
}

var _ StateStore = (*RedisStateStore)(nil)
