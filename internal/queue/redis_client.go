package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const defaultStreamMaxLen = 10000

// RedisStreamClient appends messages to a Redis stream.
type RedisStreamClient struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamClient connects to addr and writes to stream.
func NewRedisStreamClient(addr, password, stream string) (*RedisStreamClient, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream = strings.TrimSpace(stream)
	if stream == "" {
		return nil, errors.New("queue stream required")
	}
	return &RedisStreamClient{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		stream: stream,
		maxLen: defaultStreamMaxLen,
	}, nil
}

// Send adds msg to the stream as a kind field plus the JSON payload.
func (r *RedisStreamClient) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode stream message: %w", err)
	}
	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{
			"kind":    msg.Kind,
			"payload": string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis xadd: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *RedisStreamClient) Close() error {
	return r.client.Close()
}

var _ Client = (*RedisStreamClient)(nil)
