package repository

import (
	"context"
	"fmt"
	"time"

	"spacebook/internal/config"

	"github.com/redis/go-redis/v9"
)

// RedisEventStore remembers processed webhook event ids so duplicate
// deliveries are skipped before any booking state is touched. Entries
// expire after the ttl; by then the gateway has stopped redelivering.
type RedisEventStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisEventStore(client *redis.Client, ttl time.Duration) *RedisEventStore {
	return &RedisEventStore{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisEventStore) SeenEvent(ctx context.Context, eventID string) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	n, err := r.client.Exists(ctx, eventKey(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check event in redis: %w", err)
	}
	return n > 0, nil
}

func (r *RedisEventStore) MarkSeen(ctx context.Context, eventID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Set(ctx, eventKey(eventID), 1, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark event in redis: %w", err)
	}
	return nil
}

func eventKey(eventID string) string {
	return fmt.Sprintf("payment_event:%s", eventID)
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
