package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by a shared Redis instance, for deployments
// that run more than one instance of the service behind a load balancer.
// Expiry is delegated to Redis key TTLs and the take is a single GETDEL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a challenge store on an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "fragmentui:challenge:",
	}
}

func (s *RedisStore) Put(ctx context.Context, namespace string, requestID string, payload []byte, ttl time.Duration) error {
	key, err := entryKey(namespace, requestID)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be greater than zero")
	}
	if err := s.client.Set(ctx, s.prefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("put challenge: %w", err)
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, namespace string, requestID string) ([]byte, error) {
	key, err := entryKey(namespace, requestID)
	if err != nil {
		return nil, err
	}
	payload, err := s.client.GetDel(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("take challenge: %w", err)
	}
	return payload, nil
}

var _ Store = (*RedisStore)(nil)
