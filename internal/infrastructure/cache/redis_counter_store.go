package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/autoflow/backend/internal/domain/quota"
	"github.com/redis/go-redis/v9"
)

// RedisCounterStore implements quota.CounterStore on Redis. This is
// the production store: increments are atomic server-side (INCRBY), so
// concurrent enforcement calls on the same key never lose an update,
// and key expiry handles period rollover without reset logic.
type RedisCounterStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisCounterStore creates a Redis-backed counter store
func NewRedisCounterStore(cfg RedisConfig) (*RedisCounterStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCounterStore{
		client:    client,
		keyPrefix: "usage:",
	}, nil
}

// NewRedisCounterStoreWithClient creates a store with an existing
// Redis client. Useful for testing or when sharing a client across
// components.
func NewRedisCounterStoreWithClient(client *redis.Client, keyPrefix string) *RedisCounterStore {
	if keyPrefix == "" {
		keyPrefix = "usage:"
	}
	return &RedisCounterStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Increment atomically adds amount to the counter and returns the new
// value
func (s *RedisCounterStore) Increment(ctx context.Context, key quota.CounterKey, amount int64) (int64, error) {
	value, err := s.client.IncrBy(ctx, s.keyPrefix+key.String(), amount).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}
	return value, nil
}

// Get returns the counter value, or (0, false, nil) when the key does
// not exist
func (s *RedisCounterStore) Get(ctx context.Context, key quota.CounterKey) (int64, bool, error) {
	value, err := s.client.Get(ctx, s.keyPrefix+key.String()).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read counter: %w", err)
	}
	return value, true, nil
}

// ExpireAt aligns the key's expiry to the given instant. Idempotent:
// re-setting the same instant is a no-op in effect.
func (s *RedisCounterStore) ExpireAt(ctx context.Context, key quota.CounterKey, at time.Time) error {
	if err := s.client.ExpireAt(ctx, s.keyPrefix+key.String(), at).Err(); err != nil {
		return fmt.Errorf("failed to set counter expiry: %w", err)
	}
	return nil
}

// AdjustGauge adds delta to a gauge key, clamping the result at zero.
// The clamp write after an underflow races with concurrent adjusters,
// but only toward zero, which is the clamp target anyway.
func (s *RedisCounterStore) AdjustGauge(ctx context.Context, key quota.CounterKey, delta int64) (int64, error) {
	fullKey := s.keyPrefix + key.String()
	value, err := s.client.IncrBy(ctx, fullKey, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to adjust gauge: %w", err)
	}
	if value < 0 {
		if err := s.client.Set(ctx, fullKey, 0, redis.KeepTTL).Err(); err != nil {
			return 0, fmt.Errorf("failed to clamp gauge: %w", err)
		}
		return 0, nil
	}
	return value, nil
}

// ScanPeriod lists every counter recorded under a period key using
// cursor-based SCAN, so it never blocks Redis the way KEYS would
func (s *RedisCounterStore) ScanPeriod(ctx context.Context, periodKey string) ([]quota.CounterEntry, error) {
	pattern := s.keyPrefix + "*:" + periodKey

	var entries []quota.CounterEntry
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan counters: %w", err)
		}

		for _, fullKey := range keys {
			counterKey, err := quota.ParseCounterKey(fullKey[len(s.keyPrefix):])
			if err != nil {
				continue // not one of ours
			}
			value, err := s.client.Get(ctx, fullKey).Int64()
			if err == redis.Nil {
				continue // expired between scan and read
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read scanned counter: %w", err)
			}
			entries = append(entries, quota.CounterEntry{
				Owner:    counterKey.Owner,
				Resource: counterKey.Resource,
				Value:    value,
			})
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return entries, nil
}

// Close closes the Redis client
func (s *RedisCounterStore) Close() error {
	return s.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (s *RedisCounterStore) GetClient() *redis.Client {
	return s.client
}

// Ensure RedisCounterStore implements CounterStore
var _ quota.CounterStore = (*RedisCounterStore)(nil)
