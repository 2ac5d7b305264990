package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores each group as one Redis hash, so invalidating a group
// is a single DEL.
type RedisCache struct {
	client *redis.Client
	config Config
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Config holds common cache configuration
	Config Config
}

// DefaultRedisConfig returns a default Redis configuration
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		Config: DefaultConfig(),
	}
}

// NewRedisCacheWithConfig connects to Redis and pings it
func NewRedisCacheWithConfig(config RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisCache{
		client: client,
		config: config.Config,
	}, nil
}

// NewRedisCacheWithClient creates a Redis cache with an existing client
func NewRedisCacheWithClient(client *redis.Client, config Config) *RedisCache {
	return &RedisCache{
		client: client,
		config: config,
	}
}

func (r *RedisCache) groupKey(group string) string {
	return r.config.Prefix + group
}

// Get retrieves a value from the cache
func (r *RedisCache) Get(ctx context.Context, group, key string) ([]byte, error) {
	value, err := r.client.HGet(ctx, r.groupKey(group), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss{Group: group, Key: key}
		}
		return nil, err
	}
	return value, nil
}

// Set stores a value in the cache
func (r *RedisCache) Set(ctx context.Context, group, key string, value []byte) error {
	return r.client.HSet(ctx, r.groupKey(group), key, value).Err()
}

// Delete removes a value from the cache
func (r *RedisCache) Delete(ctx context.Context, group, key string) error {
	return r.client.HDel(ctx, r.groupKey(group), key).Err()
}

// ClearGroup removes every entry of a group
func (r *RedisCache) ClearGroup(ctx context.Context, group string) error {
	return r.client.Del(ctx, r.groupKey(group)).Err()
}

// Clear removes all groups under the configured prefix
func (r *RedisCache) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.config.Prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}
