package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection settings of a RedisCache.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// setIfAbsentScript stores ARGV[1] for ARGV[2] milliseconds unless a value
// is already present, and returns whichever value wins.
var setIfAbsentScript = redis.NewScript(`
	local cur = redis.call("GET", KEYS[1])
	if cur then
		return cur
	end
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	return ARGV[1]
`)

// RedisCache is a Cache shared by every API instance. Redis expires the
// entries itself.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 2,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "skulls:cache"
	}
	log.Printf("[RedisCache] Connected - DB:%d, prefix:%s", cfg.DB, prefix)
	return &RedisCache{client: client, keyPrefix: prefix}, nil
}

func (r *RedisCache) key(k string) string {
	return r.keyPrefix + ":" + k
}

// Get retrieves a value by key.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return v, err
}

// Set stores a value with the given TTL.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(key), value, ttl).Err()
}

// Delete removes a value by key.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// GetOrSet retrieves a value or computes it. When two instances race, the
// first stored value is returned to both.
func (r *RedisCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	if v, err := r.Get(ctx, key); err == nil {
		return v, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		return nil, err
	}
	value, err := fn()
	if err != nil {
		return nil, err
	}
	out, err := setIfAbsentScript.Run(ctx, r.client, []string{r.key(key)}, value, ttl.Milliseconds()).Text()
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// Clear deletes every key under the cache prefix.
func (r *RedisCache) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.keyPrefix+":*", 500).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 500 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return r.client.Del(ctx, batch...).Err()
	}
	return nil
}

// Close releases the connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
