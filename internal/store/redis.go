package store

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// applyBatchScript runs a whole batch inside one script call, which Redis
// executes atomically. ARGV holds (op, value) pairs aligned with KEYS.
var applyBatchScript = redis.NewScript(`
	for i = 1, #KEYS do
		if ARGV[2 * i - 1] == "d" then
			redis.call("DEL", KEYS[i])
		else
			redis.call("SET", KEYS[i], ARGV[2 * i])
		end
	end
	return #KEYS
`)

// RedisConfig holds configuration for the Redis backend.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisBackend implements Backend on Redis string keys.
// Stored keys are hex encoded under a hash-tagged namespace so that a batch
// always lands in one cluster slot.
type RedisBackend struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisBackend connects to Redis.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "{skulls2}:kv:"
	}

	log.Printf("[RedisStore] Connected - DB:%d, prefix:%s", cfg.DB, keyPrefix)
	return NewRedisBackendWithClient(client, keyPrefix), nil
}

// NewRedisBackendWithClient wraps an existing client.
func NewRedisBackendWithClient(client *redis.Client, keyPrefix string) *RedisBackend {
	return &RedisBackend{client: client, keyPrefix: keyPrefix}
}

func (r *RedisBackend) redisKey(key []byte) string {
	return r.keyPrefix + hex.EncodeToString(key)
}

// Get retrieves a value by key.
func (r *RedisBackend) Get(ctx context.Context, key []byte) ([]byte, error) {
	v, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	return v, nil
}

// Scan returns the pairs under prefix sorted by key.
func (r *RedisBackend) Scan(ctx context.Context, prefix []byte) ([]KV, error) {
	match := r.redisKey(prefix) + "*"
	var keys []string
	iter := r.client.Scan(ctx, 0, match, 500).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan prefix: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read scanned keys: %w", err)
	}

	out := make([]KV, 0, len(keys))
	for i, k := range keys {
		s, ok := values[i].(string)
		if !ok {
			// deleted between SCAN and MGET
			continue
		}
		raw, err := hex.DecodeString(strings.TrimPrefix(k, r.keyPrefix))
		if err != nil {
			return nil, fmt.Errorf("foreign key in namespace: %w", err)
		}
		out = append(out, KV{Key: raw, Value: []byte(s)})
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Key, out[j].Key) < 0 })
	return out, nil
}

// Apply commits the batch atomically through a Lua script.
func (r *RedisBackend) Apply(ctx context.Context, writes []Write) error {
	if len(writes) == 0 {
		return nil
	}

	keys := make([]string, len(writes))
	args := make([]interface{}, 0, 2*len(writes))
	for i, w := range writes {
		keys[i] = r.redisKey(w.Key)
		if w.Delete {
			args = append(args, "d", "")
		} else {
			args = append(args, "s", w.Value)
		}
	}

	if err := applyBatchScript.Run(ctx, r.client, keys, args...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to apply batch: %w", err)
	}
	return nil
}

// Stats reports key count under the namespace.
func (r *RedisBackend) Stats(ctx context.Context) (map[string]interface{}, error) {
	var count int64
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"backend":    "redis",
		"total_keys": count,
		"prefix":     r.keyPrefix,
	}, nil
}

// Close closes the Redis client.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

var _ Backend = (*RedisBackend)(nil)
