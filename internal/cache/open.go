package cache

import (
	"fmt"
	"log"

	"github.com/baedrik/skulls2/internal/config"
)

// Open creates the cache named by cfg.Type.
func Open(cfg *config.CacheConfig) (Cache, error) {
	switch cfg.Type {
	case "memory":
		log.Printf("[MemoryCache] Using in-process cache")
		return NewMemoryCache(), nil
	case "redis":
		c, err := NewRedisCache(RedisConfig{
			Addr:      cfg.RedisAddress(),
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}
