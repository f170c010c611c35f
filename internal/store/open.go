package store

import (
	"fmt"
	"log"

	"github.com/baedrik/skulls2/internal/config"
)

// Open connects the backend named by cfg.Type.
func Open(cfg *config.StoreConfig) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.Type {
	case "memory":
		b = NewMemoryBackend()
	case "sqlite":
		b, err = NewSQLiteBackend(cfg.Path)
	case "redis":
		b, err = NewRedisBackend(RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisPrefix,
		})
	case "mysql":
		b, err = NewMySQLBackend(cfg.DSN())
	case "postgres":
		b, err = NewPostgresBackend(cfg.PostgresDSN())
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Type, err)
	}
	log.Printf("[Store] Using %s backend", cfg.Type)
	return b, nil
}
