package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server      ServerConfig
	App         AppConfig
	Store       StoreConfig
	Cache       CacheConfig
	Engine      EngineConfig
	Maintenance MaintenanceConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string      `envconfig:"SERVER_ALLOWED_ORIGINS" default:"*"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"skulls2"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	// APIKeys authenticate the gateway that submits messages for callers.
	APIKeys    []string      `envconfig:"API_KEYS"`
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"1h"`
}

// StoreConfig selects and locates the key-value backend.
type StoreConfig struct {
	Type string `envconfig:"STORE_TYPE" default:"sqlite"` // memory, sqlite, redis, mysql or postgres
	Path string `envconfig:"STORE_PATH" default:"./data/skulls.db"`

	Host     string `envconfig:"STORE_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"STORE_DB_PORT" default:"5432"`
	Name     string `envconfig:"STORE_DB_NAME" default:"skulls"`
	User     string `envconfig:"STORE_DB_USER" default:"postgres"`
	Password string `envconfig:"STORE_DB_PASS" default:""`
	SSLMode  string `envconfig:"STORE_DB_SSLMODE" default:"disable"`

	RedisAddr     string `envconfig:"STORE_REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"STORE_REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"STORE_REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"STORE_REDIS_PREFIX" default:""`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_PREFIX" default:""`
}

// EngineConfig holds the deployment parameters of the engine.
type EngineConfig struct {
	BlockSize        int    `envconfig:"ENGINE_BLOCK_SIZE" default:"256"`
	Admin            string `envconfig:"ENGINE_ADMIN" default:""`
	ChargeTime       uint64 `envconfig:"ENGINE_CHARGE_TIME" default:"86400"`
	RewindCooldown   uint64 `envconfig:"ENGINE_REWIND_COOLDOWN" default:"0"`
	CatalogPath      string `envconfig:"ENGINE_CATALOG" default:""`
	Entropy          string `envconfig:"ENGINE_ENTROPY" default:""`
	SvgServer        string `envconfig:"ENGINE_SVG_SERVER" default:"local"`
	SkullsCollection string `envconfig:"ENGINE_SKULLS_COLLECTION" default:""`
	// NFTServiceURL fronts the token collections. Empty uses an in-memory
	// collection, which is only useful for development.
	NFTServiceURL string        `envconfig:"NFT_SERVICE_URL" default:""`
	NFTTimeout    time.Duration `envconfig:"NFT_SERVICE_TIMEOUT" default:"10s"`
	StartHeight   uint64        `envconfig:"ENGINE_START_HEIGHT" default:"0"`
}

// MaintenanceConfig holds the housekeeping schedule.
type MaintenanceConfig struct {
	Interval time.Duration `envconfig:"MAINTENANCE_INTERVAL" default:"10m"`
	Timeout  time.Duration `envconfig:"MAINTENANCE_TIMEOUT" default:"1m"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresDSN returns the PostgreSQL connection string.
func (s *StoreConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, s.Port, s.Name, s.SSLMode)
}

// DSN returns the MySQL data source name.
func (s *StoreConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		s.User, s.Password, s.Host, s.Port, s.Name)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Validate rejects combinations the server cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "memory", "sqlite", "redis", "mysql", "postgres":
	default:
		return fmt.Errorf("unknown STORE_TYPE %q", c.Store.Type)
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown CACHE_TYPE %q", c.Cache.Type)
	}
	if c.Engine.BlockSize < 0 {
		return fmt.Errorf("ENGINE_BLOCK_SIZE must not be negative")
	}
	if c.App.IsProduction() && len(c.App.APIKeys) == 0 {
		return fmt.Errorf("API_KEYS is required in production")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
