package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Server.Address(); got != "0.0.0.0:8080" {
		t.Errorf("address = %q", got)
	}
	if cfg.Store.Type != "sqlite" || cfg.Cache.Type != "memory" {
		t.Errorf("store/cache = %s/%s", cfg.Store.Type, cfg.Cache.Type)
	}
	if cfg.Engine.BlockSize != 256 || cfg.Engine.SvgServer != "local" {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Maintenance.Interval != 10*time.Minute {
		t.Errorf("maintenance interval = %v", cfg.Maintenance.Interval)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORE_TYPE", "postgres")
	t.Setenv("STORE_DB_USER", "skull")
	t.Setenv("STORE_DB_PASS", "secret")
	t.Setenv("STORE_DB_HOST", "db")
	t.Setenv("API_KEYS", "a,b")
	t.Setenv("ENGINE_CHARGE_TIME", "600")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := cfg.Store.PostgresDSN(), "postgres://skull:secret@db:5432/skulls?sslmode=disable"; got != want {
		t.Errorf("postgres dsn = %q, want %q", got, want)
	}
	if got, want := cfg.Store.DSN(), "skull:secret@tcp(db:5432)/skulls?parseTime=true"; got != want {
		t.Errorf("mysql dsn = %q, want %q", got, want)
	}
	if diff := cmp.Diff([]string{"a", "b"}, cfg.App.APIKeys); diff != "" {
		t.Errorf("api keys mismatch (-want +got):\n%s", diff)
	}
	if cfg.Engine.ChargeTime != 600 {
		t.Errorf("charge time = %d", cfg.Engine.ChargeTime)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"unknown store", map[string]string{"STORE_TYPE": "mongo"}, true},
		{"unknown cache", map[string]string{"CACHE_TYPE": "disk"}, true},
		{"production without keys", map[string]string{"APP_ENV": "production"}, true},
		{"production with keys", map[string]string{"APP_ENV": "production", "API_KEYS": "k"}, false},
		{"redis everything", map[string]string{"STORE_TYPE": "redis", "CACHE_TYPE": "redis"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
