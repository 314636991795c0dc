package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Address() != "0.0.0.0:8080" {
		t.Fatalf("unexpected default address %q", cfg.Server.Address())
	}
	if cfg.Postgres.MaxConns != 10 || cfg.Postgres.MinConns != 2 {
		t.Fatalf("unexpected default pool sizing: max=%d min=%d", cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
	}
	if cfg.Postgres.MaxConnLifetime != time.Hour {
		t.Fatalf("unexpected default conn lifetime %v", cfg.Postgres.MaxConnLifetime)
	}
	if cfg.Sweep.Enabled {
		t.Fatalf("sweeper must be opt-in")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("POSTGRES_MAX_CONNS", "25")
	t.Setenv("POSTGRES_MAX_CONN_LIFETIME", "30m")
	t.Setenv("FILEBROKER_API_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Postgres.MaxConns != 25 {
		t.Fatalf("expected max conns 25, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Postgres.MaxConnLifetime != 30*time.Minute {
		t.Fatalf("expected conn lifetime 30m, got %v", cfg.Postgres.MaxConnLifetime)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
}
