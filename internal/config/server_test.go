package config

import "testing"

func TestLoadServerDefaults(t *testing.T) {
	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.StoreDriver != StoreDriverSQLite {
		t.Fatalf("StoreDriver = %q, want sqlite", cfg.StoreDriver)
	}
	if !cfg.MCPEnabled {
		t.Fatal("MCPEnabled should default to true")
	}
}

func TestLoadServerPostgresRequiresDSN(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "")

	_, err := LoadServer()
	if err == nil {
		t.Fatal("LoadServer() expected error, got nil")
	}
}

func TestLoadServerRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "redis")

	if _, err := LoadServer(); err == nil {
		t.Fatal("LoadServer() expected error for unknown driver")
	}
}

func TestLoadServerParseTypes(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/gacha?sslmode=disable")
	t.Setenv("PLAYER_RATE_PER_SEC", "2.5")
	t.Setenv("PLAYER_RATE_BURST", "3")
	t.Setenv("MCP_ENABLED", "false")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.PlayerRatePerSec != 2.5 {
		t.Fatalf("PlayerRatePerSec = %v, want 2.5", cfg.PlayerRatePerSec)
	}
	if cfg.PlayerRateBurst != 3 {
		t.Fatalf("PlayerRateBurst = %d, want 3", cfg.PlayerRateBurst)
	}
	if cfg.MCPEnabled {
		t.Fatal("MCPEnabled = true, want false")
	}
}
