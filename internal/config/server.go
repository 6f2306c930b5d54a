package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreDriverMemory   = "memory"
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

type ServerConfig struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// ShellAPIKey guards the player-facing API. Empty disables the check.
	ShellAPIKey string `env:"SHELL_API_KEY"`
	AdminAPIKey string `env:"ADMIN_API_KEY"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"gacha.db"`

	CatalogSeedPath string `env:"CATALOG_SEED_PATH"`
	MCPEnabled      bool   `env:"MCP_ENABLED" envDefault:"true"`
	TradeWebhookURL string `env:"TRADE_WEBHOOK_URL"`

	PlayerRatePerSec float64 `env:"PLAYER_RATE_PER_SEC" envDefault:"5"`
	PlayerRateBurst  int     `env:"PLAYER_RATE_BURST" envDefault:"10"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c ServerConfig) Validate() error {
	switch c.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for store driver %q", c.StoreDriver)
		}
	case StoreDriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for store driver %q", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}
