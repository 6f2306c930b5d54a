package store

import (
	"context"
	"errors"
	"fmt"

	"card-gacha/internal/config"
	"card-gacha/internal/economy"
)

var ErrClosed = errors.New("store_closed")

// Backend persists complete tenant snapshots. Load of an unknown tenant
// returns an empty snapshot. Save replaces the tenant's three collections
// (cards, ownership, players) in one unit so readers never see a torn state.
type Backend interface {
	Load(ctx context.Context, tenantID string) (*economy.Snapshot, error)
	Save(ctx context.Context, tenantID string, snap *economy.Snapshot) error
	Ping(ctx context.Context) error
	Close()
}

// Open builds the configured backend and applies pending migrations.
func Open(ctx context.Context, cfg config.ServerConfig) (Backend, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		return NewMemory(), nil
	case config.StoreDriverSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	case config.StoreDriverPostgres:
		if err := MigratePostgres(cfg.PostgresDSN); err != nil {
			return nil, err
		}
		st, err := New(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := st.Ping(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
