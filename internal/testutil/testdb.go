package testutil

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"card-gacha/internal/config"
	"card-gacha/internal/economy"
	"card-gacha/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var testSchemaNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// OpenTestStore opens a Postgres store in a throwaway schema with migrations
// applied. The test is skipped when TEST_POSTGRES_DSN is unset.
func OpenTestStore(t *testing.T) (*store.Store, func()) {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil {
		t.Skipf("skip test db: %v", err)
	}
	dsn := cfg.TestPostgresDSN
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	base, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open base db: %v", err)
	}
	createSchemaSQL, err := schemaDDL("CREATE SCHEMA %s", schema)
	if err != nil {
		base.Close()
		t.Fatalf("invalid schema name: %v", err)
	}
	if _, err := base.Exec(context.Background(), createSchemaSQL); err != nil {
		base.Close()
		t.Fatalf("create schema: %v", err)
	}
	base.Close()

	dsnWithSchema := withSearchPath(dsn, schema)
	if err := store.MigratePostgres(dsnWithSchema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	st, err := store.New(dsnWithSchema)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	cleanup := func() {
		st.Close()
		base, err := pgxpool.New(context.Background(), dsn)
		if err == nil {
			if dropSchemaSQL, ddlErr := schemaDDL("DROP SCHEMA %s CASCADE", schema); ddlErr == nil {
				_, _ = base.Exec(context.Background(), dropSchemaSQL)
			}
			base.Close()
		}
	}
	return st, cleanup
}

// SampleCatalog returns the two-card catalog used across package tests.
func SampleCatalog() []economy.Card {
	return []economy.Card{
		{Name: "Hero", Rank: economy.RankA, Value: 150, Description: "The first card.", Images: []string{"https://cdn.example/hero.png"}},
		{Name: "Villain", Rank: economy.RankB, Value: 120, Description: "The second card.", Images: []string{"https://cdn.example/villain.png"}},
	}
}

// SampleSnapshot builds a snapshot holding SampleCatalog.
func SampleSnapshot(t *testing.T) *economy.Snapshot {
	t.Helper()
	snap := economy.NewSnapshot()
	for _, c := range SampleCatalog() {
		if _, err := snap.AddCard(c); err != nil {
			t.Fatalf("add card %s: %v", c.Name, err)
		}
	}
	return snap
}

func withSearchPath(dsn, schema string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "search_path=" + url.QueryEscape(schema)
}

func schemaDDL(format, schema string) (string, error) {
	if !testSchemaNamePattern.MatchString(schema) {
		return "", fmt.Errorf("schema %q does not match required pattern", schema)
	}
	return fmt.Sprintf(format, pgx.Identifier{schema}.Sanitize()), nil
}
