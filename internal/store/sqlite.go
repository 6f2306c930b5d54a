package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"card-gacha/internal/economy"

	_ "modernc.org/sqlite"
)

// SQLite is the embedded single-file snapshot backend.
type SQLite struct {
	DB   *sql.DB
	path string
}

func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if err := MigrateSQLite(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer at a time; the tenant registry already serializes per tenant.
	db.SetMaxOpenConns(1)
	s := &SQLite{DB: db, path: path}
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() {
	_ = s.DB.Close()
}

func (s *SQLite) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.DB.PingContext(ctx)
}

func (s *SQLite) Load(ctx context.Context, tenantID string) (*economy.Snapshot, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var rows snapshotRows
	cardRows, err := tx.QueryContext(ctx, `
SELECT position, name, name_key, rank, value, description, images, claimed_by
FROM cards WHERE tenant_id = ? ORDER BY position`, tenantID)
	if err != nil {
		return nil, err
	}
	for cardRows.Next() {
		var r cardRow
		if err := cardRows.Scan(&r.Position, &r.Name, &r.NameKey, &r.Rank, &r.Value, &r.Description, &r.Images, &r.ClaimedBy); err != nil {
			cardRows.Close()
			return nil, err
		}
		rows.cards = append(rows.cards, r)
	}
	if err := closeRows(cardRows); err != nil {
		return nil, err
	}

	ownRows, err := tx.QueryContext(ctx, `
SELECT player_id, position, card_name
FROM ownership WHERE tenant_id = ? ORDER BY player_id, position`, tenantID)
	if err != nil {
		return nil, err
	}
	for ownRows.Next() {
		var r ownershipRow
		if err := ownRows.Scan(&r.PlayerID, &r.Position, &r.CardName); err != nil {
			ownRows.Close()
			return nil, err
		}
		rows.ownership = append(rows.ownership, r)
	}
	if err := closeRows(ownRows); err != nil {
		return nil, err
	}

	playerRows, err := tx.QueryContext(ctx, `
SELECT player_id, coins, luck, luck_purchases,
       rolls_remaining, rolls_period_start,
       claims_remaining, claims_period_start,
       gems_remaining, gems_period_start,
       wishlist, created_at
FROM players WHERE tenant_id = ? ORDER BY player_id`, tenantID)
	if err != nil {
		return nil, err
	}
	for playerRows.Next() {
		var (
			r                               playerRow
			rollsAt, claimsAt, gemsAt, made string
		)
		if err := playerRows.Scan(&r.PlayerID, &r.Coins, &r.Luck, &r.LuckPurchases,
			&r.RollsRemaining, &rollsAt,
			&r.ClaimsRemaining, &claimsAt,
			&r.GemsRemaining, &gemsAt,
			&r.Wishlist, &made); err != nil {
			playerRows.Close()
			return nil, err
		}
		for _, f := range []struct {
			raw string
			dst *time.Time
		}{{rollsAt, &r.RollsPeriodStart}, {claimsAt, &r.ClaimsPeriodStart}, {gemsAt, &r.GemsPeriodStart}, {made, &r.CreatedAt}} {
			t, err := time.Parse(time.RFC3339Nano, f.raw)
			if err != nil {
				playerRows.Close()
				return nil, fmt.Errorf("decode timestamp of %q: %w", r.PlayerID, err)
			}
			*f.dst = t
		}
		rows.players = append(rows.players, r)
	}
	if err := closeRows(playerRows); err != nil {
		return nil, err
	}
	return decodeSnapshot(rows)
}

func (s *SQLite) Save(ctx context.Context, tenantID string, snap *economy.Snapshot) error {
	rows, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"cards", "ownership", "players"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE tenant_id = ?`, tenantID); err != nil {
			return err
		}
	}
	for _, r := range rows.cards {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO cards (tenant_id, position, name, name_key, rank, value, description, images, claimed_by)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tenantID, r.Position, r.Name, r.NameKey, r.Rank, r.Value, r.Description, r.Images, r.ClaimedBy); err != nil {
			return err
		}
	}
	for _, r := range rows.ownership {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO ownership (tenant_id, player_id, position, card_name) VALUES (?, ?, ?, ?)`,
			tenantID, r.PlayerID, r.Position, r.CardName); err != nil {
			return err
		}
	}
	for _, r := range rows.players {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO players (tenant_id, player_id, coins, luck, luck_purchases,
                     rolls_remaining, rolls_period_start,
                     claims_remaining, claims_period_start,
                     gems_remaining, gems_period_start,
                     wishlist, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tenantID, r.PlayerID, r.Coins, r.Luck, r.LuckPurchases,
			r.RollsRemaining, formatTime(r.RollsPeriodStart),
			r.ClaimsRemaining, formatTime(r.ClaimsPeriodStart),
			r.GemsRemaining, formatTime(r.GemsPeriodStart),
			r.Wishlist, formatTime(r.CreatedAt)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}
