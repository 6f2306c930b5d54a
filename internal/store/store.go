package store

import (
	"context"
	"time"

	"card-gacha/internal/economy"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres snapshot backend.
type Store struct {
	Pool *pgxpool.Pool
}

func New(dsn string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

func (s *Store) Load(ctx context.Context, tenantID string) (*economy.Snapshot, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var rows snapshotRows
	cardRows, err := tx.Query(ctx, `
SELECT position, name, name_key, rank, value, description, images, claimed_by
FROM cards WHERE tenant_id = $1 ORDER BY position`, tenantID)
	if err != nil {
		return nil, err
	}
	rows.cards, err = pgx.CollectRows(cardRows, func(row pgx.CollectableRow) (cardRow, error) {
		var r cardRow
		err := row.Scan(&r.Position, &r.Name, &r.NameKey, &r.Rank, &r.Value, &r.Description, &r.Images, &r.ClaimedBy)
		return r, err
	})
	if err != nil {
		return nil, err
	}

	ownRows, err := tx.Query(ctx, `
SELECT player_id, position, card_name
FROM ownership WHERE tenant_id = $1 ORDER BY player_id, position`, tenantID)
	if err != nil {
		return nil, err
	}
	rows.ownership, err = pgx.CollectRows(ownRows, func(row pgx.CollectableRow) (ownershipRow, error) {
		var r ownershipRow
		err := row.Scan(&r.PlayerID, &r.Position, &r.CardName)
		return r, err
	})
	if err != nil {
		return nil, err
	}

	playerRows, err := tx.Query(ctx, `
SELECT player_id, coins, luck, luck_purchases,
       rolls_remaining, rolls_period_start,
       claims_remaining, claims_period_start,
       gems_remaining, gems_period_start,
       wishlist, created_at
FROM players WHERE tenant_id = $1 ORDER BY player_id`, tenantID)
	if err != nil {
		return nil, err
	}
	rows.players, err = pgx.CollectRows(playerRows, func(row pgx.CollectableRow) (playerRow, error) {
		var r playerRow
		err := row.Scan(&r.PlayerID, &r.Coins, &r.Luck, &r.LuckPurchases,
			&r.RollsRemaining, &r.RollsPeriodStart,
			&r.ClaimsRemaining, &r.ClaimsPeriodStart,
			&r.GemsRemaining, &r.GemsPeriodStart,
			&r.Wishlist, &r.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(rows)
}

func (s *Store) Save(ctx context.Context, tenantID string, snap *economy.Snapshot) error {
	rows, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM cards WHERE tenant_id = $1`, tenantID)
	batch.Queue(`DELETE FROM ownership WHERE tenant_id = $1`, tenantID)
	batch.Queue(`DELETE FROM players WHERE tenant_id = $1`, tenantID)
	for _, r := range rows.cards {
		batch.Queue(`
INSERT INTO cards (tenant_id, position, name, name_key, rank, value, description, images, claimed_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			tenantID, r.Position, r.Name, r.NameKey, r.Rank, r.Value, r.Description, r.Images, r.ClaimedBy)
	}
	for _, r := range rows.ownership {
		batch.Queue(`
INSERT INTO ownership (tenant_id, player_id, position, card_name) VALUES ($1, $2, $3, $4)`,
			tenantID, r.PlayerID, r.Position, r.CardName)
	}
	for _, r := range rows.players {
		batch.Queue(`
INSERT INTO players (tenant_id, player_id, coins, luck, luck_purchases,
                     rolls_remaining, rolls_period_start,
                     claims_remaining, claims_period_start,
                     gems_remaining, gems_period_start,
                     wishlist, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			tenantID, r.PlayerID, r.Coins, r.Luck, r.LuckPurchases,
			r.RollsRemaining, r.RollsPeriodStart,
			r.ClaimsRemaining, r.ClaimsPeriodStart,
			r.GemsRemaining, r.GemsPeriodStart,
			r.Wishlist, r.CreatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
