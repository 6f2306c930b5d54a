package store

import (
	"encoding/json"
	"fmt"
	"time"

	"card-gacha/internal/economy"
)

type cardRow struct {
	Position    int
	Name        string
	NameKey     string
	Rank        string
	Value       int64
	Description string
	Images      string
	ClaimedBy   string
}

type ownershipRow struct {
	PlayerID string
	Position int
	CardName string
}

type playerRow struct {
	PlayerID          string
	Coins             int64
	Luck              string
	LuckPurchases     int
	RollsRemaining    int
	RollsPeriodStart  time.Time
	ClaimsRemaining   int
	ClaimsPeriodStart time.Time
	GemsRemaining     int
	GemsPeriodStart   time.Time
	Wishlist          string
	CreatedAt         time.Time
}

type snapshotRows struct {
	cards     []cardRow
	ownership []ownershipRow
	players   []playerRow
}

func encodeSnapshot(snap *economy.Snapshot) (snapshotRows, error) {
	var out snapshotRows
	for i, c := range snap.Cards() {
		images, err := json.Marshal(c.Images)
		if err != nil {
			return out, err
		}
		out.cards = append(out.cards, cardRow{
			Position:    i,
			Name:        c.Name,
			NameKey:     economy.NameKey(c.Name),
			Rank:        c.Rank.String(),
			Value:       c.Value,
			Description: c.Description,
			Images:      string(images),
			ClaimedBy:   c.ClaimedBy,
		})
	}
	for _, owner := range snap.Owners() {
		for i, name := range snap.Owned(owner) {
			out.ownership = append(out.ownership, ownershipRow{PlayerID: owner, Position: i, CardName: name})
		}
	}
	for _, id := range snap.Players() {
		p, _ := snap.Player(id)
		luck, err := json.Marshal(p.Luck)
		if err != nil {
			return out, err
		}
		wishlist := p.Wishlist
		if wishlist == nil {
			wishlist = []string{}
		}
		wish, err := json.Marshal(wishlist)
		if err != nil {
			return out, err
		}
		out.players = append(out.players, playerRow{
			PlayerID:          p.ID,
			Coins:             p.Coins,
			Luck:              string(luck),
			LuckPurchases:     p.LuckPurchases,
			RollsRemaining:    p.Rolls.Remaining,
			RollsPeriodStart:  p.Rolls.PeriodStart.UTC(),
			ClaimsRemaining:   p.Claims.Remaining,
			ClaimsPeriodStart: p.Claims.PeriodStart.UTC(),
			GemsRemaining:     p.Gems.Remaining,
			GemsPeriodStart:   p.Gems.PeriodStart.UTC(),
			Wishlist:          string(wish),
			CreatedAt:         p.CreatedAt.UTC(),
		})
	}
	return out, nil
}

// decodeSnapshot rebuilds a snapshot from rows already sorted by position.
func decodeSnapshot(rows snapshotRows) (*economy.Snapshot, error) {
	snap := economy.NewSnapshot()
	for _, r := range rows.cards {
		rank, err := economy.ParseRank(r.Rank)
		if err != nil {
			return nil, err
		}
		var images []string
		if err := json.Unmarshal([]byte(r.Images), &images); err != nil {
			return nil, fmt.Errorf("decode images of %q: %w", r.Name, err)
		}
		if _, err := snap.AddCard(economy.Card{
			Name:        r.Name,
			Rank:        rank,
			Value:       r.Value,
			Description: r.Description,
			Images:      images,
			ClaimedBy:   r.ClaimedBy,
		}); err != nil {
			return nil, err
		}
	}
	owned := make(map[string][]string)
	for _, r := range rows.ownership {
		owned[r.PlayerID] = append(owned[r.PlayerID], r.CardName)
	}
	for owner, names := range owned {
		snap.SetOwned(owner, names)
	}
	for _, r := range rows.players {
		p := &economy.Player{
			ID:            r.PlayerID,
			Coins:         r.Coins,
			LuckPurchases: r.LuckPurchases,
			Rolls:         economy.Allowance{Remaining: r.RollsRemaining, PeriodStart: r.RollsPeriodStart.UTC()},
			Claims:        economy.Allowance{Remaining: r.ClaimsRemaining, PeriodStart: r.ClaimsPeriodStart.UTC()},
			Gems:          economy.Allowance{Remaining: r.GemsRemaining, PeriodStart: r.GemsPeriodStart.UTC()},
			CreatedAt:     r.CreatedAt.UTC(),
		}
		if err := json.Unmarshal([]byte(r.Luck), &p.Luck); err != nil {
			return nil, fmt.Errorf("decode luck of %q: %w", r.PlayerID, err)
		}
		if err := json.Unmarshal([]byte(r.Wishlist), &p.Wishlist); err != nil {
			return nil, fmt.Errorf("decode wishlist of %q: %w", r.PlayerID, err)
		}
		snap.PutPlayer(p)
	}
	if err := snap.CheckInvariants(); err != nil {
		return nil, err
	}
	return snap, nil
}
