package gacha

import (
	"time"

	"card-gacha/internal/claim"
	"card-gacha/internal/economy"
)

type CardView struct {
	Name        string   `json:"name"`
	Rank        string   `json:"rank"`
	Value       int64    `json:"value"`
	Description string   `json:"description,omitempty"`
	Image       string   `json:"image"`
	Images      []string `json:"images"`
	ClaimedBy   string   `json:"claimed_by,omitempty"`
}

func cardView(c *economy.Card) CardView {
	return CardView{
		Name:        c.Name,
		Rank:        c.Rank.String(),
		Value:       c.Value,
		Description: c.Description,
		Image:       c.Image(),
		Images:      append([]string(nil), c.Images...),
		ClaimedBy:   c.ClaimedBy,
	}
}

type CardInput struct {
	Name        string   `json:"name"`
	Rank        string   `json:"rank"`
	Value       int64    `json:"value"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
}

type RollResult struct {
	Card           CardView    `json:"card"`
	Offer          claim.Offer `json:"offer"`
	RollsRemaining int         `json:"rolls_remaining"`
	WishedBy       []string    `json:"wished_by,omitempty"`
}

type DivorceResult struct {
	Card   string `json:"card"`
	Payout int64  `json:"payout"`
	Coins  int64  `json:"coins"`
}

type LuckResult struct {
	Paid      int64              `json:"paid"`
	NextCost  int64              `json:"next_cost"`
	Coins     int64              `json:"coins"`
	Purchases int                `json:"purchases"`
	Luck      map[string]float64 `json:"luck"`
}

type ProbabilityItem struct {
	Rank        string  `json:"rank"`
	Probability float64 `json:"probability"`
	Percent     float64 `json:"percent"`
	Cards       int     `json:"cards"`
}

type ProbabilitiesResponse struct {
	PlayerID string            `json:"player_id"`
	Items    []ProbabilityItem `json:"items"`
}

type AllowanceView struct {
	Remaining int       `json:"remaining"`
	Cap       int       `json:"cap"`
	ResetsAt  time.Time `json:"resets_at"`
}

type ProfileResponse struct {
	PlayerID      string        `json:"player_id"`
	Coins         int64         `json:"coins"`
	Rolls         AllowanceView `json:"rolls"`
	Claims        AllowanceView `json:"claims"`
	Gems          AllowanceView `json:"gems"`
	LuckPurchases int           `json:"luck_purchases"`
	NextLuckCost  int64         `json:"next_luck_cost"`
	Wishlist      []string      `json:"wishlist"`
	CardsOwned    int           `json:"cards_owned"`
}

type CollectionResponse struct {
	PlayerID string     `json:"player_id"`
	Items    []CardView `json:"items"`
	Page     int        `json:"page"`
	Pages    int        `json:"pages"`
	Total    int        `json:"total"`
}

type TopCardsResponse struct {
	Items  []CardView `json:"items"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

type WishlistResponse struct {
	PlayerID string   `json:"player_id"`
	Wishlist []string `json:"wishlist"`
}
