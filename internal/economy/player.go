package economy

import (
	"fmt"
	"time"
)

// Luck is a per-rank additive bias on draw weights, indexed by Rank.
type Luck [NumRanks]float64

// Allowance is one periodically refilled counter.
type Allowance struct {
	Remaining   int       `json:"remaining"`
	PeriodStart time.Time `json:"period_start"`
}

type Player struct {
	ID            string    `json:"id"`
	Coins         int64     `json:"coins"`
	Luck          Luck      `json:"luck"`
	LuckPurchases int       `json:"luck_purchases"`
	Rolls         Allowance `json:"rolls"`
	Claims        Allowance `json:"claims"`
	Gems          Allowance `json:"gems"`
	Wishlist      []string  `json:"wishlist"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewPlayer returns a record with zero coins and neutral luck. Its allowance
// counters carry a zero period start, so the first refresh fills them to cap.
func NewPlayer(id string, now time.Time) *Player {
	return &Player{ID: id, CreatedAt: now.UTC()}
}

func (p *Player) Clone() *Player {
	out := *p
	out.Wishlist = append([]string(nil), p.Wishlist...)
	return &out
}

func (p *Player) HasWish(name string) bool {
	key := NameKey(name)
	for _, w := range p.Wishlist {
		if NameKey(w) == key {
			return true
		}
	}
	return false
}

// AddWish appends name to the wishlist. Adding a name already present is a no-op.
func (p *Player) AddWish(name string, max int) error {
	if p.HasWish(name) {
		return nil
	}
	if len(p.Wishlist) >= max {
		return fmt.Errorf("%w: at most %d cards", ErrWishlistFull, max)
	}
	p.Wishlist = append(p.Wishlist, name)
	return nil
}

func (p *Player) RemoveWish(name string) bool {
	key := NameKey(name)
	for i, w := range p.Wishlist {
		if NameKey(w) == key {
			p.Wishlist = append(p.Wishlist[:i], p.Wishlist[i+1:]...)
			return true
		}
	}
	return false
}
