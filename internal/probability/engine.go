package probability

import (
	"errors"
	"math"
	"math/rand"

	"card-gacha/internal/economy"
)

var ErrNoCardAvailable = errors.New("no_card_available")

// Weights are per-rank draw weights indexed by economy.Rank.
type Weights [economy.NumRanks]float64

var (
	// BaseWeights sum to 1 before luck is applied.
	BaseWeights = Weights{0.0005, 0.0095, 0.04, 0.12, 0.20, 0.30, 0.33}

	// LuckIncrement is added to a player's luck on each purchase, moving
	// mass from the common ranks toward SS, S and A.
	LuckIncrement = economy.Luck{0.0005, 0.002, 0.005, 0, -0.0005, -0.003, -0.004}

	// LuckCeiling bounds the absolute bias of each rank.
	LuckCeiling = economy.Luck{0.01, 0.04, 0.10, 0, 0.01, 0.06, 0.08}
)

type RankProbability struct {
	Rank        economy.Rank `json:"rank"`
	Probability float64      `json:"probability"`
	Cards       int          `json:"cards"`
}

type Engine struct {
	base      Weights
	increment economy.Luck
	ceiling   economy.Luck
	pricing   Pricing
}

func NewEngine(pricing Pricing) *Engine {
	return &Engine{
		base:      BaseWeights,
		increment: LuckIncrement,
		ceiling:   LuckCeiling,
		pricing:   pricing,
	}
}

func (e *Engine) Pricing() Pricing {
	return e.pricing
}

// weights applies luck, zeroes ranks absent from the catalog and
// renormalizes. The second result holds per-rank catalog counts.
func (e *Engine) weights(snap *economy.Snapshot, luck economy.Luck) (Weights, [economy.NumRanks]int, error) {
	var counts [economy.NumRanks]int
	for _, c := range snap.Cards() {
		if c.Rank.Valid() {
			counts[c.Rank]++
		}
	}
	var w Weights
	var total float64
	for r := range w {
		if counts[r] == 0 {
			continue
		}
		v := e.base[r] + luck[r]
		if v < 0 {
			v = 0
		}
		w[r] = v
		total += v
	}
	if total <= 0 {
		return Weights{}, counts, ErrNoCardAvailable
	}
	for r := range w {
		w[r] /= total
	}
	return w, counts, nil
}

// Distribution returns the normalized rank probabilities a player draws with.
func (e *Engine) Distribution(snap *economy.Snapshot, luck economy.Luck) ([]RankProbability, error) {
	w, counts, err := e.weights(snap, luck)
	if err != nil {
		return nil, err
	}
	out := make([]RankProbability, 0, economy.NumRanks)
	for _, r := range economy.Ranks() {
		out = append(out, RankProbability{Rank: r, Probability: w[r], Cards: counts[r]})
	}
	return out, nil
}

// Draw samples a rank by cumulative distribution against rng.Float64, then a
// card of that rank uniformly by rng.Intn in catalog order. Claimed cards are
// eligible.
func (e *Engine) Draw(snap *economy.Snapshot, luck economy.Luck, rng *rand.Rand) (*economy.Card, error) {
	w, _, err := e.weights(snap, luck)
	if err != nil {
		return nil, err
	}
	rank := pickRank(w, rng.Float64())
	cards := snap.CardsOfRank(rank)
	return cards[rng.Intn(len(cards))], nil
}

func pickRank(w Weights, u float64) economy.Rank {
	var cum float64
	last := economy.RankSS
	for _, r := range economy.Ranks() {
		if w[r] <= 0 {
			continue
		}
		last = r
		cum += w[r]
		if u < cum {
			return r
		}
	}
	// Rounding can leave cum slightly below 1.
	return last
}

// ApplyPurchase adds one purchase worth of bias, clamped to the ceiling.
func (e *Engine) ApplyPurchase(luck *economy.Luck) {
	for r := range luck {
		v := luck[r] + e.increment[r]
		limit := e.ceiling[r]
		luck[r] = math.Max(-limit, math.Min(limit, v))
	}
}
