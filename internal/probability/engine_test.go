package probability

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"card-gacha/internal/economy"
)

func catalog(t *testing.T, cards ...economy.Card) *economy.Snapshot {
	t.Helper()
	s := economy.NewSnapshot()
	for _, c := range cards {
		if len(c.Images) == 0 {
			c.Images = []string{c.Name + ".png"}
		}
		if c.Value == 0 {
			c.Value = 100
		}
		if _, err := s.AddCard(c); err != nil {
			t.Fatalf("add %s: %v", c.Name, err)
		}
	}
	return s
}

func defaultEngine() *Engine {
	return NewEngine(Pricing{Base: 100, Doublings: 4, Step: 400})
}

func TestBaseWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, w := range BaseWeights {
		sum += w
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("base weights sum = %v", sum)
	}
}

func TestDistributionRenormalizesOverPresentRanks(t *testing.T) {
	s := catalog(t,
		economy.Card{Name: "Hero", Rank: economy.RankA},
		economy.Card{Name: "Villain", Rank: economy.RankB},
	)
	dist, err := defaultEngine().Distribution(s, economy.Luck{})
	if err != nil {
		t.Fatalf("distribution: %v", err)
	}
	var sum float64
	for _, rp := range dist {
		sum += rp.Probability
		switch rp.Rank {
		case economy.RankA:
			if math.Abs(rp.Probability-0.25) > 1e-9 || rp.Cards != 1 {
				t.Fatalf("A = %+v, want 0.25 with 1 card", rp)
			}
		case economy.RankB:
			if math.Abs(rp.Probability-0.75) > 1e-9 {
				t.Fatalf("B = %+v, want 0.75", rp)
			}
		default:
			if rp.Probability != 0 {
				t.Fatalf("rank %s without cards has probability %v", rp.Rank, rp.Probability)
			}
		}
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("probabilities sum = %v", sum)
	}
}

func TestClaimedCardsStillCountTowardRank(t *testing.T) {
	s := catalog(t, economy.Card{Name: "Hero", Rank: economy.RankA})
	if err := s.Assign("Hero", "p1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	card, err := defaultEngine().Draw(s, economy.Luck{}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if card.Name != "Hero" {
		t.Fatalf("drew %s, want Hero", card.Name)
	}
}

func TestEmptyCatalogHasNoCard(t *testing.T) {
	e := defaultEngine()
	if _, err := e.Draw(economy.NewSnapshot(), economy.Luck{}, rand.New(rand.NewSource(1))); !errors.Is(err, ErrNoCardAvailable) {
		t.Fatalf("draw err = %v", err)
	}
	if _, err := e.Distribution(economy.NewSnapshot(), economy.Luck{}); !errors.Is(err, ErrNoCardAvailable) {
		t.Fatalf("distribution err = %v", err)
	}
}

func TestNegativeLuckClampsAtZero(t *testing.T) {
	s := catalog(t,
		economy.Card{Name: "Hero", Rank: economy.RankA},
		economy.Card{Name: "Grunt", Rank: economy.RankE},
	)
	luck := economy.Luck{}
	luck[economy.RankE] = -1
	dist, err := defaultEngine().Distribution(s, luck)
	if err != nil {
		t.Fatalf("distribution: %v", err)
	}
	if dist[economy.RankE].Probability != 0 || math.Abs(dist[economy.RankA].Probability-1) > 1e-9 {
		t.Fatalf("unexpected distribution %+v", dist)
	}

	luck[economy.RankA] = -1
	if _, err := defaultEngine().Distribution(s, luck); !errors.Is(err, ErrNoCardAvailable) {
		t.Fatalf("all weights clamped: err = %v", err)
	}
}

func TestPickRankCumulative(t *testing.T) {
	w := Weights{}
	w[economy.RankA] = 0.25
	w[economy.RankB] = 0.75
	cases := []struct {
		u    float64
		want economy.Rank
	}{
		{0, economy.RankA},
		{0.2499, economy.RankA},
		{0.25, economy.RankB},
		{0.9999999, economy.RankB},
		{1, economy.RankB},
	}
	for _, tc := range cases {
		if got := pickRank(w, tc.u); got != tc.want {
			t.Fatalf("pickRank(%v) = %s, want %s", tc.u, got, tc.want)
		}
	}
}

func TestDrawFollowsTwoStageLaw(t *testing.T) {
	s := catalog(t,
		economy.Card{Name: "Hero", Rank: economy.RankA},
		economy.Card{Name: "Villain", Rank: economy.RankB},
		economy.Card{Name: "Henchman", Rank: economy.RankB},
	)
	e := defaultEngine()
	rng := rand.New(rand.NewSource(42))
	const n = 40000
	counts := map[string]int{}
	for i := 0; i < n; i++ {
		c, err := e.Draw(s, economy.Luck{}, rng)
		if err != nil {
			t.Fatalf("draw: %v", err)
		}
		counts[c.Name]++
	}
	want := map[string]float64{"Hero": 0.25, "Villain": 0.375, "Henchman": 0.375}
	for name, p := range want {
		got := float64(counts[name]) / n
		if math.Abs(got-p) > 0.015 {
			t.Fatalf("%s frequency = %.4f, want %.3f", name, got, p)
		}
	}
}

func TestDrawIsReproducibleForFixedSeed(t *testing.T) {
	s := catalog(t,
		economy.Card{Name: "Hero", Rank: economy.RankA},
		economy.Card{Name: "Villain", Rank: economy.RankB},
		economy.Card{Name: "Sage", Rank: economy.RankS},
	)
	e := defaultEngine()
	a := rand.New(rand.NewSource(7))
	b := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		x, _ := e.Draw(s, economy.Luck{}, a)
		y, _ := e.Draw(s, economy.Luck{}, b)
		if x.Name != y.Name {
			t.Fatalf("draw %d diverged: %s vs %s", i, x.Name, y.Name)
		}
	}
}

func TestApplyPurchaseRespectsCeiling(t *testing.T) {
	e := defaultEngine()
	var luck economy.Luck
	e.ApplyPurchase(&luck)
	if luck[economy.RankSS] != LuckIncrement[economy.RankSS] || luck[economy.RankE] != LuckIncrement[economy.RankE] {
		t.Fatalf("first purchase luck = %v", luck)
	}
	for i := 0; i < 200; i++ {
		e.ApplyPurchase(&luck)
		for r := range luck {
			if math.Abs(luck[r]) > LuckCeiling[r]+1e-12 {
				t.Fatalf("rank %s bias %v exceeds ceiling %v", economy.Rank(r), luck[r], LuckCeiling[r])
			}
		}
	}
	if math.Abs(luck[economy.RankSS]-LuckCeiling[economy.RankSS]) > 1e-12 {
		t.Fatalf("SS bias = %v, want ceiling %v", luck[economy.RankSS], LuckCeiling[economy.RankSS])
	}
	if math.Abs(luck[economy.RankE]+LuckCeiling[economy.RankE]) > 1e-12 {
		t.Fatalf("E bias = %v, want -%v", luck[economy.RankE], LuckCeiling[economy.RankE])
	}

	s := catalog(t,
		economy.Card{Name: "Legend", Rank: economy.RankSS},
		economy.Card{Name: "Grunt", Rank: economy.RankE},
	)
	base, _ := e.Distribution(s, economy.Luck{})
	lucky, _ := e.Distribution(s, luck)
	if lucky[economy.RankSS].Probability <= base[economy.RankSS].Probability {
		t.Fatalf("luck did not raise SS odds: base=%v lucky=%v", base[economy.RankSS], lucky[economy.RankSS])
	}
}

func TestPricingCost(t *testing.T) {
	p := Pricing{Base: 100, Doublings: 4, Step: 400}
	want := []int64{100, 200, 400, 800, 1600, 2000, 2400}
	for n, w := range want {
		if got := p.Cost(n); got != w {
			t.Fatalf("Cost(%d) = %d, want %d", n, got, w)
		}
	}
	linear := Pricing{Base: 100, Doublings: 0, Step: 100}
	if linear.Cost(0) != 100 || linear.Cost(3) != 400 {
		t.Fatalf("linear pricing = %d, %d", linear.Cost(0), linear.Cost(3))
	}
}

func TestPricingCostSaturates(t *testing.T) {
	cases := []struct {
		name string
		p    Pricing
		n    int
		want int64
	}{
		{name: "largest doubling that fits", p: Pricing{Base: 100, Doublings: 60, Step: 400}, n: 55, want: 100 << 55},
		{name: "doubling past int64", p: Pricing{Base: 100, Doublings: 60, Step: 400}, n: 57, want: math.MaxInt64},
		{name: "doubling cap past int64", p: Pricing{Base: 100, Doublings: 60, Step: 400}, n: 60, want: math.MaxInt64},
		{name: "shift of 63 or more", p: Pricing{Base: 1, Doublings: 70, Step: 1}, n: 64, want: math.MaxInt64},
		{name: "linear step past int64", p: Pricing{Base: 1, Doublings: 0, Step: math.MaxInt64 / 2}, n: 3, want: math.MaxInt64},
		{name: "zero base never overflows", p: Pricing{Base: 0, Doublings: 70, Step: 0}, n: 70, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.p.Cost(tc.n); got != tc.want {
				t.Fatalf("Cost(%d) = %d, want %d", tc.n, got, tc.want)
			}
		})
	}
}

func TestDoublingFits(t *testing.T) {
	if !DoublingFits(100, 4) || !DoublingFits(255, 55) {
		t.Fatal("expected small doublings to fit")
	}
	if DoublingFits(100, 60) || DoublingFits(256, 55) || DoublingFits(1, 63) {
		t.Fatal("expected overflowing doublings to be rejected")
	}
}
