package gacha

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"card-gacha/internal/allowance"
	"card-gacha/internal/claim"
	"card-gacha/internal/config"
	"card-gacha/internal/economy"
	"card-gacha/internal/ledger"
	"card-gacha/internal/probability"
	"card-gacha/internal/tenant"
	"card-gacha/internal/trade"

	"github.com/rs/zerolog/log"
)

const CollectionPageSize = 10

// Service is the operation surface the chat shell talks to. Every mutation
// runs inside one tenant transaction.
type Service struct {
	reg    *tenant.Registry
	sched  *allowance.Scheduler
	engine *probability.Engine
	arb    *claim.Arbitrator
	esc    *trade.Escrow
	cfg    config.EconomyConfig

	now  func() time.Time
	rand func() *rand.Rand
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRand overrides the per-call RNG source.
func WithRand(fn func() *rand.Rand) Option {
	return func(s *Service) { s.rand = fn }
}

func NewService(reg *tenant.Registry, sched *allowance.Scheduler, engine *probability.Engine, arb *claim.Arbitrator, esc *trade.Escrow, cfg config.EconomyConfig, opts ...Option) *Service {
	s := &Service{
		reg:    reg,
		sched:  sched,
		engine: engine,
		arb:    arb,
		esc:    esc,
		cfg:    cfg,
		now:    time.Now,
		rand: func() *rand.Rand {
			return rand.New(rand.NewSource(rand.Int63()))
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func requireIDs(ids ...string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: missing identifier", ErrInvalidRequest)
		}
	}
	return nil
}

// Roll draws a card for the player and opens a claim offer in the channel.
// A denied or empty roll spends nothing.
func (s *Service) Roll(ctx context.Context, tenantID, playerID, channelID string) (*RollResult, error) {
	if err := requireIDs(tenantID, playerID); err != nil {
		return nil, err
	}
	tx, err := s.reg.Begin(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := s.now()
	snap := tx.Snapshot
	p, _ := snap.EnsurePlayer(playerID, now)
	if err := s.sched.Check(p, allowance.Rolls, now); err != nil {
		metricRollsDenied.Add(1)
		return nil, err
	}
	card, err := s.engine.Draw(snap, p.Luck, s.rand())
	if err != nil {
		if errors.Is(err, probability.ErrNoCardAvailable) {
			metricRollsEmpty.Add(1)
		}
		return nil, err
	}
	if err := s.sched.Consume(p, allowance.Rolls, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	var wishedBy []string
	for _, id := range snap.Players() {
		if other, ok := snap.Player(id); ok && id != playerID && other.HasWish(card.Name) {
			wishedBy = append(wishedBy, id)
		}
	}
	offer := s.arb.Open(tenantID, channelID, playerID, card, now)
	metricRollsTotal.Add(1)
	log.Debug().Str("tenant_id", tenantID).Str("player_id", playerID).Str("card", card.Name).Str("offer_id", offer.ID).Msg("roll")

	return &RollResult{
		Card:           cardView(card),
		Offer:          offer,
		RollsRemaining: p.Rolls.Remaining,
		WishedBy:       wishedBy,
	}, nil
}

func (s *Service) Claim(ctx context.Context, tenantID, playerID, offerID string) (*claim.Result, error) {
	if err := requireIDs(tenantID, playerID, offerID); err != nil {
		return nil, err
	}
	res, err := s.arb.Claim(ctx, tenantID, playerID, offerID)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *Service) CollectGems(ctx context.Context, tenantID, playerID, offerID string) (*claim.GemResult, error) {
	if err := requireIDs(tenantID, playerID, offerID); err != nil {
		return nil, err
	}
	res, err := s.arb.CollectGems(ctx, tenantID, playerID, offerID)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Divorce releases an owned card back to the pool for its value in coins.
func (s *Service) Divorce(ctx context.Context, tenantID, playerID, cardName string) (*DivorceResult, error) {
	if err := requireIDs(tenantID, playerID, cardName); err != nil {
		return nil, err
	}
	var out DivorceResult
	led := ledger.New(tenantID)
	err := s.reg.Update(ctx, tenantID, func(snap *economy.Snapshot) error {
		card, err := snap.Release(cardName, playerID)
		if err != nil {
			return err
		}
		p, _ := snap.EnsurePlayer(playerID, s.now())
		out = DivorceResult{Card: card.Name, Payout: card.Value, Coins: led.CreditDivorce(p, card.Name, card.Value)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	led.Flush()
	metricDivorcesTotal.Add(1)
	return &out, nil
}

// BuyLuck charges the next luck price and applies one purchase of bias.
func (s *Service) BuyLuck(ctx context.Context, tenantID, playerID string) (*LuckResult, error) {
	if err := requireIDs(tenantID, playerID); err != nil {
		return nil, err
	}
	pricing := s.engine.Pricing()
	var out LuckResult
	led := ledger.New(tenantID)
	err := s.reg.Update(ctx, tenantID, func(snap *economy.Snapshot) error {
		p, _ := snap.EnsurePlayer(playerID, s.now())
		cost := pricing.Cost(p.LuckPurchases)
		coins, err := led.DebitLuck(p, p.LuckPurchases+1, cost)
		if err != nil {
			return err
		}
		s.engine.ApplyPurchase(&p.Luck)
		p.LuckPurchases++
		out = LuckResult{
			Paid:      cost,
			NextCost:  pricing.Cost(p.LuckPurchases),
			Coins:     coins,
			Purchases: p.LuckPurchases,
			Luck:      luckMap(p.Luck),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	led.Flush()
	metricLuckPurchases.Add(1)
	return &out, nil
}

func luckMap(l economy.Luck) map[string]float64 {
	out := make(map[string]float64, len(l))
	for _, r := range economy.Ranks() {
		out[r.String()] = l[r]
	}
	return out
}

func (s *Service) GetProbabilities(ctx context.Context, tenantID, playerID string) (*ProbabilitiesResponse, error) {
	if err := requireIDs(tenantID, playerID); err != nil {
		return nil, err
	}
	out := &ProbabilitiesResponse{PlayerID: playerID}
	err := s.reg.View(ctx, tenantID, func(snap *economy.Snapshot) error {
		var luck economy.Luck
		if p, ok := snap.Player(playerID); ok {
			luck = p.Luck
		}
		dist, err := s.engine.Distribution(snap, luck)
		if err != nil {
			return err
		}
		for _, rp := range dist {
			out.Items = append(out.Items, ProbabilityItem{
				Rank:        rp.Rank.String(),
				Probability: rp.Probability,
				Percent:     rp.Probability * 100,
				Cards:       rp.Cards,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// playerView returns a refreshed copy of the player, or a default record for
// a player not yet seen. The committed snapshot is never modified.
func (s *Service) playerView(snap *economy.Snapshot, playerID string, now time.Time) *economy.Player {
	var p *economy.Player
	if existing, ok := snap.Player(playerID); ok {
		p = existing.Clone()
	} else {
		p = economy.NewPlayer(playerID, now)
	}
	s.sched.Refresh(p, now)
	return p
}

func (s *Service) allowanceView(c allowance.Counter, a economy.Allowance, now time.Time) AllowanceView {
	pol, _ := s.sched.Policy(c)
	return AllowanceView{Remaining: a.Remaining, Cap: pol.Cap, ResetsAt: allowance.NextBoundary(now, pol.Period)}
}

func (s *Service) Profile(ctx context.Context, tenantID, playerID string) (*ProfileResponse, error) {
	if err := requireIDs(tenantID, playerID); err != nil {
		return nil, err
	}
	now := s.now()
	var out ProfileResponse
	err := s.reg.View(ctx, tenantID, func(snap *economy.Snapshot) error {
		p := s.playerView(snap, playerID, now)
		out = ProfileResponse{
			PlayerID:      playerID,
			Coins:         p.Coins,
			Rolls:         s.allowanceView(allowance.Rolls, p.Rolls, now),
			Claims:        s.allowanceView(allowance.Claims, p.Claims, now),
			Gems:          s.allowanceView(allowance.Gems, p.Gems, now),
			LuckPurchases: p.LuckPurchases,
			NextLuckCost:  s.engine.Pricing().Cost(p.LuckPurchases),
			Wishlist:      append([]string{}, p.Wishlist...),
			CardsOwned:    len(snap.Owned(playerID)),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Collection returns one page of the player's cards in acquisition order.
// Pages are 1-based; a page past the end is empty.
func (s *Service) Collection(ctx context.Context, tenantID, playerID string, page int) (*CollectionResponse, error) {
	if err := requireIDs(tenantID, playerID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	out := &CollectionResponse{PlayerID: playerID, Page: page, Items: []CardView{}}
	err := s.reg.View(ctx, tenantID, func(snap *economy.Snapshot) error {
		names := snap.Owned(playerID)
		out.Total = len(names)
		out.Pages = (len(names) + CollectionPageSize - 1) / CollectionPageSize
		start := (page - 1) * CollectionPageSize
		for i := start; i < len(names) && i < start+CollectionPageSize; i++ {
			if c, ok := snap.Card(names[i]); ok {
				out.Items = append(out.Items, cardView(c))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TopCards lists the catalog by rank, then value descending, then name.
func (s *Service) TopCards(ctx context.Context, tenantID string, limit, offset int) (*TopCardsResponse, error) {
	if err := requireIDs(tenantID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	out := &TopCardsResponse{Limit: limit, Offset: offset, Items: []CardView{}}
	err := s.reg.View(ctx, tenantID, func(snap *economy.Snapshot) error {
		cards := append([]*economy.Card(nil), snap.Cards()...)
		sort.SliceStable(cards, func(i, j int) bool {
			a, b := cards[i], cards[j]
			if a.Rank != b.Rank {
				return a.Rank < b.Rank
			}
			if a.Value != b.Value {
				return a.Value > b.Value
			}
			return economy.NameKey(a.Name) < economy.NameKey(b.Name)
		})
		out.Total = len(cards)
		for i := offset; i < len(cards) && i < offset+limit; i++ {
			out.Items = append(out.Items, cardView(cards[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) GetCard(ctx context.Context, tenantID, name string) (*CardView, error) {
	if err := requireIDs(tenantID, name); err != nil {
		return nil, err
	}
	var out CardView
	err := s.reg.View(ctx, tenantID, func(snap *economy.Snapshot) error {
		c, ok := snap.Card(name)
		if !ok {
			return fmt.Errorf("%w: %s", economy.ErrCardNotFound, name)
		}
		out = cardView(c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AddCard appends a card to the tenant catalog.
func (s *Service) AddCard(ctx context.Context, tenantID string, in CardInput) (*CardView, error) {
	if err := requireIDs(tenantID); err != nil {
		return nil, err
	}
	rank, err := economy.ParseRank(in.Rank)
	if err != nil {
		return nil, err
	}
	images := make([]string, 0, len(in.Images))
	for _, img := range in.Images {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, img)
		}
	}
	var out CardView
	err = s.reg.Update(ctx, tenantID, func(snap *economy.Snapshot) error {
		c, err := snap.AddCard(economy.Card{
			Name:        strings.TrimSpace(in.Name),
			Rank:        rank,
			Value:       in.Value,
			Description: in.Description,
			Images:      images,
		})
		if err != nil {
			return err
		}
		out = cardView(c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	metricCardsAddedTotal.Add(1)
	log.Info().Str("tenant_id", tenantID).Str("card", out.Name).Str("rank", out.Rank).Msg("card added")
	return &out, nil
}

func (s *Service) AddWish(ctx context.Context, tenantID, playerID, cardName string) (*WishlistResponse, error) {
	if err := requireIDs(tenantID, playerID, cardName); err != nil {
		return nil, err
	}
	out := &WishlistResponse{PlayerID: playerID}
	err := s.reg.Update(ctx, tenantID, func(snap *economy.Snapshot) error {
		c, ok := snap.Card(cardName)
		if !ok {
			return fmt.Errorf("%w: %s", economy.ErrCardNotFound, cardName)
		}
		p, _ := snap.EnsurePlayer(playerID, s.now())
		if err := p.AddWish(c.Name, s.cfg.WishlistMax); err != nil {
			return err
		}
		out.Wishlist = append([]string{}, p.Wishlist...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) RemoveWish(ctx context.Context, tenantID, playerID, cardName string) (*WishlistResponse, error) {
	if err := requireIDs(tenantID, playerID, cardName); err != nil {
		return nil, err
	}
	out := &WishlistResponse{PlayerID: playerID, Wishlist: []string{}}
	err := s.reg.Update(ctx, tenantID, func(snap *economy.Snapshot) error {
		p, ok := snap.Player(playerID)
		if !ok || !p.RemoveWish(cardName) {
			if ok {
				out.Wishlist = append(out.Wishlist, p.Wishlist...)
			}
			return tenant.ErrUnchanged
		}
		out.Wishlist = append(out.Wishlist, p.Wishlist...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) ProposeTrade(ctx context.Context, tenantID, from, to, channelID string, cards []string) (*trade.Negotiation, error) {
	if err := requireIDs(tenantID, from, to); err != nil {
		return nil, err
	}
	n, err := s.esc.Propose(ctx, tenantID, from, to, channelID, cards)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Service) SubmitCounterOffer(ctx context.Context, tenantID, tradeID, playerID string, cards []string) (*trade.Negotiation, error) {
	if err := requireIDs(tenantID, tradeID, playerID); err != nil {
		return nil, err
	}
	n, err := s.esc.Counter(ctx, tenantID, tradeID, playerID, cards)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Service) ConfirmTrade(ctx context.Context, tenantID, tradeID, playerID string, accept bool) (*trade.Negotiation, error) {
	if err := requireIDs(tenantID, tradeID, playerID); err != nil {
		return nil, err
	}
	n, err := s.esc.Confirm(ctx, tenantID, tradeID, playerID, accept)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Service) CancelTrade(ctx context.Context, tenantID, tradeID, playerID string) (*trade.Negotiation, error) {
	if err := requireIDs(tenantID, tradeID, playerID); err != nil {
		return nil, err
	}
	n, err := s.esc.Cancel(ctx, tenantID, tradeID, playerID)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Service) GetTrade(ctx context.Context, tenantID, tradeID string) (*trade.Negotiation, error) {
	if err := requireIDs(tenantID, tradeID); err != nil {
		return nil, err
	}
	n, err := s.esc.Get(ctx, tenantID, tradeID)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// WaitTrade long-polls until the negotiation changes or its deadline passes.
func (s *Service) WaitTrade(ctx context.Context, tenantID, tradeID string) (*trade.Negotiation, error) {
	if err := requireIDs(tenantID, tradeID); err != nil {
		return nil, err
	}
	n, err := s.esc.Wait(ctx, tenantID, tradeID)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Service) GetOffer(tenantID, offerID string) (*claim.Offer, error) {
	o, ok := s.arb.Get(tenantID, offerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", claim.ErrOfferNotFound, offerID)
	}
	return &o, nil
}
