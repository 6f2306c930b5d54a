package claim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"card-gacha/internal/allowance"
	"card-gacha/internal/config"
	"card-gacha/internal/economy"
	"card-gacha/internal/ledger"
	"card-gacha/internal/notify"
	"card-gacha/internal/store"
	"card-gacha/internal/tenant"

	"github.com/rs/zerolog/log"
)

// Arbitrator owns the roll offers of every tenant and resolves claim races.
// Offer state only moves to claimed_first while the tenant exclusion is held,
// so the compare-and-set on Card.ClaimedBy and the offer transition are one
// linearizable step.
type Arbitrator struct {
	reg      *tenant.Registry
	sched    *allowance.Scheduler
	notifier notify.Notifier
	now      func() time.Time

	window         time.Duration
	retention      time.Duration
	consolation    int64
	chargeAttempts bool

	mu    sync.Mutex
	books map[string]*offerBook
}

// offerBook holds one tenant's offers under that tenant's own lock.
type offerBook struct {
	mu        sync.Mutex
	offers    map[string]*offerEntry
	byChannel map[string]string
}

type Option func(*Arbitrator)

func WithNotifier(n notify.Notifier) Option {
	return func(a *Arbitrator) { a.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(a *Arbitrator) { a.now = now }
}

func New(reg *tenant.Registry, sched *allowance.Scheduler, cfg config.EconomyConfig, opts ...Option) *Arbitrator {
	a := &Arbitrator{
		reg:            reg,
		sched:          sched,
		notifier:       notify.Nop{},
		now:            time.Now,
		window:         cfg.OfferWindow,
		retention:      cfg.OfferRetention,
		consolation:    cfg.ConsolationPayout,
		chargeAttempts: cfg.ClaimChargePolicy == config.ClaimChargeAttempt,
		books:          make(map[string]*offerBook),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// book returns the tenant's offer book, creating it when create is set.
func (a *Arbitrator) book(tenantID string, create bool) *offerBook {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.books[tenantID]
	if !ok && create {
		b = &offerBook{offers: make(map[string]*offerEntry), byChannel: make(map[string]string)}
		a.books[tenantID] = b
	}
	return b
}

func (a *Arbitrator) allBooks() []*offerBook {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*offerBook, 0, len(a.books))
	for _, b := range a.books {
		out = append(out, b)
	}
	return out
}

func channelKey(channelID, rolledBy string) string {
	if channelID == "" {
		return "@" + rolledBy
	}
	return "#" + channelID
}

// Open registers a new offer for a drawn card and supersedes whatever offer
// was still live in the same channel. Callers hold the tenant exclusion.
func (a *Arbitrator) Open(tenantID, channelID, rolledBy string, card *economy.Card, now time.Time) Offer {
	e := &offerEntry{
		Offer: Offer{
			ID:        store.NewID("off_"),
			TenantID:  tenantID,
			ChannelID: channelID,
			CardName:  card.Name,
			RolledBy:  rolledBy,
			Claimable: !card.Claimed(),
			State:     StateOpen,
			OpenedAt:  now.UTC(),
			ExpiresAt: now.UTC().Add(a.window),
		},
		consoled: make(map[string]bool),
		gemmed:   make(map[string]bool),
	}
	if !e.Claimable {
		e.State = StateClaimedFirst
		e.WinnerID = card.ClaimedBy
	}
	key := channelKey(channelID, rolledBy)

	b := a.book(tenantID, true)
	b.mu.Lock()
	if prevID, ok := b.byChannel[key]; ok {
		if prev := b.offers[prevID]; prev != nil && (prev.State == StateOpen || prev.State == StateClaimedFirst) {
			prev.State = StateSuperseded
			prev.closedAt = now
			metricOffersSuperseded.Add(1)
		}
	}
	b.offers[e.ID] = e
	b.byChannel[key] = e.ID
	b.mu.Unlock()

	metricOffersOpened.Add(1)
	return e.Offer
}

// Get returns the tenant's offer as currently observed.
func (a *Arbitrator) Get(tenantID, offerID string) (Offer, bool) {
	b := a.book(tenantID, false)
	if b == nil {
		return Offer{}, false
	}
	now := a.now()
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.offers[offerID]
	if !ok {
		return Offer{}, false
	}
	return e.view(now), true
}

// withEntry runs fn on the live entry under the tenant's book lock. fn is
// skipped when the offer is gone.
func (a *Arbitrator) withEntry(tenantID, offerID string, fn func(e *offerEntry)) {
	b := a.book(tenantID, false)
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.offers[offerID]; ok {
		fn(e)
	}
}

func (a *Arbitrator) lookup(tenantID, offerID string) (offerEntry, error) {
	var (
		cp    offerEntry
		found bool
	)
	a.withEntry(tenantID, offerID, func(e *offerEntry) {
		cp = *e
		found = true
	})
	if !found {
		return offerEntry{}, fmt.Errorf("%w: %s", ErrOfferNotFound, offerID)
	}
	cp.consoled = nil
	cp.gemmed = nil
	return cp, nil
}

func (a *Arbitrator) markExpired(tenantID, offerID string) {
	a.withEntry(tenantID, offerID, func(e *offerEntry) {
		if e.State == StateOpen {
			e.State = StateExpired
			e.closedAt = e.ExpiresAt
		}
	})
}

// Claim resolves one claim attempt. The deadline is checked after the tenant
// exclusion is acquired, so a request that queued behind others can still
// observe expiry.
func (a *Arbitrator) Claim(ctx context.Context, tenantID, playerID, offerID string) (Result, error) {
	tx, err := a.reg.Begin(ctx, tenantID)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback()

	now := a.now()
	offer, err := a.lookup(tenantID, offerID)
	if err != nil {
		return Result{}, err
	}
	res := Result{OfferID: offer.ID, CardName: offer.CardName}
	if !offer.live(now) {
		a.markExpired(tenantID, offerID)
		metricClaimsExpired.Add(1)
		res.Outcome = OutcomeExpired
		return res, nil
	}

	snap := tx.Snapshot
	card, ok := snap.Card(offer.CardName)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", economy.ErrCardNotFound, offer.CardName)
	}
	p, _ := snap.EnsurePlayer(playerID, now)
	if card.ClaimedBy == playerID {
		return Result{}, fmt.Errorf("%w: %s", economy.ErrAlreadyOwned, card.Name)
	}
	if err := a.sched.Check(p, allowance.Claims, now); err != nil {
		return Result{}, err
	}

	led := ledger.New(tenantID)
	consoled := false
	if offer.State == StateOpen && !card.Claimed() {
		if err := snap.Assign(card.Name, playerID); err != nil {
			return Result{}, err
		}
		if err := a.sched.Consume(p, allowance.Claims, now); err != nil {
			return Result{}, err
		}
		res.Outcome = OutcomeWon
		res.Owner = playerID
	} else {
		res.Outcome = OutcomeLostToOther
		res.Owner = offer.WinnerID
		if res.Owner == "" {
			res.Owner = card.ClaimedBy
		}
		if offer.Claimable && a.consolation > 0 && !a.wasConsoled(tenantID, offerID, playerID) {
			led.CreditConsolation(p, offerID, a.consolation)
			res.Payout = a.consolation
			consoled = true
		}
		if a.chargeAttempts {
			if err := a.sched.Consume(p, allowance.Claims, now); err != nil {
				return Result{}, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}
	led.Flush()

	a.withEntry(tenantID, offerID, func(e *offerEntry) {
		if res.Outcome == OutcomeWon {
			e.State = StateClaimedFirst
			e.WinnerID = playerID
		}
		if consoled {
			e.consoled[playerID] = true
		}
	})

	res.Coins = p.Coins
	res.ClaimsRemaining = p.Claims.Remaining
	tx.Rollback()

	if res.Outcome == OutcomeWon {
		metricClaimsWon.Add(1)
		log.Info().Str("tenant_id", tenantID).Str("player_id", playerID).Str("offer_id", offerID).Str("card", card.Name).Msg("card claimed")
		a.notifier.Notify(ctx, notify.Event{
			Kind:      notify.KindCardClaimed,
			TenantID:  tenantID,
			ChannelID: offer.ChannelID,
			OfferID:   offerID,
			From:      playerID,
			Offered:   []string{card.Name},
			At:        now,
		})
	} else {
		metricClaimsLost.Add(1)
	}
	return res, nil
}

func (a *Arbitrator) wasConsoled(tenantID, offerID, playerID string) (consoled bool) {
	a.withEntry(tenantID, offerID, func(e *offerEntry) { consoled = e.consoled[playerID] })
	return consoled
}

// CollectGems pays the value of an already-owned card once per player per
// offer, gated by the gems allowance.
func (a *Arbitrator) CollectGems(ctx context.Context, tenantID, playerID, offerID string) (GemResult, error) {
	tx, err := a.reg.Begin(ctx, tenantID)
	if err != nil {
		return GemResult{}, err
	}
	defer tx.Rollback()

	now := a.now()
	offer, err := a.lookup(tenantID, offerID)
	if err != nil {
		return GemResult{}, err
	}
	if !offer.live(now) {
		a.markExpired(tenantID, offerID)
		return GemResult{}, fmt.Errorf("%w: %s", ErrOfferExpired, offerID)
	}
	snap := tx.Snapshot
	card, ok := snap.Card(offer.CardName)
	if !ok {
		return GemResult{}, fmt.Errorf("%w: %s", economy.ErrCardNotFound, offer.CardName)
	}
	if !card.Claimed() {
		return GemResult{}, fmt.Errorf("%w: %s is unclaimed", ErrNothingToCollect, card.Name)
	}
	already := false
	a.withEntry(tenantID, offerID, func(e *offerEntry) { already = e.gemmed[playerID] })
	if already {
		return GemResult{}, fmt.Errorf("%w: %s", ErrAlreadyCollected, offerID)
	}

	p, _ := snap.EnsurePlayer(playerID, now)
	if err := a.sched.CheckAndConsume(p, allowance.Gems, now); err != nil {
		return GemResult{}, err
	}
	led := ledger.New(tenantID)
	led.CreditGems(p, offerID, card.Value)
	if err := tx.Commit(ctx); err != nil {
		return GemResult{}, err
	}
	led.Flush()

	a.withEntry(tenantID, offerID, func(e *offerEntry) { e.gemmed[playerID] = true })
	metricGemsCollected.Add(1)

	return GemResult{
		OfferID:       offerID,
		CardName:      card.Name,
		Payout:        card.Value,
		Coins:         p.Coins,
		GemsRemaining: p.Gems.Remaining,
	}, nil
}
