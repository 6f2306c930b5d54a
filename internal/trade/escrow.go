package trade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"card-gacha/internal/config"
	"card-gacha/internal/economy"
	"card-gacha/internal/notify"
	"card-gacha/internal/store"
	"card-gacha/internal/tenant"

	"github.com/rs/zerolog/log"
)

// Escrow runs trade handshakes. Negotiations live in memory only; ownership
// changes happen in a single tenant transaction at confirmation.
type Escrow struct {
	reg      *tenant.Registry
	notifier notify.Notifier
	now      func() time.Time

	timeout   time.Duration
	retention time.Duration

	mu    sync.Mutex
	books map[string]*tradeBook
}

// tradeBook holds one tenant's negotiations under that tenant's own lock.
// active maps a from/to/channel key to the live negotiation there.
type tradeBook struct {
	mu     sync.Mutex
	trades map[string]*negotiation
	active map[string]string
}

type Option func(*Escrow)

func WithNotifier(n notify.Notifier) Option {
	return func(e *Escrow) { e.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(e *Escrow) { e.now = now }
}

func New(reg *tenant.Registry, cfg config.EconomyConfig, opts ...Option) *Escrow {
	e := &Escrow{
		reg:       reg,
		notifier:  notify.Nop{},
		now:       time.Now,
		timeout:   cfg.TradeTimeout,
		retention: cfg.TradeRetention,
		books:     make(map[string]*tradeBook),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Escrow) book(tenantID string) *tradeBook {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.books[tenantID]
	if !ok {
		b = &tradeBook{trades: make(map[string]*negotiation), active: make(map[string]string)}
		e.books[tenantID] = b
	}
	return b
}

// existing returns the tenant's book without creating one, so lookups of
// unknown tenants leave nothing behind.
func (e *Escrow) existing(tenantID, id string) (*tradeBook, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.books[tenantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return b, nil
}

func (e *Escrow) allBooks() []*tradeBook {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*tradeBook, 0, len(e.books))
	for _, b := range e.books {
		out = append(out, b)
	}
	return out
}

func activeKey(from, to, channelID string) string {
	return strings.Join([]string{from, to, channelID}, "\x00")
}

func normalizeCards(cards []string) ([]string, error) {
	if len(cards) == 0 {
		return nil, fmt.Errorf("%w: at least one card is required", ErrInvalidProposal)
	}
	seen := make(map[string]bool, len(cards))
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		key := economy.NameKey(c)
		if key == "" {
			return nil, fmt.Errorf("%w: blank card name", ErrInvalidProposal)
		}
		if seen[key] {
			return nil, fmt.Errorf("%w: %s named twice", ErrInvalidProposal, c)
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(c))
	}
	return out, nil
}

// verifyOwnership checks that owner holds every card and returns the
// canonical card names.
func (e *Escrow) verifyOwnership(ctx context.Context, tenantID, owner string, cards []string) ([]string, error) {
	out := make([]string, 0, len(cards))
	err := e.reg.View(ctx, tenantID, func(s *economy.Snapshot) error {
		for _, name := range cards {
			c, ok := s.Card(name)
			if !ok {
				return fmt.Errorf("%w: %s", economy.ErrCardNotFound, name)
			}
			if c.ClaimedBy != owner {
				return fmt.Errorf("%w: %s", economy.ErrNotOwned, c.Name)
			}
			out = append(out, c.Name)
		}
		return nil
	})
	return out, err
}

// Propose opens a negotiation in which from offers cards to to.
func (e *Escrow) Propose(ctx context.Context, tenantID, from, to, channelID string, cards []string) (Negotiation, error) {
	if from == "" || to == "" || from == to {
		return Negotiation{}, fmt.Errorf("%w: a trade needs two distinct players", ErrInvalidProposal)
	}
	cards, err := normalizeCards(cards)
	if err != nil {
		return Negotiation{}, err
	}
	cards, err = e.verifyOwnership(ctx, tenantID, from, cards)
	if err != nil {
		return Negotiation{}, err
	}

	now := e.now().UTC()
	key := activeKey(from, to, channelID)
	var timedOut []Negotiation

	b := e.book(tenantID)
	b.mu.Lock()
	if id, ok := b.active[key]; ok {
		if prev := b.trades[id]; prev != nil {
			if b.timeoutLocked(prev, now) {
				timedOut = append(timedOut, prev.view())
			} else if !prev.Terminal() {
				b.mu.Unlock()
				return Negotiation{}, fmt.Errorf("%w: %s", ErrInProgress, id)
			}
		}
	}
	n := &negotiation{
		Negotiation: Negotiation{
			ID:        store.NewID("trd_"),
			TenantID:  tenantID,
			From:      from,
			To:        to,
			ChannelID: channelID,
			Offered:   cards,
			State:     StateAwaitingCounterOffer,
			Deadline:  now.Add(e.timeout),
			CreatedAt: now,
			UpdatedAt: now,
		},
		changed: make(chan struct{}),
	}
	b.trades[n.ID] = n
	b.active[key] = n.ID
	out := n.view()
	b.mu.Unlock()

	e.emitTimeouts(ctx, timedOut)
	metricProposed.Add(1)
	log.Info().Str("tenant_id", tenantID).Str("trade_id", out.ID).Str("from", from).Str("to", to).Strs("offered", out.Offered).Msg("trade proposed")
	e.emit(ctx, notify.KindTradeProposed, out)
	return out, nil
}

// lookupLocked returns the negotiation after applying a lazy timeout.
func (b *tradeBook) lookupLocked(id string, now time.Time) (*negotiation, bool, error) {
	n, ok := b.trades[id]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return n, b.timeoutLocked(n, now), nil
}

// Counter records the counterparty's side of the trade.
func (e *Escrow) Counter(ctx context.Context, tenantID, id, player string, cards []string) (Negotiation, error) {
	now := e.now().UTC()
	b, err := e.existing(tenantID, id)
	if err != nil {
		return Negotiation{}, err
	}
	b.mu.Lock()
	n, timedOut, err := b.lookupLocked(id, now)
	if err == nil {
		err = checkStep(n, player, n.To, StateAwaitingCounterOffer)
	}
	var to string
	if err == nil {
		to = n.To
	}
	snap := e.viewIf(n)
	b.mu.Unlock()
	if timedOut {
		e.emitTimeouts(ctx, []Negotiation{snap})
	}
	if err != nil {
		return Negotiation{}, err
	}

	cards, err = normalizeCards(cards)
	if err != nil {
		return Negotiation{}, err
	}
	cards, err = e.verifyOwnership(ctx, tenantID, to, cards)
	if err != nil {
		return Negotiation{}, err
	}

	now = e.now().UTC()
	b.mu.Lock()
	timedOut = b.timeoutLocked(n, now)
	if err := checkStep(n, player, n.To, StateAwaitingCounterOffer); err != nil {
		snap := n.view()
		b.mu.Unlock()
		if timedOut {
			e.emitTimeouts(ctx, []Negotiation{snap})
		}
		return Negotiation{}, err
	}
	n.Requested = cards
	n.State = StateAwaitingConfirmation
	n.Deadline = now.Add(e.timeout)
	n.UpdatedAt = now
	n.signal()
	out := n.view()
	b.mu.Unlock()

	log.Info().Str("tenant_id", tenantID).Str("trade_id", id).Strs("requested", cards).Msg("trade countered")
	e.emit(ctx, notify.KindTradeCountered, out)
	return out, nil
}

func (e *Escrow) viewIf(n *negotiation) Negotiation {
	if n == nil {
		return Negotiation{}
	}
	return n.view()
}

func checkStep(n *negotiation, player, actor string, want State) error {
	if player != n.From && player != n.To {
		return fmt.Errorf("%w: %s", ErrNotParticipant, player)
	}
	if n.State == StateTimedOut {
		return fmt.Errorf("%w: %s", ErrTimedOut, n.ID)
	}
	if n.State != want {
		return fmt.Errorf("%w: trade is %s", ErrInvalidState, n.State)
	}
	if player != actor {
		return fmt.Errorf("%w: %s cannot act on this step", ErrNotParticipant, player)
	}
	if n.committing {
		return fmt.Errorf("%w: %s", ErrInProgress, n.ID)
	}
	return nil
}

// Confirm lets the initiator accept or decline the counter-offer. Accepting
// re-validates every card and swaps them all in one tenant transaction; any
// card that changed hands cancels the whole trade.
func (e *Escrow) Confirm(ctx context.Context, tenantID, id, player string, accept bool) (Negotiation, error) {
	now := e.now().UTC()
	b, err := e.existing(tenantID, id)
	if err != nil {
		return Negotiation{}, err
	}
	b.mu.Lock()
	n, timedOut, err := b.lookupLocked(id, now)
	if err == nil {
		err = checkStep(n, player, n.From, StateAwaitingConfirmation)
	}
	if err != nil {
		snap := e.viewIf(n)
		b.mu.Unlock()
		if timedOut {
			e.emitTimeouts(ctx, []Negotiation{snap})
		}
		return Negotiation{}, err
	}
	if !accept {
		b.finishLocked(n, StateCancelled, ReasonDeclined, now)
		out := n.view()
		b.mu.Unlock()
		e.emit(ctx, notify.KindTradeCancelled, out)
		return out, nil
	}
	n.committing = true
	from, to := n.From, n.To
	offered := append([]string(nil), n.Offered...)
	requested := append([]string(nil), n.Requested...)
	b.mu.Unlock()

	err = e.reg.Update(ctx, tenantID, func(s *economy.Snapshot) error {
		for _, name := range offered {
			if !s.OwnedBy(name, from) {
				return errOwnershipChanged
			}
		}
		for _, name := range requested {
			if !s.OwnedBy(name, to) {
				return errOwnershipChanged
			}
		}
		for _, name := range offered {
			if err := s.Transfer(name, from, to); err != nil {
				return err
			}
		}
		for _, name := range requested {
			if err := s.Transfer(name, to, from); err != nil {
				return err
			}
		}
		return nil
	})

	now = e.now().UTC()
	b.mu.Lock()
	n.committing = false
	switch {
	case errors.Is(err, errOwnershipChanged):
		b.finishLocked(n, StateCancelled, ReasonOwnershipChanged, now)
	case err != nil:
		n.UpdatedAt = now
		b.mu.Unlock()
		log.Error().Err(err).Str("tenant_id", tenantID).Str("trade_id", id).Msg("trade commit failed")
		return Negotiation{}, err
	default:
		b.finishLocked(n, StateCompleted, "", now)
	}
	out := n.view()
	b.mu.Unlock()

	kind := notify.KindTradeCompleted
	if out.State == StateCancelled {
		kind = notify.KindTradeCancelled
	}
	log.Info().Str("tenant_id", tenantID).Str("trade_id", id).Str("state", string(out.State)).Str("reason", out.Reason).Msg("trade resolved")
	e.emit(ctx, kind, out)
	return out, nil
}

// Cancel withdraws a negotiation at any non-terminal step. Either party may
// cancel, except while the swap is being committed.
func (e *Escrow) Cancel(ctx context.Context, tenantID, id, player string) (Negotiation, error) {
	now := e.now().UTC()
	b, err := e.existing(tenantID, id)
	if err != nil {
		return Negotiation{}, err
	}
	b.mu.Lock()
	n, timedOut, err := b.lookupLocked(id, now)
	if err == nil {
		switch {
		case player != n.From && player != n.To:
			err = fmt.Errorf("%w: %s", ErrNotParticipant, player)
		case n.State == StateTimedOut:
			err = fmt.Errorf("%w: %s", ErrTimedOut, id)
		case n.Terminal():
			err = fmt.Errorf("%w: trade is %s", ErrInvalidState, n.State)
		case n.committing:
			err = fmt.Errorf("%w: %s", ErrInProgress, id)
		}
	}
	if err != nil {
		snap := e.viewIf(n)
		b.mu.Unlock()
		if timedOut {
			e.emitTimeouts(ctx, []Negotiation{snap})
		}
		return Negotiation{}, err
	}
	b.finishLocked(n, StateCancelled, ReasonWithdrawn, now)
	out := n.view()
	b.mu.Unlock()
	e.emit(ctx, notify.KindTradeCancelled, out)
	return out, nil
}

func (e *Escrow) Get(ctx context.Context, tenantID, id string) (Negotiation, error) {
	b, err := e.existing(tenantID, id)
	if err != nil {
		return Negotiation{}, err
	}
	b.mu.Lock()
	n, timedOut, err := b.lookupLocked(id, e.now().UTC())
	if err != nil {
		b.mu.Unlock()
		return Negotiation{}, err
	}
	out := n.view()
	b.mu.Unlock()
	if timedOut {
		e.emitTimeouts(ctx, []Negotiation{out})
	}
	return out, nil
}

// Wait blocks until the negotiation changes state, reaches its deadline or
// ctx ends, and returns the negotiation as observed then.
func (e *Escrow) Wait(ctx context.Context, tenantID, id string) (Negotiation, error) {
	b, err := e.existing(tenantID, id)
	if err != nil {
		return Negotiation{}, err
	}
	b.mu.Lock()
	n, timedOut, err := b.lookupLocked(id, e.now().UTC())
	if err != nil {
		b.mu.Unlock()
		return Negotiation{}, err
	}
	if n.Terminal() {
		out := n.view()
		b.mu.Unlock()
		if timedOut {
			e.emitTimeouts(ctx, []Negotiation{out})
		}
		return out, nil
	}
	changed := n.changed
	wait := n.Deadline.Sub(e.now())
	b.mu.Unlock()

	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Negotiation{}, ctx.Err()
	case <-changed:
	case <-timer.C:
	}
	return e.Get(ctx, tenantID, id)
}

// timeoutLocked moves a lapsed negotiation to timed_out. A negotiation whose
// swap is being committed is left alone.
func (b *tradeBook) timeoutLocked(n *negotiation, now time.Time) bool {
	if n.Terminal() || n.committing || now.Before(n.Deadline) {
		return false
	}
	b.finishLocked(n, StateTimedOut, ReasonTimeout, now)
	return true
}

func (b *tradeBook) finishLocked(n *negotiation, state State, reason string, now time.Time) {
	n.State = state
	n.Reason = reason
	n.UpdatedAt = now
	n.closedAt = now
	n.signal()
	key := activeKey(n.From, n.To, n.ChannelID)
	if b.active[key] == n.ID {
		delete(b.active, key)
	}
	switch state {
	case StateCompleted:
		metricCompleted.Add(1)
	case StateCancelled:
		metricCancelled.Add(1)
	case StateTimedOut:
		metricTimedOut.Add(1)
	}
}

func (e *Escrow) emitTimeouts(ctx context.Context, timedOut []Negotiation) {
	for _, n := range timedOut {
		log.Info().Str("tenant_id", n.TenantID).Str("trade_id", n.ID).Msg("trade timed out")
		e.emit(ctx, notify.KindTradeTimedOut, n)
	}
}

func (e *Escrow) emit(ctx context.Context, kind notify.Kind, n Negotiation) {
	e.notifier.Notify(ctx, notify.Event{
		Kind:      kind,
		TenantID:  n.TenantID,
		ChannelID: n.ChannelID,
		TradeID:   n.ID,
		From:      n.From,
		To:        n.To,
		Offered:   n.Offered,
		Requested: n.Requested,
		Reason:    n.Reason,
		At:        n.UpdatedAt,
	})
}
