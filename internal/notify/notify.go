package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

type Kind string

const (
	KindCardClaimed    Kind = "card_claimed"
	KindTradeProposed  Kind = "trade_proposed"
	KindTradeCountered Kind = "trade_countered"
	KindTradeCompleted Kind = "trade_completed"
	KindTradeCancelled Kind = "trade_cancelled"
	KindTradeTimedOut  Kind = "trade_timed_out"
)

// Event is a player-visible state change delivered to the chat shell.
type Event struct {
	Kind      Kind      `json:"kind"`
	TenantID  string    `json:"tenant_id"`
	ChannelID string    `json:"channel_id,omitempty"`
	OfferID   string    `json:"offer_id,omitempty"`
	TradeID   string    `json:"trade_id,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Offered   []string  `json:"offered,omitempty"`
	Requested []string  `json:"requested,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier must not block the caller for long; engine code calls it while
// holding no locks but on the request path.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// LogNotifier writes every event to the application log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, ev Event) {
	log.Info().
		Str("kind", string(ev.Kind)).
		Str("tenant_id", ev.TenantID).
		Str("channel_id", ev.ChannelID).
		Str("trade_id", ev.TradeID).
		Str("offer_id", ev.OfferID).
		Str("from", ev.From).
		Str("to", ev.To).
		Strs("offered", ev.Offered).
		Strs("requested", ev.Requested).
		Str("reason", ev.Reason).
		Msg("economy event")
}

// Multi fans an event out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) {
	for _, n := range m {
		n.Notify(ctx, ev)
	}
}
