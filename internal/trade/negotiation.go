package trade

import (
	"errors"
	"time"
)

type State string

const (
	StateAwaitingCounterOffer State = "awaiting_counter_offer"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateCompleted            State = "completed"
	StateCancelled            State = "cancelled"
	StateTimedOut             State = "timed_out"
)

const (
	ReasonDeclined         = "declined"
	ReasonWithdrawn        = "withdrawn"
	ReasonOwnershipChanged = "ownership_changed"
	ReasonTimeout          = "timeout"
)

var (
	ErrNotFound        = errors.New("trade_not_found")
	ErrNotParticipant  = errors.New("not_trade_participant")
	ErrInvalidState    = errors.New("invalid_trade_state")
	ErrInProgress      = errors.New("trade_in_progress")
	ErrInvalidProposal = errors.New("invalid_trade_proposal")
	ErrTimedOut        = errors.New("trade_timed_out")

	errOwnershipChanged = errors.New("ownership changed")
)

// Negotiation is a value snapshot of one two-party trade handshake.
type Negotiation struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChannelID string    `json:"channel_id,omitempty"`
	Offered   []string  `json:"offered"`
	Requested []string  `json:"requested"`
	State     State     `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	Deadline  time.Time `json:"deadline"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (n Negotiation) Terminal() bool {
	switch n.State {
	case StateCompleted, StateCancelled, StateTimedOut:
		return true
	}
	return false
}

type negotiation struct {
	Negotiation
	committing bool
	changed    chan struct{}
	closedAt   time.Time
}

func (n *negotiation) view() Negotiation {
	out := n.Negotiation
	out.Offered = append([]string(nil), n.Offered...)
	out.Requested = append([]string(nil), n.Requested...)
	return out
}

// signal wakes every Wait caller blocked on the previous state.
func (n *negotiation) signal() {
	close(n.changed)
	n.changed = make(chan struct{})
}
