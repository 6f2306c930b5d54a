package claim

import (
	"errors"
	"time"
)

type State string

const (
	StateOpen         State = "open"
	StateClaimedFirst State = "claimed_first"
	StateExpired      State = "expired"
	StateSuperseded   State = "superseded"
)

type Outcome string

const (
	OutcomeWon         Outcome = "won"
	OutcomeLostToOther Outcome = "lost_to_other"
	OutcomeExpired     Outcome = "expired"
)

var (
	ErrOfferNotFound    = errors.New("offer_not_found")
	ErrOfferExpired     = errors.New("offer_expired")
	ErrNothingToCollect = errors.New("no_gems")
	ErrAlreadyCollected = errors.New("gems_already_collected")
)

// Offer is a drawn card displayed in a channel with a claim window.
// Claimable is false when the card already had an owner at roll time; such
// offers only pay gems.
type Offer struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	ChannelID string    `json:"channel_id,omitempty"`
	CardName  string    `json:"card_name"`
	RolledBy  string    `json:"rolled_by"`
	Claimable bool      `json:"claimable"`
	State     State     `json:"state"`
	WinnerID  string    `json:"winner_id,omitempty"`
	OpenedAt  time.Time `json:"opened_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Result is the resolution of one claim attempt.
type Result struct {
	Outcome         Outcome `json:"outcome"`
	OfferID         string  `json:"offer_id"`
	CardName        string  `json:"card_name"`
	Owner           string  `json:"owner,omitempty"`
	Payout          int64   `json:"payout"`
	Coins           int64   `json:"coins"`
	ClaimsRemaining int     `json:"claims_remaining"`
}

type GemResult struct {
	OfferID       string `json:"offer_id"`
	CardName      string `json:"card_name"`
	Payout        int64  `json:"payout"`
	Coins         int64  `json:"coins"`
	GemsRemaining int    `json:"gems_remaining"`
}

type offerEntry struct {
	Offer
	consoled map[string]bool
	gemmed   map[string]bool
	closedAt time.Time
}

// live reports whether the offer still accepts claims at now.
func (e *offerEntry) live(now time.Time) bool {
	return (e.State == StateOpen || e.State == StateClaimedFirst) && now.Before(e.ExpiresAt)
}

// view returns the offer as observed at now, with a lapsed window reported
// as expired even before the janitor has run.
func (e *offerEntry) view(now time.Time) Offer {
	out := e.Offer
	if out.State == StateOpen && !now.Before(out.ExpiresAt) {
		out.State = StateExpired
	}
	return out
}
