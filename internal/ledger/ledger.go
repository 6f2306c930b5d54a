package ledger

import (
	"fmt"

	"card-gacha/internal/economy"

	"github.com/rs/zerolog/log"
)

type EntryType string

const (
	EntryDivorceCredit     EntryType = "divorce_credit"
	EntryConsolationCredit EntryType = "consolation_credit"
	EntryGemCredit         EntryType = "gem_credit"
	EntryLuckDebit         EntryType = "luck_debit"
)

type Entry struct {
	PlayerID string
	Type     EntryType
	Amount   int64
	Balance  int64
	RefType  string
	RefID    string
}

// Ledger journals coin movements made inside one tenant transaction. Entries
// are only logged by Flush, after the transaction has committed.
type Ledger struct {
	tenantID string
	entries  []Entry
}

func New(tenantID string) *Ledger {
	return &Ledger{tenantID: tenantID}
}

func (l *Ledger) CreditDivorce(p *economy.Player, cardName string, amount int64) int64 {
	return l.credit(p, amount, EntryDivorceCredit, "card", cardName)
}

func (l *Ledger) CreditConsolation(p *economy.Player, offerID string, amount int64) int64 {
	return l.credit(p, amount, EntryConsolationCredit, "offer", offerID)
}

func (l *Ledger) CreditGems(p *economy.Player, offerID string, amount int64) int64 {
	return l.credit(p, amount, EntryGemCredit, "offer", offerID)
}

func (l *Ledger) DebitLuck(p *economy.Player, purchase int, amount int64) (int64, error) {
	return l.debit(p, amount, EntryLuckDebit, "luck_purchase", fmt.Sprint(purchase))
}

func (l *Ledger) credit(p *economy.Player, amount int64, typ EntryType, refType, refID string) int64 {
	if amount <= 0 {
		return p.Coins
	}
	p.Coins += amount
	l.entries = append(l.entries, Entry{PlayerID: p.ID, Type: typ, Amount: amount, Balance: p.Coins, RefType: refType, RefID: refID})
	return p.Coins
}

func (l *Ledger) debit(p *economy.Player, amount int64, typ EntryType, refType, refID string) (int64, error) {
	if amount < 0 {
		return p.Coins, fmt.Errorf("negative debit %d", amount)
	}
	if p.Coins < amount {
		return p.Coins, fmt.Errorf("%w: have %d, need %d", economy.ErrInsufficientFunds, p.Coins, amount)
	}
	p.Coins -= amount
	l.entries = append(l.entries, Entry{PlayerID: p.ID, Type: typ, Amount: -amount, Balance: p.Coins, RefType: refType, RefID: refID})
	return p.Coins, nil
}

func (l *Ledger) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

// Flush logs and counts committed entries, then clears the journal.
func (l *Ledger) Flush() {
	for _, e := range l.entries {
		metricEntries.Add(string(e.Type), 1)
		metricVolume.Add(string(e.Type), abs(e.Amount))
		log.Info().
			Str("tenant_id", l.tenantID).
			Str("player_id", e.PlayerID).
			Str("entry_type", string(e.Type)).
			Int64("amount", e.Amount).
			Int64("balance", e.Balance).
			Str("ref_type", e.RefType).
			Str("ref_id", e.RefID).
			Msg("ledger entry")
	}
	l.entries = nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
