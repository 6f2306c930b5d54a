package economy

import (
	"fmt"
	"sort"
	"time"
)

// Snapshot is the complete economy state of one tenant: the card catalog in
// insertion order, ownership lists keyed by player, and player records.
type Snapshot struct {
	cards   []*Card
	byName  map[string]int
	owned   map[string][]string
	players map[string]*Player
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		byName:  make(map[string]int),
		owned:   make(map[string][]string),
		players: make(map[string]*Player),
	}
}

func (s *Snapshot) Empty() bool {
	return len(s.cards) == 0 && len(s.players) == 0
}

// Cards returns the catalog in insertion order. Callers must not modify the
// returned cards outside a transaction.
func (s *Snapshot) Cards() []*Card {
	return s.cards
}

func (s *Snapshot) Card(name string) (*Card, bool) {
	i, ok := s.byName[NameKey(name)]
	if !ok {
		return nil, false
	}
	return s.cards[i], true
}

// AddCard appends a card to the catalog. A card loaded with ClaimedBy set must
// be paired with a matching SetOwned call before CheckInvariants passes.
func (s *Snapshot) AddCard(c Card) (*Card, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	key := NameKey(c.Name)
	if _, exists := s.byName[key]; exists {
		return nil, fmt.Errorf("%w: %s", ErrCardExists, c.Name)
	}
	card := c.clone()
	s.byName[key] = len(s.cards)
	s.cards = append(s.cards, card)
	return card, nil
}

// CardsOfRank returns the catalog's cards of one rank in catalog order.
func (s *Snapshot) CardsOfRank(r Rank) []*Card {
	var out []*Card
	for _, c := range s.cards {
		if c.Rank == r {
			out = append(out, c)
		}
	}
	return out
}

func (s *Snapshot) Player(id string) (*Player, bool) {
	p, ok := s.players[id]
	return p, ok
}

// EnsurePlayer returns the player record, creating it on first reference.
func (s *Snapshot) EnsurePlayer(id string, now time.Time) (*Player, bool) {
	if p, ok := s.players[id]; ok {
		return p, false
	}
	p := NewPlayer(id, now)
	s.players[id] = p
	return p, true
}

// PutPlayer stores a fully formed player record, replacing any existing one.
func (s *Snapshot) PutPlayer(p *Player) {
	s.players[p.ID] = p
}

// Players returns player ids in sorted order.
func (s *Snapshot) Players() []string {
	ids := make([]string, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Owned returns a copy of the player's card names in acquisition order.
func (s *Snapshot) Owned(playerID string) []string {
	return append([]string(nil), s.owned[playerID]...)
}

// Owners returns ids of players with a non-empty ownership list, sorted.
func (s *Snapshot) Owners() []string {
	ids := make([]string, 0, len(s.owned))
	for id, names := range s.owned {
		if len(names) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// SetOwned replaces a player's ownership list. Used when restoring from storage.
func (s *Snapshot) SetOwned(playerID string, names []string) {
	if len(names) == 0 {
		delete(s.owned, playerID)
		return
	}
	s.owned[playerID] = append([]string(nil), names...)
}

// OwnedBy reports whether playerID currently owns the named card.
func (s *Snapshot) OwnedBy(name, playerID string) bool {
	c, ok := s.Card(name)
	return ok && c.ClaimedBy == playerID && playerID != ""
}

// Assign gives an unclaimed card to playerID.
func (s *Snapshot) Assign(name, playerID string) error {
	c, ok := s.Card(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrCardNotFound, name)
	}
	if c.ClaimedBy != "" {
		return fmt.Errorf("%w: %s", ErrAlreadyClaimed, c.Name)
	}
	c.ClaimedBy = playerID
	s.owned[playerID] = append(s.owned[playerID], c.Name)
	return nil
}

// Release returns a card owned by playerID to the open pool.
func (s *Snapshot) Release(name, playerID string) (*Card, error) {
	c, ok := s.Card(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCardNotFound, name)
	}
	if c.ClaimedBy != playerID || playerID == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotOwned, c.Name)
	}
	c.ClaimedBy = ""
	names := s.owned[playerID]
	for i, n := range names {
		if n == c.Name {
			names = append(names[:i], names[i+1:]...)
			break
		}
	}
	if len(names) == 0 {
		delete(s.owned, playerID)
	} else {
		s.owned[playerID] = names
	}
	return c, nil
}

// Transfer moves a card from one owner to another.
func (s *Snapshot) Transfer(name, from, to string) error {
	c, err := s.Release(name, from)
	if err != nil {
		return err
	}
	return s.Assign(c.Name, to)
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		cards:   make([]*Card, len(s.cards)),
		byName:  make(map[string]int, len(s.byName)),
		owned:   make(map[string][]string, len(s.owned)),
		players: make(map[string]*Player, len(s.players)),
	}
	for i, c := range s.cards {
		out.cards[i] = c.clone()
	}
	for k, v := range s.byName {
		out.byName[k] = v
	}
	for k, v := range s.owned {
		out.owned[k] = append([]string(nil), v...)
	}
	for k, v := range s.players {
		out.players[k] = v.Clone()
	}
	return out
}

// CheckInvariants verifies that every claimed card appears in exactly its
// owner's list, unclaimed cards appear in none, and balances are non-negative.
func (s *Snapshot) CheckInvariants() error {
	seen := make(map[string]string, len(s.cards))
	for owner, names := range s.owned {
		for _, n := range names {
			c, ok := s.Card(n)
			if !ok {
				return fmt.Errorf("%w: %s owns unknown card %q", ErrInconsistent, owner, n)
			}
			if prev, dup := seen[NameKey(n)]; dup {
				return fmt.Errorf("%w: card %q listed for %s and %s", ErrInconsistent, n, prev, owner)
			}
			seen[NameKey(n)] = owner
			if c.ClaimedBy != owner {
				return fmt.Errorf("%w: card %q listed for %s but claimed by %q", ErrInconsistent, n, owner, c.ClaimedBy)
			}
		}
	}
	for _, c := range s.cards {
		if c.ClaimedBy != "" {
			if _, ok := seen[NameKey(c.Name)]; !ok {
				return fmt.Errorf("%w: card %q claimed by %s but not listed", ErrInconsistent, c.Name, c.ClaimedBy)
			}
		}
	}
	for id, p := range s.players {
		if p.Coins < 0 {
			return fmt.Errorf("%w: player %s has negative balance", ErrInconsistent, id)
		}
		for _, a := range []Allowance{p.Rolls, p.Claims, p.Gems} {
			if a.Remaining < 0 {
				return fmt.Errorf("%w: player %s has negative allowance", ErrInconsistent, id)
			}
		}
	}
	return nil
}
