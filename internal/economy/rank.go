package economy

import (
	"fmt"
	"strings"
)

// Rank orders cards from rarest (SS) to most common (E).
type Rank int

const (
	RankSS Rank = iota
	RankS
	RankA
	RankB
	RankC
	RankD
	RankE
)

const NumRanks = 7

var rankNames = [NumRanks]string{"SS", "S", "A", "B", "C", "D", "E"}

func Ranks() []Rank {
	return []Rank{RankSS, RankS, RankA, RankB, RankC, RankD, RankE}
}

func (r Rank) Valid() bool {
	return r >= RankSS && r <= RankE
}

func (r Rank) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Rank(%d)", int(r))
	}
	return rankNames[r]
}

func ParseRank(s string) (Rank, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range rankNames {
		if name == v {
			return Rank(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown rank %q", ErrInvalidCard, s)
}

func (r Rank) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: rank %d", ErrInvalidCard, int(r))
	}
	return []byte(rankNames[r]), nil
}

func (r *Rank) UnmarshalText(b []byte) error {
	parsed, err := ParseRank(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
