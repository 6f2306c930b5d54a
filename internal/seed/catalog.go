package seed

import (
	"errors"
	"fmt"
	"os"

	"card-gacha/internal/economy"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

// CardEntry is one [[cards]] table of a catalog file.
type CardEntry struct {
	Name        string   `toml:"name"`
	Rank        string   `toml:"rank"`
	Value       int64    `toml:"value"`
	Description string   `toml:"description"`
	Images      []string `toml:"images"`
}

type Catalog struct {
	Cards []CardEntry `toml:"cards"`
}

// Load reads a TOML catalog. Every entry is validated before anything is
// returned, so a bad file never half-seeds a tenant.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := toml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	seen := make(map[string]bool, len(cat.Cards))
	for i, e := range cat.Cards {
		c, err := e.card()
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		key := economy.NameKey(c.Name)
		if seen[key] {
			return nil, fmt.Errorf("catalog entry %d: %w: %s", i, economy.ErrCardExists, c.Name)
		}
		seen[key] = true
	}
	return &cat, nil
}

func (e CardEntry) card() (economy.Card, error) {
	rank, err := economy.ParseRank(e.Rank)
	if err != nil {
		return economy.Card{}, err
	}
	c := economy.Card{
		Name:        e.Name,
		Rank:        rank,
		Value:       e.Value,
		Description: e.Description,
		Images:      e.Images,
	}
	return c, c.Validate()
}

// Apply adds every catalog card missing from snap and returns how many were
// added. Existing cards are left untouched.
func (c *Catalog) Apply(snap *economy.Snapshot) (int, error) {
	added := 0
	for _, e := range c.Cards {
		card, err := e.card()
		if err != nil {
			return added, err
		}
		if _, exists := snap.Card(card.Name); exists {
			continue
		}
		if _, err := snap.AddCard(card); err != nil {
			if errors.Is(err, economy.ErrCardExists) {
				continue
			}
			return added, err
		}
		added++
	}
	return added, nil
}

// Initializer adapts the catalog to tenant.Initializer.
func (c *Catalog) Initializer() func(tenantID string, snap *economy.Snapshot) (bool, error) {
	return func(tenantID string, snap *economy.Snapshot) (bool, error) {
		n, err := c.Apply(snap)
		if err != nil {
			return false, err
		}
		if n > 0 {
			log.Info().Str("tenant_id", tenantID).Int("cards", n).Msg("catalog seeded")
		}
		return n > 0, nil
	}
}
