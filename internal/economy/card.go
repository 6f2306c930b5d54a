package economy

import (
	"fmt"
	"strings"
)

type Card struct {
	Name        string   `json:"name"`
	Rank        Rank     `json:"rank"`
	Value       int64    `json:"value"`
	Description string   `json:"description,omitempty"`
	Images      []string `json:"images"`
	ClaimedBy   string   `json:"claimed_by,omitempty"`
}

// NameKey is the case-insensitive identity of a card name within a tenant.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (c *Card) Validate() error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidCard)
	case !c.Rank.Valid():
		return fmt.Errorf("%w: rank %d", ErrInvalidCard, int(c.Rank))
	case c.Value <= 0:
		return fmt.Errorf("%w: value must be positive", ErrInvalidCard)
	case len(c.Images) == 0 || strings.TrimSpace(c.Images[0]) == "":
		return fmt.Errorf("%w: at least one image is required", ErrInvalidCard)
	}
	return nil
}

// Image returns the canonical image reference.
func (c *Card) Image() string {
	if len(c.Images) == 0 {
		return ""
	}
	return c.Images[0]
}

func (c *Card) Claimed() bool {
	return c.ClaimedBy != ""
}

func (c *Card) clone() *Card {
	out := *c
	out.Images = append([]string(nil), c.Images...)
	return &out
}
