// Package tiering groups observed votes by the stake rank of their sender.
package tiering

import (
	"fmt"

	"github.com/nvandessel/quorumlab/internal/constants"
)

// TierConfig defines the rank tiers.
type TierConfig struct {
	// UpperBounds are inclusive, strictly increasing, 1-indexed rank bounds.
	// One extra open-ended tier follows the last bound.
	UpperBounds []int
}

// DefaultTierConfig returns tiers 1-10, 11-20, 21-30, 31-50, 51-100, 101-200,
// 201-500 and 500+.
func DefaultTierConfig() TierConfig {
	return TierConfig{UpperBounds: append([]int(nil), constants.TierUpperBounds...)}
}

// Validate checks that bounds are positive and strictly increasing.
func (c TierConfig) Validate() error {
	if len(c.UpperBounds) == 0 {
		return fmt.Errorf("tier bounds: at least one bound is required")
	}
	prev := 0
	for _, b := range c.UpperBounds {
		if b <= prev {
			return fmt.Errorf("tier bounds must be positive and increasing, got %v", c.UpperBounds)
		}
		prev = b
	}
	return nil
}

// Tier identifies one rank range. Tiers are ordered; index 0 holds the largest
// accounts.
type Tier struct {
	Index int
	Label string
	Lower int // inclusive rank
	Upper int // inclusive rank, 0 for the open-ended tier
}

// TierMapper maps stake ranks to tiers.
type TierMapper struct {
	tiers []Tier
}

// NewTierMapper creates a mapper from a validated configuration.
func NewTierMapper(config TierConfig) (*TierMapper, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	m := &TierMapper{}
	lower := 1
	for i, b := range config.UpperBounds {
		m.tiers = append(m.tiers, Tier{Index: i, Label: fmt.Sprintf("%d-%d", lower, b), Lower: lower, Upper: b})
		lower = b + 1
	}
	last := config.UpperBounds[len(config.UpperBounds)-1]
	m.tiers = append(m.tiers, Tier{Index: len(config.UpperBounds), Label: fmt.Sprintf("%d+", last), Lower: lower})
	return m, nil
}

// Tiers returns all tiers in order.
func (m *TierMapper) Tiers() []Tier {
	return append([]Tier(nil), m.tiers...)
}

// Labels returns the tier labels in order.
func (m *TierMapper) Labels() []string {
	out := make([]string, len(m.tiers))
	for i, t := range m.tiers {
		out[i] = t.Label
	}
	return out
}

// Open returns the open-ended tier, which also holds unknown senders.
func (m *TierMapper) Open() Tier {
	return m.tiers[len(m.tiers)-1]
}

// MapRank returns the tier of a 1-indexed rank. Ranks below 1 map to the
// open-ended tier.
func (m *TierMapper) MapRank(rank int) Tier {
	if rank < 1 {
		return m.Open()
	}
	for _, t := range m.tiers {
		if t.Upper != 0 && rank <= t.Upper {
			return t
		}
	}
	return m.Open()
}
