package strategy

import (
	"sort"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// TierPolicy maps risk scores to the fraction of a position to sell. Tiers
// are evaluated from the highest threshold down and the first match wins.
type TierPolicy struct {
	tiers []domain.RiskTier
}

// DefaultTiers sells everything at 0.8, 70% at 0.6 and 30% at 0.4.
func DefaultTiers() []domain.RiskTier {
	return []domain.RiskTier{
		{MinScore: 0.8, SellRatio: 1.0},
		{MinScore: 0.6, SellRatio: 0.7},
		{MinScore: 0.4, SellRatio: 0.3},
	}
}

// NewTierPolicy builds a policy from tiers in any order. An empty list uses
// DefaultTiers.
func NewTierPolicy(tiers []domain.RiskTier) TierPolicy {
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}
	sorted := make([]domain.RiskTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinScore > sorted[j].MinScore
	})
	return TierPolicy{tiers: sorted}
}

// SellRatio returns the sell fraction for score, or false to hold.
func (p TierPolicy) SellRatio(score float64) (float64, bool) {
	for _, t := range p.tiers {
		if score >= t.MinScore {
			return t.SellRatio, true
		}
	}
	return 0, false
}

// Tiers returns the tiers, highest threshold first.
func (p TierPolicy) Tiers() []domain.RiskTier {
	out := make([]domain.RiskTier, len(p.tiers))
	copy(out, p.tiers)
	return out
}
