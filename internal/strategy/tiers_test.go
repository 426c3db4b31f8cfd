package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

func TestTierPolicySellRatio(t *testing.T) {
	p := NewTierPolicy(nil)
	tests := []struct {
		score    float64
		wantSell bool
		ratio    float64
	}{
		{1.0, true, 1.0},
		{0.85, true, 1.0},
		{0.8, true, 1.0},
		{0.79, true, 0.7},
		{0.6, true, 0.7},
		{0.45, true, 0.3},
		{0.4, true, 0.3},
		{0.39, false, 0},
		{0, false, 0},
	}
	for _, tt := range tests {
		ratio, sell := p.SellRatio(tt.score)
		assert.Equal(t, tt.wantSell, sell, "score %v", tt.score)
		assert.Equal(t, tt.ratio, ratio, "score %v", tt.score)
	}
}

func TestTierPolicySortsTiers(t *testing.T) {
	p := NewTierPolicy([]domain.RiskTier{
		{MinScore: 0.5, SellRatio: 0.5},
		{MinScore: 0.9, SellRatio: 1},
	})
	assert.Equal(t, 0.9, p.Tiers()[0].MinScore)

	ratio, sell := p.SellRatio(0.95)
	assert.True(t, sell)
	assert.Equal(t, 1.0, ratio)

	ratio, _ = p.SellRatio(0.7)
	assert.Equal(t, 0.5, ratio)
}
