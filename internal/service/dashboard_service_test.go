package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

type riskLookup map[string]float64

func (r riskLookup) Latest(symbol string) (domain.RiskRecord, bool) {
	s, ok := r[symbol]
	return domain.RiskRecord{Symbol: symbol, Score: s}, ok
}

func TestDashboardOverview(t *testing.T) {
	cfg := defaultPortfolioConfig()
	prices := map[string]float64{"A": 110}
	pm, quotes := newManager(cfg, prices)
	ctx := context.Background()
	_, err := pm.OpenPosition(ctx, candidate("B", 50))
	require.NoError(t, err)
	_, err = pm.OpenPosition(ctx, candidate("A", 100))
	require.NoError(t, err)

	svc := NewDashboardService(pm, quotes, riskLookup{"A": 0.75}, discardLogger())
	d := svc.Overview(ctx)

	require.Len(t, d.Positions, 2)
	a, b := d.Positions[0], d.Positions[1]

	assert.Equal(t, "A", a.Symbol)
	assert.Equal(t, 110.0, a.CurrentPrice)
	assert.False(t, a.PriceStale)
	assert.InDelta(t, 10.0, a.ProfitPct, 1e-9)
	require.NotNil(t, a.RiskScore)
	assert.Equal(t, domain.RiskHigh, a.RiskClass)

	// No quote for B: valued at entry.
	assert.Equal(t, "B", b.Symbol)
	assert.Equal(t, 50.0, b.CurrentPrice)
	assert.True(t, b.PriceStale)
	assert.Equal(t, 0.0, b.ProfitPct)
	assert.Nil(t, b.RiskScore)

	// Cash 640k, B 4000 @ 50, A 1600 @ 110.
	assert.InDelta(t, 640_000.0, d.Cash, 1e-6)
	assert.InDelta(t, 200_000.0+176_000.0, d.MarketValue, 1e-6)
	assert.InDelta(t, 1_016_000.0, d.Equity, 1e-6)
	assert.InDelta(t, 1.6, d.ReturnPct, 1e-9)
	assert.Equal(t, 2, d.PositionCount)
}

func TestDashboardEquityCountsPurchasesOnce(t *testing.T) {
	ctx := context.Background()
	for _, debit := range []bool{true, false} {
		cfg := defaultPortfolioConfig()
		cfg.DebitCashOnBuy = debit
		prices := map[string]float64{"A": 100, "B": 100}
		pm, quotes := newManager(cfg, prices)
		for _, sym := range []string{"A", "B"} {
			_, err := pm.OpenPosition(ctx, candidate(sym, 100))
			require.NoError(t, err)
		}
		svc := NewDashboardService(pm, quotes, nil, discardLogger())

		// Unchanged prices leave equity at the starting capital.
		d := svc.Overview(ctx)
		assert.InDelta(t, 1_000_000.0, d.Equity, 1e-6, "debit=%v", debit)
		assert.InDelta(t, 0.0, d.ReturnPct, 1e-9, "debit=%v", debit)

		// Selling A at 110 realizes 10 per share.
		qtyA := d.Positions[0].Quantity
		prices["A"] = 110
		_, err := pm.ReducePosition(ctx, "A", 1)
		require.NoError(t, err)
		d = svc.Overview(ctx)
		assert.InDelta(t, 1_000_000.0+qtyA*10, d.Equity, 1e-6, "debit=%v", debit)
	}
}
