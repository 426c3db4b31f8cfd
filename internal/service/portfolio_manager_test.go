package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticQuotes struct {
	mu     sync.Mutex
	prices map[string]float64
	err    error
}

func (q *staticQuotes) FetchQuote(_ context.Context, symbol string) (domain.Quote, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return domain.Quote{}, q.err
	}
	p, ok := q.prices[symbol]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return domain.Quote{Symbol: symbol, LastPrice: p}, nil
}

func defaultPortfolioConfig() PortfolioConfig {
	return PortfolioConfig{
		InitialCapital:       1_000_000,
		MaxPositions:         5,
		PositionSizeFraction: 0.2,
		MinQuantity:          1,
		DebitCashOnBuy:       true,
	}
}

func newManager(cfg PortfolioConfig, prices map[string]float64) (*PortfolioManager, *staticQuotes) {
	q := &staticQuotes{prices: prices}
	return NewPortfolioManager(cfg, q, discardLogger()), q
}

func candidate(sym string, price float64) domain.ScoredCandidate {
	return domain.ScoredCandidate{Symbol: sym, Name: sym + " Inc", Score: 0.5, Price: price}
}

func TestOpenPositionSizesFromCash(t *testing.T) {
	pm, _ := newManager(defaultPortfolioConfig(), nil)

	pos, err := pm.OpenPosition(context.Background(), candidate("X", 100))
	require.NoError(t, err)
	assert.Equal(t, 2000.0, pos.Quantity)
	assert.Equal(t, 100.0, pos.EntryPrice)
	assert.Equal(t, 200_000.0, pos.CostBasis)
	assert.NotEmpty(t, pos.ID)
	assert.False(t, pos.EntryTimestamp.IsZero())

	st := pm.Status()
	assert.Equal(t, 800_000.0, st.Cash)
	assert.Equal(t, 1_000_000.0, st.InitialCapital)
	assert.Equal(t, 1, st.PositionCount)

	// The next position is sized from the reduced cash.
	pos, err = pm.OpenPosition(context.Background(), candidate("Y", 100))
	require.NoError(t, err)
	assert.Equal(t, 1600.0, pos.Quantity)
}

func TestOpenPositionWithoutCashDebit(t *testing.T) {
	cfg := defaultPortfolioConfig()
	cfg.DebitCashOnBuy = false
	pm, _ := newManager(cfg, nil)

	for _, sym := range []string{"A", "B"} {
		pos, err := pm.OpenPosition(context.Background(), candidate(sym, 100))
		require.NoError(t, err)
		assert.Equal(t, 2000.0, pos.Quantity)
	}
	st := pm.Status()
	assert.Equal(t, 1_000_000.0, st.Cash)
	assert.False(t, st.DebitCashOnBuy)
	assert.Equal(t, 400_000.0, st.UndebitedCost)
	assert.Equal(t, 600_000.0, st.NetCash())
}

func TestOpenPositionRejections(t *testing.T) {
	pm, _ := newManager(defaultPortfolioConfig(), nil)
	ctx := context.Background()

	for _, sym := range []string{"A", "B", "C", "D", "E"} {
		_, err := pm.OpenPosition(ctx, candidate(sym, 50))
		require.NoError(t, err)
	}
	before := pm.Status()

	_, err := pm.OpenPosition(ctx, candidate("F", 50))
	assert.ErrorIs(t, err, domain.ErrAtCapacity)
	assert.ErrorIs(t, err, domain.ErrStateConflict)
	assert.Equal(t, before.Cash, pm.Status().Cash)
	assert.Equal(t, 5, pm.Status().PositionCount)

	pm2, _ := newManager(defaultPortfolioConfig(), nil)
	_, err = pm2.OpenPosition(ctx, candidate("A", 50))
	require.NoError(t, err)
	_, err = pm2.OpenPosition(ctx, candidate("A", 60))
	assert.ErrorIs(t, err, domain.ErrAlreadyHeld)
	assert.ErrorIs(t, err, domain.ErrStateConflict)
	p, _ := pm2.Position("A")
	assert.Equal(t, 50.0, p.EntryPrice)

	_, err = pm2.OpenPosition(ctx, candidate("Z", 0))
	assert.ErrorIs(t, err, domain.ErrInvalidCandidate)
}

func TestOpenPositionsFillsFreeSlotsOnly(t *testing.T) {
	pm, _ := newManager(defaultPortfolioConfig(), nil)
	ctx := context.Background()
	_, err := pm.OpenPosition(ctx, candidate("A", 10))
	require.NoError(t, err)
	_, err = pm.OpenPosition(ctx, candidate("B", 10))
	require.NoError(t, err)

	opened, rejected := pm.OpenPositions(ctx, []domain.ScoredCandidate{
		candidate("C", 10),
		candidate("A", 10),
		candidate("D", 10),
		candidate("E", 10),
		candidate("F", 10),
	})

	require.Len(t, opened, 2)
	assert.Equal(t, "C", opened[0].Symbol)
	assert.Equal(t, "D", opened[1].Symbol)
	assert.Equal(t, []domain.Rejection{
		{Symbol: "A", Reason: "already held"},
		{Symbol: "E", Reason: "no free slot"},
		{Symbol: "F", Reason: "no free slot"},
	}, rejected)
	assert.Equal(t, []string{"A", "B", "C", "D"}, pm.Symbols())
}

func TestReducePositionFullExit(t *testing.T) {
	pm, _ := newManager(defaultPortfolioConfig(), map[string]float64{"X": 110})
	ctx := context.Background()
	_, err := pm.OpenPosition(ctx, candidate("X", 100))
	require.NoError(t, err)
	cashBefore := pm.Status().Cash

	res, err := pm.ReducePosition(ctx, "X", 1.0)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Closed)
	assert.Equal(t, 2000.0, res.Quantity)
	assert.Equal(t, 220_000.0, res.Proceeds)
	assert.Equal(t, 20_000.0, res.RealizedPnL)

	st := pm.Status()
	assert.Equal(t, cashBefore+220_000, st.Cash)
	assert.Equal(t, 0, st.PositionCount)
	assert.Empty(t, pm.Symbols())
}

func TestReducePositionPartial(t *testing.T) {
	pm, _ := newManager(defaultPortfolioConfig(), map[string]float64{"X": 100})
	ctx := context.Background()
	_, err := pm.OpenPosition(ctx, candidate("X", 100))
	require.NoError(t, err)

	res, err := pm.ReducePosition(ctx, "X", 0.7)
	require.NoError(t, err)
	assert.False(t, res.Closed)
	assert.Equal(t, 1400.0, res.Quantity)
	assert.Equal(t, 600.0, res.Remaining)

	pos, ok := pm.Position("X")
	require.True(t, ok)
	assert.Equal(t, 600.0, pos.Quantity)
	assert.Equal(t, 800_000.0+140_000.0, pm.Status().Cash)

	_, err = pm.ReducePosition(ctx, "X", 0.3)
	require.NoError(t, err)
	pos, _ = pm.Position("X")
	assert.Equal(t, 420.0, pos.Quantity)
}

func TestReducePositionDropsFractionalRemainder(t *testing.T) {
	pm, _ := newManager(defaultPortfolioConfig(), map[string]float64{"BRK": 150_000})
	ctx := context.Background()
	pos, err := pm.OpenPosition(ctx, candidate("BRK", 150_000))
	require.NoError(t, err)
	require.InDelta(t, 1.3333, pos.Quantity, 1e-3)

	res, err := pm.ReducePosition(ctx, "BRK", 0.3)
	require.NoError(t, err)
	assert.True(t, res.Closed)
	_, held := pm.Position("BRK")
	assert.False(t, held)
}

func TestReducePositionNoOpAndFailures(t *testing.T) {
	pm, quotes := newManager(defaultPortfolioConfig(), map[string]float64{"X": 120})
	ctx := context.Background()

	res, err := pm.ReducePosition(ctx, "NOPE", 1)
	assert.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 1_000_000.0, pm.Status().Cash)

	_, err = pm.OpenPosition(ctx, candidate("X", 100))
	require.NoError(t, err)

	_, err = pm.ReducePosition(ctx, "X", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidRatio)
	_, err = pm.ReducePosition(ctx, "X", 1.5)
	assert.ErrorIs(t, err, domain.ErrInvalidRatio)

	quotes.err = errors.New("quote service down")
	before := pm.Status()
	_, err = pm.ReducePosition(ctx, "X", 1)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	after := pm.Status()
	assert.Equal(t, before.Cash, after.Cash)
	assert.Equal(t, before.Positions["X"].Quantity, after.Positions["X"].Quantity)
}

func TestStatusIsASnapshot(t *testing.T) {
	pm, _ := newManager(defaultPortfolioConfig(), nil)
	_, err := pm.OpenPosition(context.Background(), candidate("X", 100))
	require.NoError(t, err)

	st := pm.Status()
	p := st.Positions["X"]
	p.Quantity = 1
	st.Positions["X"] = p
	delete(st.Positions, "X")

	again := pm.Status()
	require.Contains(t, again.Positions, "X")
	assert.Equal(t, 2000.0, again.Positions["X"].Quantity)
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	prices := map[string]float64{}
	syms := []string{"A", "B", "C", "D", "E"}
	for _, s := range syms {
		prices[s] = 10
	}
	pm, _ := newManager(defaultPortfolioConfig(), prices)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, s := range syms {
			_, _ = pm.OpenPosition(ctx, candidate(s, 10))
			_, _ = pm.ReducePosition(ctx, s, 0.5)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			st := pm.Status()
			assert.LessOrEqual(t, st.PositionCount, 5)
			for _, p := range st.Positions {
				assert.Greater(t, p.Quantity, 0.0)
			}
		}
	}()
	wg.Wait()
	assert.Equal(t, 5, pm.Status().PositionCount)
}
