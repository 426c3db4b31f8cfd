package strategy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/themetrader/internal/domain"
	"github.com/alanyoungcy/themetrader/internal/service"
)

type stubSelector struct {
	candidates []domain.ScoredCandidate
	err        error
	gotMax     int
	block      chan struct{}
	started    chan struct{}
}

func (s *stubSelector) SelectCandidates(_ context.Context, maxCount int) ([]domain.ScoredCandidate, error) {
	s.gotMax = maxCount
	if s.started != nil {
		close(s.started)
	}
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return []domain.ScoredCandidate{}, s.err
	}
	return s.candidates, nil
}

type stubRisk struct {
	mu     sync.Mutex
	scores map[string]float64
	asked  []string
}

func (r *stubRisk) ScoreRisk(_ context.Context, symbol string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asked = append(r.asked, symbol)
	return r.scores[symbol]
}

type tradeLog struct {
	mu     sync.Mutex
	trades []domain.TradeRecord
}

func (l *tradeLog) Record(_ context.Context, t domain.TradeRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trades = append(l.trades, t)
}

type reportSink struct {
	reports []domain.CycleReport
}

func (s *reportSink) CycleCompleted(_ context.Context, r domain.CycleReport) {
	s.reports = append(s.reports, r)
}

type heldLock struct{}

func (heldLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

func newTestPortfolio(quotes *fakePort) *service.PortfolioManager {
	return service.NewPortfolioManager(service.PortfolioConfig{
		InitialCapital:       1_000_000,
		MaxPositions:         5,
		PositionSizeFraction: 0.2,
		MinQuantity:          1,
		DebitCashOnBuy:       true,
	}, quotes, discardLogger())
}

func TestRunDailyCycleRiskChecksFreshBuys(t *testing.T) {
	quotes := newFakePort()
	quotes.quotes["X"] = 110
	pm := newTestPortfolio(quotes)
	sel := &stubSelector{candidates: []domain.ScoredCandidate{{Symbol: "X", Name: "Xco", Score: 0.9, Price: 100}}}
	risk := &stubRisk{scores: map[string]float64{"X": 0.9}}
	trades := &tradeLog{}
	sink := &reportSink{}

	e := NewEngine(sel, risk, pm, NewTierPolicy(nil), EngineConfig{}, discardLogger())
	e.SetTradeRecorder(trades)
	e.AddObserver(sink)

	report, err := e.RunDailyCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, sel.gotMax)
	require.Len(t, report.Opened, 1)
	assert.Equal(t, 2000.0, report.Opened[0].Quantity)
	assert.Equal(t, []string{"X"}, risk.asked)

	require.Len(t, report.Decisions, 1)
	d := report.Decisions[0]
	assert.Equal(t, 1.0, d.SellRatio)
	require.NotNil(t, d.Sell)
	assert.True(t, d.Sell.Closed)
	assert.Equal(t, 220_000.0, d.Sell.Proceeds)

	assert.Equal(t, 0, report.Status.PositionCount)
	assert.Equal(t, 1_020_000.0, report.Status.Cash)

	require.Len(t, trades.trades, 2)
	assert.Equal(t, domain.SideBuy, trades.trades[0].Side)
	assert.Equal(t, domain.SideSell, trades.trades[1].Side)
	assert.Equal(t, report.ID, trades.trades[1].CycleID)
	require.NotNil(t, trades.trades[1].RiskScore)
	assert.Equal(t, 0.9, *trades.trades[1].RiskScore)

	require.Len(t, sink.reports, 1)
	assert.Equal(t, report.ID, sink.reports[0].ID)
}

func TestRunDailyCycleTiers(t *testing.T) {
	quotes := newFakePort()
	for _, s := range []string{"A", "B", "C", "D"} {
		quotes.quotes[s] = 100
	}
	pm := newTestPortfolio(quotes)
	sel := &stubSelector{candidates: []domain.ScoredCandidate{
		{Symbol: "A", Price: 100}, {Symbol: "B", Price: 100},
		{Symbol: "C", Price: 100}, {Symbol: "D", Price: 100},
	}}
	risk := &stubRisk{scores: map[string]float64{"A": 0.85, "B": 0.65, "C": 0.45, "D": 0.1}}

	e := NewEngine(sel, risk, pm, NewTierPolicy(nil), EngineConfig{}, discardLogger())
	report, err := e.RunDailyCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "D"}, risk.asked)
	assert.Equal(t, 3, report.Status.PositionCount)
	_, held := report.Status.Positions["A"]
	assert.False(t, held)

	b := report.Status.Positions["B"]
	c := report.Status.Positions["C"]
	d := report.Status.Positions["D"]
	assert.InDelta(t, 1600*0.3, b.Quantity, 1e-9)
	assert.InDelta(t, 1280*0.7, c.Quantity, 1e-9)
	assert.InDelta(t, 1024.0, d.Quantity, 1e-9)
	assert.Len(t, report.Sells(), 3)
}

func TestRunDailyCycleSelectionFailureStillChecksHoldings(t *testing.T) {
	quotes := newFakePort()
	pm := newTestPortfolio(quotes)
	_, err := pm.OpenPosition(context.Background(), domain.ScoredCandidate{Symbol: "Y", Price: 10})
	require.NoError(t, err)

	sel := &stubSelector{err: domain.ErrDataUnavailable}
	risk := &stubRisk{scores: map[string]float64{"Y": 0.95}}
	e := NewEngine(sel, risk, pm, NewTierPolicy(nil), EngineConfig{}, discardLogger())

	report, err := e.RunDailyCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Opened)
	assert.Len(t, report.Errors, 1)
	assert.Equal(t, []string{"Y"}, risk.asked)

	// No quote for Y: the sell aborts and the position survives.
	require.Len(t, report.Decisions, 1)
	assert.Nil(t, report.Decisions[0].Sell)
	assert.NotEmpty(t, report.Decisions[0].Error)
	assert.Equal(t, 1, report.Status.PositionCount)
}

func TestRunDailyCycleRejectsOverlap(t *testing.T) {
	pm := newTestPortfolio(newFakePort())
	sel := &stubSelector{block: make(chan struct{}), started: make(chan struct{})}
	e := NewEngine(sel, &stubRisk{}, pm, NewTierPolicy(nil), EngineConfig{}, discardLogger())

	done := make(chan error, 1)
	go func() {
		_, err := e.RunDailyCycle(context.Background())
		done <- err
	}()
	<-sel.started

	_, err := e.RunDailyCycle(context.Background())
	assert.ErrorIs(t, err, domain.ErrCycleInProgress)

	close(sel.block)
	require.NoError(t, <-done)
}

func TestRunDailyCycleHonorsDistributedLock(t *testing.T) {
	pm := newTestPortfolio(newFakePort())
	sel := &stubSelector{}
	e := NewEngine(sel, &stubRisk{}, pm, NewTierPolicy(nil), EngineConfig{}, discardLogger())
	e.SetLocker(heldLock{})

	_, err := e.RunDailyCycle(context.Background())
	assert.ErrorIs(t, err, domain.ErrCycleInProgress)
	assert.Zero(t, sel.gotMax, "selection must not run without the lock")
}

func TestRecentReportsNewestFirst(t *testing.T) {
	pm := newTestPortfolio(newFakePort())
	e := NewEngine(&stubSelector{}, &stubRisk{}, pm, NewTierPolicy(nil), EngineConfig{RecentReports: 2}, discardLogger())

	_, ok := e.LastReport()
	assert.False(t, ok)

	var ids []string
	for i := 0; i < 3; i++ {
		r, err := e.RunDailyCycle(context.Background())
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	recent := e.RecentReports(10)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[2], recent[0].ID)
	assert.Equal(t, ids[1], recent[1].ID)

	last, ok := e.LastReport()
	require.True(t, ok)
	assert.Equal(t, ids[2], last.ID)
}

func TestRunDailyCycleCancelled(t *testing.T) {
	quotes := newFakePort()
	pm := newTestPortfolio(quotes)
	_, err := pm.OpenPosition(context.Background(), domain.ScoredCandidate{Symbol: "Y", Price: 10})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	risk := &stubRisk{}
	e := NewEngine(&stubSelector{}, risk, pm, NewTierPolicy(nil), EngineConfig{}, discardLogger())

	_, err = e.RunDailyCycle(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, risk.asked)
}
