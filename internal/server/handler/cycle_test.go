package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/themetrader/internal/domain"
	"github.com/alanyoungcy/themetrader/internal/service"
	"github.com/alanyoungcy/themetrader/internal/strategy"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// disconnectingSelector cancels the caller's request before handing back
// its picks, the way a dashboard client dropping the connection would.
type disconnectingSelector struct {
	disconnect context.CancelFunc
	picks      []domain.ScoredCandidate
}

func (s *disconnectingSelector) SelectCandidates(context.Context, int) ([]domain.ScoredCandidate, error) {
	s.disconnect()
	return s.picks, nil
}

type countingRisk struct {
	mu    sync.Mutex
	asked []string
}

func (r *countingRisk) ScoreRisk(_ context.Context, symbol string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asked = append(r.asked, symbol)
	return 0.1
}

// noQuotes satisfies the portfolio's market data needs; the test never
// values holdings.
type noQuotes struct{}

func (noQuotes) FetchDailyHistory(context.Context, string, time.Time, time.Time) ([]domain.Bar, error) {
	return nil, domain.ErrNotFound
}

func (noQuotes) FetchThemeRankings(context.Context) ([]domain.Theme, error) { return nil, nil }

func (noQuotes) FetchThemeMembers(context.Context, string) ([]domain.ThemeMember, error) {
	return nil, domain.ErrNotFound
}

func (noQuotes) FetchQuote(context.Context, string) (domain.Quote, error) {
	return domain.Quote{}, domain.ErrNotFound
}

func TestCycleRunSurvivesClientDisconnect(t *testing.T) {
	reqCtx, disconnect := context.WithCancel(context.Background())
	defer disconnect()

	sel := &disconnectingSelector{
		disconnect: disconnect,
		picks: []domain.ScoredCandidate{
			{Symbol: "X", Score: 0.9, Price: 100},
			{Symbol: "Y", Score: 0.8, Price: 50},
		},
	}
	risk := &countingRisk{}
	pm := service.NewPortfolioManager(service.PortfolioConfig{
		InitialCapital:       1_000_000,
		MaxPositions:         5,
		PositionSizeFraction: 0.2,
		MinQuantity:          1,
		DebitCashOnBuy:       true,
	}, noQuotes{}, discardLogger())
	eng := strategy.NewEngine(sel, risk, pm, strategy.NewTierPolicy(nil), strategy.EngineConfig{}, discardLogger())

	h := NewCycleHandler(eng, nil, time.Minute, discardLogger())
	req := httptest.NewRequest(http.MethodPost, "/api/cycle/run", nil).WithContext(reqCtx)
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var report domain.CycleReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))

	assert.Empty(t, report.Errors)
	require.Len(t, report.Opened, 2)
	require.Len(t, report.Decisions, 2)
	decided := make(map[string]bool)
	for _, d := range report.Decisions {
		decided[d.Symbol] = true
	}
	for _, p := range report.Opened {
		assert.True(t, decided[p.Symbol], "opened %s without a risk decision", p.Symbol)
	}
	assert.ElementsMatch(t, []string{"X", "Y"}, risk.asked)
	assert.Equal(t, 2, pm.Status().PositionCount)
}

type stubRunner struct {
	report  domain.CycleReport
	err     error
	gotDead bool
}

func (s *stubRunner) RunDailyCycle(ctx context.Context) (domain.CycleReport, error) {
	_, s.gotDead = ctx.Deadline()
	return s.report, s.err
}

func (s *stubRunner) LastReport() (domain.CycleReport, bool) { return s.report, s.report.ID != "" }

func (s *stubRunner) RecentReports(int) []domain.CycleReport { return nil }

func TestCycleRunStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		runner *stubRunner
		want   int
	}{
		{"completed", &stubRunner{report: domain.CycleReport{ID: "c1"}}, http.StatusOK},
		{"cut short by timeout", &stubRunner{
			report: domain.CycleReport{ID: "c2", Errors: []string{"context deadline exceeded"}},
			err:    context.DeadlineExceeded,
		}, http.StatusOK},
		{"overlap", &stubRunner{err: domain.ErrCycleInProgress}, http.StatusConflict},
		{"never started", &stubRunner{err: errors.New("lock backend down")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCycleHandler(tt.runner, nil, time.Minute, discardLogger())
			rec := httptest.NewRecorder()
			h.Run(rec, httptest.NewRequest(http.MethodPost, "/api/cycle/run", nil))
			assert.Equal(t, tt.want, rec.Code)
			assert.True(t, tt.runner.gotDead, "cycle should run under the configured timeout")
		})
	}
}
