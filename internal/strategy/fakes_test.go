package strategy

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePort struct {
	mu        sync.Mutex
	themes    []domain.Theme
	themesErr error
	members   map[string][]domain.ThemeMember
	bars      map[string][]domain.Bar
	barErr    map[string]error
	quotes    map[string]float64
	calls     map[string]int
}

func newFakePort() *fakePort {
	return &fakePort{
		members: make(map[string][]domain.ThemeMember),
		bars:    make(map[string][]domain.Bar),
		barErr:  make(map[string]error),
		quotes:  make(map[string]float64),
		calls:   make(map[string]int),
	}
}

func (f *fakePort) FetchDailyHistory(_ context.Context, symbol string, _, _ time.Time) ([]domain.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol]++
	if err := f.barErr[symbol]; err != nil {
		return nil, err
	}
	return f.bars[symbol], nil
}

func (f *fakePort) FetchThemeRankings(context.Context) ([]domain.Theme, error) {
	if f.themesErr != nil {
		return nil, f.themesErr
	}
	return f.themes, nil
}

func (f *fakePort) FetchThemeMembers(_ context.Context, themeID string) ([]domain.ThemeMember, error) {
	m, ok := f.members[themeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakePort) FetchQuote(_ context.Context, symbol string) (domain.Quote, error) {
	p, ok := f.quotes[symbol]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return domain.Quote{Symbol: symbol, LastPrice: p}, nil
}

// series builds ascending daily bars from closes and volumes of equal length.
func series(closes, volumes []float64) []domain.Bar {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i := range closes {
		bars[i] = domain.Bar{Date: start.AddDate(0, 0, i), Close: closes[i], Volume: volumes[i]}
	}
	return bars
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
