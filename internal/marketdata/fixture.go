package marketdata

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// FixtureTheme is a theme with its members in a recorded data set.
type FixtureTheme struct {
	ID        string               `yaml:"id"`
	Name      string               `yaml:"name"`
	PctChange float64              `yaml:"pct_change"`
	Members   []domain.ThemeMember `yaml:"members"`
}

// FixtureData is a recorded market data set.
type FixtureData struct {
	// Rebase shifts each symbol's bars so that its latest bar falls on the
	// requested end date, letting old recordings serve current windows.
	Rebase bool                    `yaml:"rebase"`
	Themes []FixtureTheme          `yaml:"themes"`
	Bars   map[string][]domain.Bar `yaml:"bars"`
	// Quotes overrides the last close as the live price.
	Quotes map[string]float64 `yaml:"quotes"`
}

// Fixture serves a recorded data set. It is read-only after construction and
// safe for concurrent use.
type Fixture struct {
	data  FixtureData
	names map[string]string
	now   func() time.Time
}

var _ domain.MarketDataPort = (*Fixture)(nil)

// LoadFixture reads a YAML data set from path.
func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("marketdata: read fixture: %w", err)
	}
	var data FixtureData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("marketdata: parse fixture %s: %w", path, err)
	}
	return NewFixture(data), nil
}

// NewFixture builds a Fixture from data. Bars are sorted by date.
func NewFixture(data FixtureData) *Fixture {
	names := make(map[string]string)
	for _, t := range data.Themes {
		for _, m := range t.Members {
			if _, ok := names[m.Symbol]; !ok && m.Name != "" {
				names[m.Symbol] = m.Name
			}
		}
	}
	bySymbol := make(map[string][]domain.Bar, len(data.Bars))
	for sym, bars := range data.Bars {
		sorted := make([]domain.Bar, len(bars))
		copy(sorted, bars)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
		bySymbol[sym] = sorted
	}
	data.Bars = bySymbol
	return &Fixture{data: data, names: names, now: time.Now}
}

func (f *Fixture) FetchDailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bars, ok := f.data.Bars[symbol]
	if !ok {
		return nil, fmt.Errorf("marketdata: fixture history %q: %w", symbol, domain.ErrNotFound)
	}
	var shift time.Duration
	if f.data.Rebase && len(bars) > 0 {
		last := bars[len(bars)-1].Date
		shift = dayOf(end).Sub(dayOf(last))
	}
	from, to := dayOf(start), dayOf(end)
	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		b.Date = b.Date.Add(shift)
		d := dayOf(b.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *Fixture) FetchThemeRankings(ctx context.Context) ([]domain.Theme, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.Theme, len(f.data.Themes))
	for i, t := range f.data.Themes {
		out[i] = domain.Theme{ID: t.ID, Name: t.Name, PctChange: t.PctChange}
	}
	return out, nil
}

func (f *Fixture) FetchThemeMembers(ctx context.Context, themeID string) ([]domain.ThemeMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, t := range f.data.Themes {
		if t.ID == themeID {
			out := make([]domain.ThemeMember, len(t.Members))
			copy(out, t.Members)
			return out, nil
		}
	}
	return nil, fmt.Errorf("marketdata: fixture theme %q: %w", themeID, domain.ErrNotFound)
}

func (f *Fixture) FetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return domain.Quote{}, err
	}
	name := f.names[symbol]
	if name == "" {
		name = symbol
	}
	if p, ok := f.data.Quotes[symbol]; ok {
		return domain.Quote{Symbol: symbol, Name: name, LastPrice: p, Timestamp: f.now()}, nil
	}
	bars := f.data.Bars[symbol]
	if len(bars) == 0 {
		return domain.Quote{}, fmt.Errorf("marketdata: fixture quote %q: %w", symbol, domain.ErrNotFound)
	}
	return domain.Quote{Symbol: symbol, Name: name, LastPrice: bars[len(bars)-1].Close, Timestamp: f.now()}, nil
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
