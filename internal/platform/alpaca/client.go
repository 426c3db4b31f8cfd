// Package alpaca implements domain.MarketDataPort on top of the Alpaca
// market data API. Theme rankings are derived from a configured catalog of
// themes, each ranked by the mean daily change of its members.
package alpaca

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// Theme is one entry of the tradable theme catalog.
type Theme struct {
	ID      string
	Name    string
	Symbols []string
}

// Config holds Alpaca credentials and the theme catalog.
type Config struct {
	APIKey    string
	APISecret string
	// BaseURL is the trading API root, used for asset lookups.
	BaseURL string
	// DataURL overrides the market data API root.
	DataURL string
	// Feed is "iex" or "sip".
	Feed   string
	Themes []Theme
}

type dataAPI interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
	GetSnapshots(symbols []string, req marketdata.GetSnapshotRequest) (map[string]*marketdata.Snapshot, error)
}

type assetAPI interface {
	GetAsset(symbol string) (*alpacaapi.Asset, error)
}

// Client is the live market data port.
type Client struct {
	data   dataAPI
	assets assetAPI
	feed   string
	themes []Theme
	logger *slog.Logger

	mu    sync.RWMutex
	names map[string]string
}

var _ domain.MarketDataPort = (*Client)(nil)

// NewClient creates a Client from cfg.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	data := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.DataURL,
	})
	trading := alpacaapi.NewClient(alpacaapi.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.BaseURL,
	})
	return newClient(data, trading, cfg, logger)
}

func newClient(data dataAPI, assets assetAPI, cfg Config, logger *slog.Logger) *Client {
	themes := make([]Theme, 0, len(cfg.Themes))
	for _, t := range cfg.Themes {
		syms := make([]string, 0, len(t.Symbols))
		for _, s := range t.Symbols {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				syms = append(syms, s)
			}
		}
		themes = append(themes, Theme{ID: t.ID, Name: t.Name, Symbols: syms})
	}
	return &Client{
		data:   data,
		assets: assets,
		feed:   cfg.Feed,
		themes: themes,
		logger: logger.With(slog.String("component", "alpaca")),
		names:  make(map[string]string),
	}
}

// FetchThemeRankings returns every catalog theme that has snapshot data,
// with PctChange set to the mean daily change of its members.
func (c *Client) FetchThemeRankings(ctx context.Context) ([]domain.Theme, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var all []string
	seen := make(map[string]bool)
	for _, t := range c.themes {
		for _, s := range t.Symbols {
			if !seen[s] {
				seen[s] = true
				all = append(all, s)
			}
		}
	}
	if len(all) == 0 {
		return []domain.Theme{}, nil
	}
	sort.Strings(all)

	snaps, err := c.data.GetSnapshots(all, marketdata.GetSnapshotRequest{Feed: marketdata.Feed(c.feed)})
	if err != nil {
		return nil, fmt.Errorf("alpaca: get snapshots: %w", err)
	}
	return rankThemes(c.themes, snaps), nil
}

// rankThemes averages member day changes per theme. Themes without a single
// usable snapshot are left out.
func rankThemes(themes []Theme, snaps map[string]*marketdata.Snapshot) []domain.Theme {
	out := make([]domain.Theme, 0, len(themes))
	for _, t := range themes {
		var sum float64
		var n int
		for _, s := range t.Symbols {
			pct, ok := dayChangePct(snaps[s])
			if !ok {
				continue
			}
			sum += pct
			n++
		}
		if n == 0 {
			continue
		}
		out = append(out, domain.Theme{ID: t.ID, Name: t.Name, PctChange: sum / float64(n)})
	}
	return out
}

func dayChangePct(s *marketdata.Snapshot) (float64, bool) {
	if s == nil || s.DailyBar == nil || s.PrevDailyBar == nil || s.PrevDailyBar.Close <= 0 {
		return 0, false
	}
	return (s.DailyBar.Close/s.PrevDailyBar.Close - 1) * 100, true
}

// FetchThemeMembers returns the catalog members of themeID with their names.
func (c *Client) FetchThemeMembers(ctx context.Context, themeID string) ([]domain.ThemeMember, error) {
	for _, t := range c.themes {
		if t.ID != themeID {
			continue
		}
		out := make([]domain.ThemeMember, 0, len(t.Symbols))
		for _, s := range t.Symbols {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out = append(out, domain.ThemeMember{Symbol: s, Name: c.name(ctx, s)})
		}
		return out, nil
	}
	return nil, fmt.Errorf("alpaca: theme %q: %w", themeID, domain.ErrNotFound)
}

// FetchDailyHistory returns daily bars for symbol between start and end,
// oldest first.
func (c *Client) FetchDailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bars, err := c.data.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
		Feed:      marketdata.Feed(c.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca: get bars %s: %w", symbol, err)
	}
	return toDomainBars(bars), nil
}

func toDomainBars(bars []marketdata.Bar) []domain.Bar {
	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		out = append(out, domain.Bar{
			Date:   b.Timestamp.UTC(),
			Close:  b.Close,
			Volume: float64(b.Volume),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// FetchQuote returns the latest trade price for symbol.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return domain.Quote{}, err
	}
	trade, err := c.data.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{Feed: marketdata.Feed(c.feed)})
	if err != nil {
		return domain.Quote{}, fmt.Errorf("alpaca: latest trade %s: %w", symbol, err)
	}
	if trade == nil {
		return domain.Quote{}, fmt.Errorf("alpaca: latest trade %s: %w", symbol, domain.ErrNotFound)
	}
	return domain.Quote{
		Symbol:    symbol,
		Name:      c.name(ctx, symbol),
		LastPrice: trade.Price,
		Timestamp: trade.Timestamp.UTC(),
	}, nil
}

// name resolves the company name for symbol, caching successful lookups.
// Lookup failures fall back to the symbol itself.
func (c *Client) name(ctx context.Context, symbol string) string {
	c.mu.RLock()
	n, ok := c.names[symbol]
	c.mu.RUnlock()
	if ok {
		return n
	}
	if c.assets == nil {
		return symbol
	}
	asset, err := c.assets.GetAsset(symbol)
	if err != nil || asset == nil || asset.Name == "" {
		if err != nil {
			c.logger.DebugContext(ctx, "asset lookup failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
		return symbol
	}
	c.mu.Lock()
	c.names[symbol] = asset.Name
	c.mu.Unlock()
	return asset.Name
}
