package domain

import (
	"context"
	"time"
)

// Bar is one daily OHLCV bar reduced to the fields the strategy uses.
type Bar struct {
	Date   time.Time `json:"date" yaml:"date"`
	Close  float64   `json:"close" yaml:"close"`
	Volume float64   `json:"volume" yaml:"volume"`
}

// Theme is a sector or concept grouping ranked by its percentage change.
type Theme struct {
	ID        string  `json:"id" yaml:"id"`
	Name      string  `json:"name" yaml:"name"`
	PctChange float64 `json:"pct_change" yaml:"pct_change"`
}

// ThemeMember is a constituent of a theme.
type ThemeMember struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Name   string `json:"name" yaml:"name"`
}

// Quote is the latest traded price of a symbol.
type Quote struct {
	Symbol    string    `json:"symbol" yaml:"symbol"`
	Name      string    `json:"name" yaml:"name"`
	LastPrice float64   `json:"last_price" yaml:"last_price"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// MarketDataPort is the read-only market data boundary of the engine.
// Implementations must be safe for concurrent use.
type MarketDataPort interface {
	// FetchDailyHistory returns daily bars in [start, end] in ascending date
	// order.
	FetchDailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
	FetchThemeRankings(ctx context.Context) ([]Theme, error)
	FetchThemeMembers(ctx context.Context, themeID string) ([]ThemeMember, error)
	// FetchQuote returns ErrNotFound for unknown symbols.
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
}

// Closes extracts the closing prices of bars.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts the volumes of bars.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}
