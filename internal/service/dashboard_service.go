package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// PortfolioReader exposes portfolio snapshots.
type PortfolioReader interface {
	Status() domain.PortfolioStatus
}

// RiskHistory exposes recorded risk scores.
type RiskHistory interface {
	Latest(symbol string) (domain.RiskRecord, bool)
}

// PositionView is a position valued at the latest price.
type PositionView struct {
	Symbol         string    `json:"symbol"`
	Name           string    `json:"name"`
	Quantity       float64   `json:"quantity"`
	EntryPrice     float64   `json:"entry_price"`
	EntryTimestamp time.Time `json:"entry_timestamp"`
	CurrentPrice   float64   `json:"current_price"`
	// PriceStale is set when no quote was available and CurrentPrice falls
	// back to the entry price.
	PriceStale    bool     `json:"price_stale"`
	MarketValue   float64  `json:"market_value"`
	UnrealizedPnL float64  `json:"unrealized_pnl"`
	ProfitPct     float64  `json:"profit_pct"`
	RiskScore     *float64 `json:"risk_score,omitempty"`
	RiskClass     string   `json:"risk_class,omitempty"`
}

// Dashboard is the portfolio overview shown to operators. Equity counts
// purchases once in either cash accounting mode.
type Dashboard struct {
	Cash           float64        `json:"cash"`
	InitialCapital float64        `json:"initial_capital"`
	MarketValue    float64        `json:"market_value"`
	Equity         float64        `json:"equity"`
	ReturnPct      float64        `json:"return_pct"`
	PositionCount  int            `json:"position_count"`
	MaxPositions   int            `json:"max_positions"`
	Positions      []PositionView `json:"positions"`
	AsOf           time.Time      `json:"as_of"`
}

// DashboardService values the portfolio at live prices for display. It only
// reads state.
type DashboardService struct {
	portfolio PortfolioReader
	quotes    QuoteFetcher
	risk      RiskHistory
	logger    *slog.Logger
}

// NewDashboardService creates a DashboardService.
func NewDashboardService(portfolio PortfolioReader, quotes QuoteFetcher, risk RiskHistory, logger *slog.Logger) *DashboardService {
	return &DashboardService{
		portfolio: portfolio,
		quotes:    quotes,
		risk:      risk,
		logger:    logger.With(slog.String("component", "dashboard_service")),
	}
}

// Overview returns the portfolio valued at the latest quotes. Symbols
// without a quote are valued at their entry price.
func (s *DashboardService) Overview(ctx context.Context) Dashboard {
	st := s.portfolio.Status()
	views := make([]PositionView, 0, len(st.Positions))
	var marketValue float64
	for _, pos := range st.Positions {
		v := s.view(ctx, pos)
		marketValue += v.MarketValue
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Symbol < views[j].Symbol })

	equity := st.NetCash() + marketValue
	var ret float64
	if st.InitialCapital > 0 {
		ret = (equity - st.InitialCapital) / st.InitialCapital * 100
	}
	return Dashboard{
		Cash:           st.Cash,
		InitialCapital: st.InitialCapital,
		MarketValue:    marketValue,
		Equity:         equity,
		ReturnPct:      ret,
		PositionCount:  st.PositionCount,
		MaxPositions:   st.MaxPositions,
		Positions:      views,
		AsOf:           st.AsOf,
	}
}

func (s *DashboardService) view(ctx context.Context, pos domain.Position) PositionView {
	price := pos.EntryPrice
	stale := true
	if q, err := s.quotes.FetchQuote(ctx, pos.Symbol); err != nil {
		s.logger.DebugContext(ctx, "quote unavailable, using entry price",
			slog.String("symbol", pos.Symbol),
			slog.String("error", err.Error()),
		)
	} else if q.LastPrice > 0 {
		price = q.LastPrice
		stale = false
	}

	v := PositionView{
		Symbol:         pos.Symbol,
		Name:           pos.Name,
		Quantity:       pos.Quantity,
		EntryPrice:     pos.EntryPrice,
		EntryTimestamp: pos.EntryTimestamp,
		CurrentPrice:   price,
		PriceStale:     stale,
		MarketValue:    pos.MarketValue(price),
		UnrealizedPnL:  pos.UnrealizedPnL(price),
		ProfitPct:      pos.ProfitPct(price),
	}
	if s.risk != nil {
		if rec, ok := s.risk.Latest(pos.Symbol); ok {
			score := rec.Score
			v.RiskScore = &score
			v.RiskClass = domain.ClassifyRisk(score)
		}
	}
	return v
}
