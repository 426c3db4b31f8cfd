package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// PortfolioConfig holds capital and sizing parameters for PortfolioManager.
type PortfolioConfig struct {
	InitialCapital       float64
	MaxPositions         int
	PositionSizeFraction float64
	// MinQuantity is the remaining share count below which a partially sold
	// position is dropped.
	MinQuantity float64
	// DebitCashOnBuy subtracts the allocated amount from cash when a position
	// is opened. When false only sale proceeds move cash.
	DebitCashOnBuy bool
}

// QuoteFetcher returns the latest price for a symbol.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, symbol string) (domain.Quote, error)
}

type holding struct {
	pos      domain.Position
	qty      decimal.Decimal
	cost     decimal.Decimal
	realized decimal.Decimal
}

func (h *holding) snapshot() domain.Position {
	p := h.pos
	p.Quantity = h.qty.InexactFloat64()
	p.CostBasis = h.cost.InexactFloat64()
	p.RealizedPnL = h.realized.InexactFloat64()
	return p
}

// PortfolioManager owns cash and open positions. It is the single writer of
// portfolio state; every mutation happens under its lock and readers get
// copies.
type PortfolioManager struct {
	cfg    PortfolioConfig
	quotes QuoteFetcher
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	cash     decimal.Decimal
	initial  decimal.Decimal
	fraction decimal.Decimal
	minQty   decimal.Decimal
	holdings map[string]*holding
	order    []string

	// undebited sums purchase amounts left on cash when DebitCashOnBuy is off.
	undebited decimal.Decimal
}

// NewPortfolioManager creates a PortfolioManager funded with cfg.InitialCapital.
func NewPortfolioManager(cfg PortfolioConfig, quotes QuoteFetcher, logger *slog.Logger) *PortfolioManager {
	initial := decimal.NewFromFloat(cfg.InitialCapital)
	return &PortfolioManager{
		cfg:      cfg,
		quotes:   quotes,
		logger:   logger.With(slog.String("component", "portfolio_manager")),
		now:      func() time.Time { return time.Now().UTC() },
		cash:     initial,
		initial:  initial,
		fraction: decimal.NewFromFloat(cfg.PositionSizeFraction),
		minQty:   decimal.NewFromFloat(cfg.MinQuantity),
		holdings: make(map[string]*holding),
	}
}

// MaxPositions returns the configured position capacity.
func (m *PortfolioManager) MaxPositions() int {
	return m.cfg.MaxPositions
}

// FreeSlots returns how many more positions can be opened.
func (m *PortfolioManager) FreeSlots() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return max(m.cfg.MaxPositions-len(m.holdings), 0)
}

// Symbols returns the held symbols in the order they were opened.
func (m *PortfolioManager) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Position returns a copy of the position held in symbol.
func (m *PortfolioManager) Position(symbol string) (domain.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.holdings[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return h.snapshot(), true
}

// Status returns a snapshot of cash and positions.
func (m *PortfolioManager) Status() domain.PortfolioStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	positions := make(map[string]domain.Position, len(m.holdings))
	for sym, h := range m.holdings {
		positions[sym] = h.snapshot()
	}
	return domain.PortfolioStatus{
		Cash:           m.cash.InexactFloat64(),
		InitialCapital: m.initial.InexactFloat64(),
		PositionCount:  len(m.holdings),
		MaxPositions:   m.cfg.MaxPositions,
		Positions:      positions,
		AsOf:           m.now(),
		DebitCashOnBuy: m.cfg.DebitCashOnBuy,
		UndebitedCost:  m.undebited.InexactFloat64(),
	}
}

// OpenPosition buys candidate with positionSizeFraction of current cash.
// It fails with ErrAtCapacity, ErrAlreadyHeld or ErrInsufficientCash (all
// wrapping ErrStateConflict) without touching state, and with
// ErrInvalidCandidate when the candidate carries no usable price.
func (m *PortfolioManager) OpenPosition(ctx context.Context, c domain.ScoredCandidate) (domain.Position, error) {
	if c.Symbol == "" || c.Price <= 0 || math.IsNaN(c.Price) || math.IsInf(c.Price, 0) {
		return domain.Position{}, fmt.Errorf("portfolio: open %q at %v: %w", c.Symbol, c.Price, domain.ErrInvalidCandidate)
	}

	m.mu.Lock()
	if len(m.holdings) >= m.cfg.MaxPositions {
		m.mu.Unlock()
		return domain.Position{}, fmt.Errorf("portfolio: open %q: %w", c.Symbol, domain.ErrAtCapacity)
	}
	if _, held := m.holdings[c.Symbol]; held {
		m.mu.Unlock()
		return domain.Position{}, fmt.Errorf("portfolio: open %q: %w", c.Symbol, domain.ErrAlreadyHeld)
	}

	amount := m.cash.Mul(m.fraction)
	if !amount.IsPositive() {
		m.mu.Unlock()
		return domain.Position{}, fmt.Errorf("portfolio: open %q: %w", c.Symbol, domain.ErrInsufficientCash)
	}
	price := decimal.NewFromFloat(c.Price)
	qty := amount.Div(price)

	name := c.Name
	if name == "" {
		name = c.Symbol
	}
	h := &holding{
		pos: domain.Position{
			ID:             uuid.NewString(),
			Symbol:         c.Symbol,
			Name:           name,
			EntryPrice:     c.Price,
			EntryTimestamp: m.now(),
		},
		qty:  qty,
		cost: amount,
	}
	m.holdings[c.Symbol] = h
	m.order = append(m.order, c.Symbol)
	if m.cfg.DebitCashOnBuy {
		m.cash = m.cash.Sub(amount)
	} else {
		m.undebited = m.undebited.Add(amount)
	}
	pos := h.snapshot()
	cash := m.cash.InexactFloat64()
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "position opened",
		slog.String("symbol", pos.Symbol),
		slog.String("name", pos.Name),
		slog.Float64("price", pos.EntryPrice),
		slog.Float64("quantity", pos.Quantity),
		slog.Float64("amount", pos.CostBasis),
		slog.Float64("cash", cash),
	)
	return pos, nil
}

// OpenPositions opens candidates in rank order until the free slots are
// used. Candidates past the free slots are skipped; rejected candidates are
// reported with their reason.
func (m *PortfolioManager) OpenPositions(ctx context.Context, candidates []domain.ScoredCandidate) ([]domain.Position, []domain.Rejection) {
	free := m.FreeSlots()
	var (
		opened   []domain.Position
		rejected []domain.Rejection
	)
	for i, c := range candidates {
		if i >= free {
			rejected = append(rejected, domain.Rejection{Symbol: c.Symbol, Reason: "no free slot"})
			continue
		}
		pos, err := m.OpenPosition(ctx, c)
		if err != nil {
			m.logger.InfoContext(ctx, "candidate rejected",
				slog.String("symbol", c.Symbol),
				slog.String("error", err.Error()),
			)
			rejected = append(rejected, domain.Rejection{Symbol: c.Symbol, Reason: rejectionReason(err)})
			continue
		}
		opened = append(opened, pos)
	}
	return opened, rejected
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrAtCapacity):
		return "at capacity"
	case errors.Is(err, domain.ErrAlreadyHeld):
		return "already held"
	case errors.Is(err, domain.ErrInsufficientCash):
		return "insufficient cash"
	case errors.Is(err, domain.ErrInvalidCandidate):
		return "invalid price"
	default:
		return err.Error()
	}
}

// ReducePosition sells ratio of the position in symbol at the latest quote.
// A symbol that is not held is a no-op and returns (nil, nil). When no quote
// can be fetched the position is left untouched and the error wraps
// ErrDataUnavailable. The position is removed when ratio is 1 or when fewer
// than MinQuantity shares remain.
func (m *PortfolioManager) ReducePosition(ctx context.Context, symbol string, ratio float64) (*domain.SellResult, error) {
	if !(ratio > 0 && ratio <= 1) {
		return nil, fmt.Errorf("portfolio: reduce %q by %v: %w", symbol, ratio, domain.ErrInvalidRatio)
	}

	m.mu.RLock()
	_, held := m.holdings[symbol]
	m.mu.RUnlock()
	if !held {
		return nil, nil
	}

	quote, err := m.quotes.FetchQuote(ctx, symbol)
	if err != nil {
		if errors.Is(err, domain.ErrDataUnavailable) {
			return nil, fmt.Errorf("portfolio: quote %q: %w", symbol, err)
		}
		return nil, fmt.Errorf("portfolio: quote %q: %w: %w", symbol, domain.ErrDataUnavailable, err)
	}
	if quote.LastPrice <= 0 || math.IsNaN(quote.LastPrice) || math.IsInf(quote.LastPrice, 0) {
		return nil, fmt.Errorf("portfolio: quote %q price %v: %w", symbol, quote.LastPrice, domain.ErrDataUnavailable)
	}
	price := decimal.NewFromFloat(quote.LastPrice)

	m.mu.Lock()
	h, held := m.holdings[symbol]
	if !held {
		m.mu.Unlock()
		return nil, nil
	}
	sellQty := h.qty
	if ratio < 1 {
		sellQty = h.qty.Mul(decimal.NewFromFloat(ratio))
	}
	proceeds := sellQty.Mul(price)
	pnl := price.Sub(decimal.NewFromFloat(h.pos.EntryPrice)).Mul(sellQty)

	h.qty = h.qty.Sub(sellQty)
	h.realized = h.realized.Add(pnl)
	m.cash = m.cash.Add(proceeds)

	closed := ratio == 1 || h.qty.LessThan(m.minQty)
	if closed {
		m.removeLocked(symbol)
	}
	res := &domain.SellResult{
		Symbol:      symbol,
		Ratio:       ratio,
		Quantity:    sellQty.InexactFloat64(),
		Price:       quote.LastPrice,
		Proceeds:    proceeds.InexactFloat64(),
		RealizedPnL: pnl.InexactFloat64(),
		Remaining:   h.qty.InexactFloat64(),
		Closed:      closed,
		ExecutedAt:  m.now(),
	}
	if closed {
		res.Remaining = 0
	}
	cash := m.cash.InexactFloat64()
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "position reduced",
		slog.String("symbol", symbol),
		slog.Float64("ratio", ratio),
		slog.Float64("quantity", res.Quantity),
		slog.Float64("price", res.Price),
		slog.Float64("proceeds", res.Proceeds),
		slog.Bool("closed", closed),
		slog.Float64("cash", cash),
	)
	return res, nil
}

func (m *PortfolioManager) removeLocked(symbol string) {
	delete(m.holdings, symbol)
	for i, s := range m.order {
		if s == symbol {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
