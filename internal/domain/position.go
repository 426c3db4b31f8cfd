package domain

import "time"

// Position is an open holding of one symbol.
type Position struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Name           string    `json:"name"`
	Quantity       float64   `json:"quantity"`
	EntryPrice     float64   `json:"entry_price"`
	EntryTimestamp time.Time `json:"entry_timestamp"`
	// CostBasis is the cash amount allocated when the position was opened.
	CostBasis   float64 `json:"cost_basis"`
	RealizedPnL float64 `json:"realized_pnl"`
}

// MarketValue returns the value of the position at price.
func (p Position) MarketValue(price float64) float64 {
	return p.Quantity * price
}

// UnrealizedPnL returns the open profit or loss at price.
func (p Position) UnrealizedPnL(price float64) float64 {
	return (price - p.EntryPrice) * p.Quantity
}

// ProfitPct returns the percentage move of price over the entry price.
func (p Position) ProfitPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}

// SellResult describes a completed reduction of a position.
type SellResult struct {
	Symbol      string    `json:"symbol"`
	Ratio       float64   `json:"ratio"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Proceeds    float64   `json:"proceeds"`
	RealizedPnL float64   `json:"realized_pnl"`
	Remaining   float64   `json:"remaining"`
	Closed      bool      `json:"closed"`
	ExecutedAt  time.Time `json:"executed_at"`
}

// PortfolioStatus is a point-in-time snapshot of the portfolio. Positions is a
// copy and may be retained by the caller.
type PortfolioStatus struct {
	Cash           float64             `json:"cash"`
	InitialCapital float64             `json:"initial_capital"`
	PositionCount  int                 `json:"position_count"`
	MaxPositions   int                 `json:"max_positions"`
	Positions      map[string]Position `json:"positions"`
	AsOf           time.Time           `json:"as_of"`

	// DebitCashOnBuy reports the cash accounting mode. When false, purchases
	// never reduce Cash and UndebitedCost accumulates their amounts.
	DebitCashOnBuy bool    `json:"debit_cash_on_buy"`
	UndebitedCost  float64 `json:"undebited_cost"`
}

// NetCash is Cash less every purchase that was never debited from it. It
// equals Cash when purchases debit cash.
func (s PortfolioStatus) NetCash() float64 {
	return s.Cash - s.UndebitedCost
}
