package domain

import "time"

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeRecord is a journal entry for a simulated fill.
type TradeRecord struct {
	ID          string    `json:"id"`
	CycleID     string    `json:"cycle_id,omitempty"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Amount      float64   `json:"amount"`
	RiskScore   *float64  `json:"risk_score,omitempty"`
	RealizedPnL float64   `json:"realized_pnl"`
	ExecutedAt  time.Time `json:"executed_at"`
}
