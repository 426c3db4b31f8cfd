package domain

import "time"

// Rejection records a candidate that was not bought.
type Rejection struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// RiskDecision records the risk check of one held symbol.
type RiskDecision struct {
	Symbol    string      `json:"symbol"`
	RiskScore float64     `json:"risk_score"`
	SellRatio float64     `json:"sell_ratio"`
	Sell      *SellResult `json:"sell,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// CycleReport summarizes one daily cycle.
type CycleReport struct {
	ID         string            `json:"id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Candidates []ScoredCandidate `json:"candidates"`
	Opened     []Position        `json:"opened"`
	Rejected   []Rejection       `json:"rejected,omitempty"`
	Decisions  []RiskDecision    `json:"decisions"`
	Errors     []string          `json:"errors,omitempty"`
	Status     PortfolioStatus   `json:"status"`
}

// Duration returns how long the cycle ran.
func (r CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Sells returns the decisions that reduced a position.
func (r CycleReport) Sells() []RiskDecision {
	var out []RiskDecision
	for _, d := range r.Decisions {
		if d.Sell != nil {
			out = append(out, d)
		}
	}
	return out
}
