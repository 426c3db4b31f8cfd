package domain

import "time"

// ScoredCandidate is a stock ranked for purchase.
type ScoredCandidate struct {
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	// Price is the last close of the fetched history.
	Price     float64 `json:"price"`
	Momentum  float64 `json:"momentum"`
	Volume    float64 `json:"volume"`
	Theme     float64 `json:"theme"`
	ThemeName string  `json:"theme_name"`
}

// RiskRecord is one recorded risk score.
type RiskRecord struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
	// Fallback is set when the score is the failure default.
	Fallback bool `json:"fallback"`
}

// RiskTier maps a minimum risk score to the fraction of a position to sell.
type RiskTier struct {
	MinScore  float64 `json:"min_score"`
	SellRatio float64 `json:"sell_ratio"`
}

// Risk classes shown on the dashboard.
const (
	RiskHigh   = "high"
	RiskMedium = "medium"
	RiskLow    = "low"
)

// ClassifyRisk buckets a risk score for display.
func ClassifyRisk(score float64) string {
	switch {
	case score >= 0.7:
		return RiskHigh
	case score >= 0.4:
		return RiskMedium
	default:
		return RiskLow
	}
}
