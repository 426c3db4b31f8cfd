package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// RiskRecords exposes the risk scorer's history.
type RiskRecords interface {
	RecentDates() []time.Time
	RecentScores() []float64
	History(symbol string) []domain.RiskRecord
}

// RiskHandler serves risk history endpoints.
type RiskHandler struct {
	risk   RiskRecords
	logger *slog.Logger
}

// NewRiskHandler creates a RiskHandler.
func NewRiskHandler(risk RiskRecords, logger *slog.Logger) *RiskHandler {
	return &RiskHandler{risk: risk, logger: logger}
}

// History returns the recent score series as parallel date and score lists.
// GET /api/risk/history
func (h *RiskHandler) History(w http.ResponseWriter, r *http.Request) {
	dates := h.risk.RecentDates()
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dates":  out,
		"scores": h.risk.RecentScores(),
	})
}

// Symbol returns the recorded scores of one symbol.
// GET /api/risk/{symbol}
func (h *RiskHandler) Symbol(w http.ResponseWriter, r *http.Request) {
	sym := strings.ToUpper(r.PathValue("symbol"))
	recs := h.risk.History(sym)
	if len(recs) == 0 {
		writeError(w, http.StatusNotFound, "no risk history for "+sym)
		return
	}
	latest := recs[len(recs)-1]
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":  sym,
		"latest":  latest,
		"class":   domain.ClassifyRisk(latest.Score),
		"records": recs,
	})
}
