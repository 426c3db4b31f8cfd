package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/themetrader/internal/domain"
	"github.com/alanyoungcy/themetrader/internal/service"
)

// PortfolioSource returns the raw portfolio snapshot.
type PortfolioSource interface {
	Status() domain.PortfolioStatus
}

// Overviewer values the portfolio at live prices.
type Overviewer interface {
	Overview(ctx context.Context) service.Dashboard
}

// PortfolioHandler serves portfolio endpoints.
type PortfolioHandler struct {
	portfolio PortfolioSource
	dashboard Overviewer
	logger    *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler.
func NewPortfolioHandler(portfolio PortfolioSource, dashboard Overviewer, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolio: portfolio, dashboard: dashboard, logger: logger}
}

type statusResponse struct {
	Cash           float64 `json:"cash"`
	InitialCapital float64 `json:"initial_capital"`
	PositionCount  int     `json:"position_count"`
	MaxPositions   int     `json:"max_positions"`
	AsOf           string  `json:"as_of"`
}

// Status returns cash and position count.
// GET /api/status
func (h *PortfolioHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := h.portfolio.Status()
	writeJSON(w, http.StatusOK, statusResponse{
		Cash:           st.Cash,
		InitialCapital: st.InitialCapital,
		PositionCount:  st.PositionCount,
		MaxPositions:   st.MaxPositions,
		AsOf:           st.AsOf.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// Positions returns every holding valued at the latest price with its risk
// class.
// GET /api/positions
func (h *PortfolioHandler) Positions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dashboard.Overview(r.Context()))
}
