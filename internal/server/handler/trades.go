package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// TradeJournal lists journaled fills.
type TradeJournal interface {
	ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.TradeRecord, error)
	ListBySymbol(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.TradeRecord, error)
}

// TradeHandler serves the trade journal.
type TradeHandler struct {
	trades TradeJournal
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades TradeJournal, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logger}
}

// List returns journaled trades, newest first, optionally for one ?symbol=.
// GET /api/trades
func (h *TradeHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "since/until must be RFC 3339 timestamps")
		return
	}

	var trades []domain.TradeRecord
	if sym := strings.ToUpper(r.URL.Query().Get("symbol")); sym != "" {
		trades, err = h.trades.ListBySymbol(r.Context(), sym, opts)
	} else {
		trades, err = h.trades.ListRecent(r.Context(), opts)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	if trades == nil {
		trades = []domain.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": trades})
}
