package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// CycleRunner runs and remembers daily cycles.
type CycleRunner interface {
	RunDailyCycle(ctx context.Context) (domain.CycleReport, error)
	LastReport() (domain.CycleReport, bool)
	RecentReports(limit int) []domain.CycleReport
}

// CycleHandler serves cycle endpoints.
type CycleHandler struct {
	engine CycleRunner
	// history, when set, serves /api/cycle/recent from the cycle journal so
	// reports survive restarts.
	history domain.CycleStore
	timeout time.Duration
	logger  *slog.Logger
}

// NewCycleHandler creates a CycleHandler. history may be nil. timeout bounds
// a cycle started through Run; zero means no bound.
func NewCycleHandler(engine CycleRunner, history domain.CycleStore, timeout time.Duration, logger *slog.Logger) *CycleHandler {
	return &CycleHandler{engine: engine, history: history, timeout: timeout, logger: logger}
}

// Run executes one cycle now and returns its report. A cycle already in
// progress yields 409. The cycle is detached from the request so a client
// disconnect never leaves fresh buys without a risk check.
// POST /api/cycle/run
func (h *CycleHandler) Run(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	report, err := h.engine.RunDailyCycle(ctx)
	switch {
	case errors.Is(err, domain.ErrCycleInProgress):
		writeError(w, http.StatusConflict, "a cycle is already running")
		return
	case err != nil && report.ID == "":
		h.logger.ErrorContext(ctx, "handler: run cycle failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "cycle failed")
		return
	case err != nil:
		// The cycle started and changed the portfolio; its report says how far it got.
		h.logger.WarnContext(ctx, "handler: cycle cut short",
			slog.String("cycle_id", report.ID),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, http.StatusOK, report)
}

// Last returns the most recent report.
// GET /api/cycle/last
func (h *CycleHandler) Last(w http.ResponseWriter, r *http.Request) {
	report, ok := h.engine.LastReport()
	if !ok {
		writeError(w, http.StatusNotFound, "no cycle has run yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Recent returns up to ?limit= reports, newest first.
// GET /api/cycle/recent
func (h *CycleHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10, 100)
	if h.history != nil {
		reports, err := h.history.ListRecent(r.Context(), limit)
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
			return
		}
		h.logger.WarnContext(r.Context(), "handler: cycle history unavailable, serving memory",
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": h.engine.RecentReports(limit)})
}
