package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// ReportHandler lists archived cycle reports.
type ReportHandler struct {
	archive domain.ReportArchiver
	logger  *slog.Logger
}

// NewReportHandler creates a ReportHandler. archive may be nil when object
// storage is disabled.
func NewReportHandler(archive domain.ReportArchiver, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{archive: archive, logger: logger}
}

// List returns the archived report keys for ?date=YYYY-MM-DD (default
// today, UTC).
// GET /api/reports
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "report archive disabled")
		return
	}
	day := time.Now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = d
	}
	infos, err := h.archive.ListReports(r.Context(), day)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list reports failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":    day.Format(time.DateOnly),
		"reports": infos,
	})
}
