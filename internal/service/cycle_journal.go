package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/themetrader/internal/domain"
	"github.com/alanyoungcy/themetrader/internal/notify"
)

// EventNotifier delivers operator notifications.
type EventNotifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// CycleJournal persists and announces finished cycles. Every sink is
// optional and a failing sink is only logged.
type CycleJournal struct {
	cycles   domain.CycleStore
	archiver domain.ReportArchiver
	bus      Publisher
	notifier EventNotifier
	logger   *slog.Logger
}

// NewCycleJournal creates a CycleJournal. Pass nil to disable a sink.
func NewCycleJournal(
	cycles domain.CycleStore,
	archiver domain.ReportArchiver,
	bus Publisher,
	notifier EventNotifier,
	logger *slog.Logger,
) *CycleJournal {
	return &CycleJournal{
		cycles:   cycles,
		archiver: archiver,
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "cycle_journal")),
	}
}

// CycleCompleted records report in every configured sink.
func (j *CycleJournal) CycleCompleted(ctx context.Context, report domain.CycleReport) {
	logger := j.logger.With(slog.String("cycle_id", report.ID))

	if j.cycles != nil {
		if err := j.cycles.Insert(ctx, report); err != nil {
			logger.WarnContext(ctx, "cycle_journal: insert failed", slog.String("error", err.Error()))
		}
	}

	if j.archiver != nil {
		path, err := j.archiver.ArchiveReport(ctx, report)
		if err != nil {
			logger.WarnContext(ctx, "cycle_journal: archive failed", slog.String("error", err.Error()))
		} else {
			logger.DebugContext(ctx, "report archived", slog.String("path", path))
		}
	}

	if j.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":     "cycle_completed",
			"cycle_id":  report.ID,
			"opened":    len(report.Opened),
			"sells":     len(report.Sells()),
			"errors":    len(report.Errors),
			"cash":      report.Status.Cash,
			"positions": report.Status.PositionCount,
			"timestamp": report.FinishedAt.Format(time.RFC3339),
		})
		if err := j.bus.Publish(ctx, domain.ChannelCycles, evt); err != nil {
			logger.WarnContext(ctx, "cycle_journal: publish failed", slog.String("error", err.Error()))
		}
	}

	if j.notifier != nil {
		j.announce(ctx, logger, report)
	}
}

func (j *CycleJournal) announce(ctx context.Context, logger *slog.Logger, report domain.CycleReport) {
	send := func(event, title, message string) {
		if err := j.notifier.Notify(ctx, event, title, message); err != nil {
			logger.WarnContext(ctx, "cycle_journal: notify failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}

	title, message := notify.CycleMessage(report)
	send(notify.EventCycleCompleted, title, message)

	for _, d := range report.Sells() {
		if d.Sell.Closed {
			title, message := notify.PositionClosedMessage(d)
			send(notify.EventPositionClosed, title, message)
		}
	}

	if len(report.Errors) > 0 {
		send(notify.EventError, "Cycle errors", strings.Join(report.Errors, "\n"))
	}
}

// DailySummary announces the end-of-day portfolio state.
func (j *CycleJournal) DailySummary(ctx context.Context, status domain.PortfolioStatus) {
	j.logger.InfoContext(ctx, "daily summary",
		slog.Float64("cash", status.Cash),
		slog.Int("positions", status.PositionCount),
	)
	for _, p := range status.Positions {
		j.logger.InfoContext(ctx, "holding",
			slog.String("symbol", p.Symbol),
			slog.String("name", p.Name),
			slog.Float64("quantity", p.Quantity),
			slog.Float64("entry_price", p.EntryPrice),
		)
	}
	if j.notifier == nil {
		return
	}
	title, message := notify.SummaryMessage(status)
	if err := j.notifier.Notify(ctx, notify.EventDailySummary, title, message); err != nil {
		j.logger.WarnContext(ctx, "cycle_journal: summary notify failed", slog.String("error", err.Error()))
	}
}
