package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/themetrader/internal/domain"
	"github.com/alanyoungcy/themetrader/internal/scheduler"
	"github.com/alanyoungcy/themetrader/internal/server"
	"github.com/alanyoungcy/themetrader/internal/server/handler"
)

// TradeMode runs the daily schedule, the WebSocket hub and, when enabled,
// the dashboard server.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	sched, err := a.newScheduler(deps)
	if err != nil {
		return fmt.Errorf("trade mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Hub.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	if a.cfg.Scheduler.RunOnStart {
		g.Go(func() error {
			a.runCycle(ctx, deps, "startup")
			return nil
		})
	}

	if a.cfg.Scheduler.Enabled {
		g.Go(func() error {
			return sched.Run(ctx)
		})
	} else {
		a.logger.WarnContext(ctx, "scheduler disabled; cycles only run on demand")
	}

	return g.Wait()
}

// OnceMode runs a single cycle and returns its report.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) (domain.CycleReport, error) {
	a.logger.InfoContext(ctx, "starting once mode")

	report, err := deps.Engine.RunDailyCycle(ctx)
	if err != nil {
		return report, fmt.Errorf("once mode: %w", err)
	}
	deps.Journal.DailySummary(ctx, report.Status)
	return report, nil
}

// ServerMode serves the dashboard and runs cycles only on request.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return deps.Hub.Run(ctx)
	})
	a.startHTTPServer(ctx, g, deps)

	return g.Wait()
}

// newScheduler registers the configured cycle times and the daily summary.
func (a *App) newScheduler(deps *Dependencies) (*scheduler.Scheduler, error) {
	sc := a.cfg.Scheduler
	loc, err := time.LoadLocation(sc.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone %q: %w", sc.Timezone, err)
	}
	sched, err := scheduler.New(loc, sc.Holidays, a.base)
	if err != nil {
		return nil, err
	}

	for _, rt := range sc.RunTimes {
		at, err := scheduler.ParseTimeOfDay(rt)
		if err != nil {
			return nil, err
		}
		if err := sched.Add(scheduler.Job{
			Name: "daily_cycle",
			At:   at,
			Run: func(ctx context.Context) {
				a.runCycle(ctx, deps, "schedule")
			},
		}); err != nil {
			return nil, err
		}
	}

	if sc.SummaryTime != "" {
		at, err := scheduler.ParseTimeOfDay(sc.SummaryTime)
		if err != nil {
			return nil, err
		}
		if err := sched.Add(scheduler.Job{
			Name: "daily_summary",
			At:   at,
			Run: func(ctx context.Context) {
				deps.Journal.DailySummary(ctx, deps.Engine.Status())
			},
		}); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// runCycle runs one cycle and logs the outcome. It never fails the caller;
// the next scheduled run simply tries again.
func (a *App) runCycle(ctx context.Context, deps *Dependencies, trigger string) {
	report, err := deps.Engine.RunDailyCycle(ctx)
	switch {
	case errors.Is(err, domain.ErrCycleInProgress):
		a.logger.InfoContext(ctx, "cycle skipped, another is running", slog.String("trigger", trigger))
	case err != nil:
		a.logger.WarnContext(ctx, "cycle interrupted",
			slog.String("trigger", trigger),
			slog.String("error", err.Error()),
		)
	default:
		a.logger.InfoContext(ctx, "cycle done",
			slog.String("trigger", trigger),
			slog.String("cycle_id", report.ID),
			slog.Int("errors", len(report.Errors)),
		)
	}
}

// startHTTPServer adds the dashboard server to g. It is shut down gracefully
// when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	sc := a.cfg.Server
	h := server.Handlers{
		Health:    handler.NewHealthHandler(deps.healthChecks(), a.base),
		Portfolio: handler.NewPortfolioHandler(deps.Engine, deps.Dashboard, a.base),
		Cycle:     handler.NewCycleHandler(deps.Engine, deps.CycleStore, sc.CycleTimeout.Duration, a.base),
		Risk:      handler.NewRiskHandler(deps.Risk, a.base),
		Trades:    handler.NewTradeHandler(deps.Trades, a.base),
		Reports:   handler.NewReportHandler(deps.Archiver, a.base),
	}
	srv := server.NewServer(server.Config{
		Port:        sc.Port,
		CORSOrigins: sc.CORSOrigins,
		APIKey:      sc.APIKey,
		RateLimit:   sc.RateLimit,
		RateWindow:  sc.RateWindow.Duration,
		MetricsPath: sc.MetricsPath,
	}, h, server.Options{
		Hub:     deps.Hub,
		Metrics: deps.Metrics.Handler(),
		Limiter: deps.RateLimiter,
		Observe: deps.Metrics.ObserveHTTP,
	}, a.base)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", sc.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", sc.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
