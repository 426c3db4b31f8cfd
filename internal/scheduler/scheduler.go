// Package scheduler fires jobs at fixed local times of day on trading days
// (Monday to Friday, minus configured market holidays). Weekday timing is
// delegated to a cron runner; holidays are filtered when a job fires.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// TimeOfDay is a wall-clock time in the scheduler's location.
type TimeOfDay struct {
	Hour, Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("scheduler: parse time %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// cronSpec fires at t Monday to Friday.
func (t TimeOfDay) cronSpec() string {
	return fmt.Sprintf("%d %d * * 1-5", t.Minute, t.Hour)
}

// Job is one recurring task.
type Job struct {
	Name string
	At   TimeOfDay
	Run  func(ctx context.Context)
}

type entry struct {
	job      Job
	schedule cron.Schedule
}

// Scheduler runs jobs at their time of day on trading days.
type Scheduler struct {
	loc      *time.Location
	holidays map[string]bool
	cron     *cron.Cron
	entries  []entry
	logger   *slog.Logger
	now      func() time.Time

	// ctx is handed to jobs; Run sets it before the cron runner starts.
	ctx context.Context
}

// New creates a Scheduler in loc. holidays are YYYY-MM-DD dates on which
// no job runs.
func New(loc *time.Location, holidays []string, logger *slog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	h := make(map[string]bool, len(holidays))
	for _, d := range holidays {
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return nil, fmt.Errorf("scheduler: parse holiday %q: %w", d, err)
		}
		h[d] = true
	}
	logger = logger.With(slog.String("component", "scheduler"))
	cl := cronLogger{logger}
	return &Scheduler{
		loc:      loc,
		holidays: h,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		now:    time.Now,
		ctx:    context.Background(),
	}, nil
}

// Add registers a job to fire at job.At every weekday.
func (s *Scheduler) Add(job Job) error {
	sched, err := cron.ParseStandard(job.At.cronSpec())
	if err != nil {
		return fmt.Errorf("scheduler: job %s at %s: %w", job.Name, job.At, err)
	}
	s.entries = append(s.entries, entry{job: job, schedule: sched})
	s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(s.ctx, job) }))
	return nil
}

// IsTradingDay reports whether t falls on a weekday that is not a holiday,
// judged in the scheduler's location.
func (s *Scheduler) IsTradingDay(t time.Time) bool {
	t = t.In(s.loc)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !s.holidays[t.Format(time.DateOnly)]
}

// Next returns the first trading-day fire time strictly after now and the
// jobs due then, in the order they were added. It returns a zero time when
// no job is registered.
func (s *Scheduler) Next(now time.Time) (time.Time, []Job) {
	if len(s.entries) == 0 {
		return time.Time{}, nil
	}
	now = now.In(s.loc)
	for range 64 {
		var (
			at  time.Time
			due []Job
		)
		for _, e := range s.entries {
			t := e.schedule.Next(now)
			switch {
			case at.IsZero() || t.Before(at):
				at, due = t, []Job{e.job}
			case t.Equal(at):
				due = append(due, e.job)
			}
		}
		if s.IsTradingDay(at) {
			return at, due
		}
		now = at
	}
	return time.Time{}, nil
}

// Run starts the cron runner and blocks until ctx is done, then waits for
// running jobs to return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	if at, due := s.Next(s.now()); len(due) > 0 {
		s.logger.InfoContext(ctx, "next run scheduled",
			slog.String("at", at.Format(time.RFC3339)),
			slog.Int("jobs", len(due)),
		)
	}

	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return ctx.Err()
}

func (s *Scheduler) fire(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	if now := s.now(); !s.IsTradingDay(now) {
		s.logger.InfoContext(ctx, "market holiday, job skipped",
			slog.String("job", job.Name),
			slog.String("date", now.In(s.loc).Format(time.DateOnly)),
		)
		return
	}
	s.logger.InfoContext(ctx, "running job", slog.String("job", job.Name), slog.String("at", job.At.String()))
	job.Run(ctx)
}

// cronLogger routes the cron runner's own logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{slog.String("error", err.Error())}, keysAndValues...)
	l.logger.Error("cron: "+msg, args...)
}
