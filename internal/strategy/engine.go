package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// CandidateSelector ranks stocks for purchase.
type CandidateSelector interface {
	SelectCandidates(ctx context.Context, maxCount int) ([]domain.ScoredCandidate, error)
}

// RiskEvaluator scores the risk of a held symbol. It never fails; failures
// are reported as the maximum score.
type RiskEvaluator interface {
	ScoreRisk(ctx context.Context, symbol string) float64
}

// Portfolio is the state the engine trades against.
type Portfolio interface {
	MaxPositions() int
	OpenPositions(ctx context.Context, candidates []domain.ScoredCandidate) ([]domain.Position, []domain.Rejection)
	Symbols() []string
	ReducePosition(ctx context.Context, symbol string, ratio float64) (*domain.SellResult, error)
	Status() domain.PortfolioStatus
}

// TradeRecorder journals fills.
type TradeRecorder interface {
	Record(ctx context.Context, trade domain.TradeRecord)
}

// CycleObserver is told about every finished cycle.
type CycleObserver interface {
	CycleCompleted(ctx context.Context, report domain.CycleReport)
}

// EngineConfig tunes Engine.
type EngineConfig struct {
	// RecentReports is how many cycle reports are kept in memory.
	RecentReports int
	// LockKey and LockTTL configure the distributed cycle lock when a
	// LockManager is attached.
	LockKey string
	LockTTL time.Duration
}

// Engine runs the daily cycle: select candidates, buy into free slots, then
// risk-check every holding and trim it according to the tier policy.
type Engine struct {
	selector  CandidateSelector
	risk      RiskEvaluator
	portfolio Portfolio
	tiers     TierPolicy
	cfg       EngineConfig
	logger    *slog.Logger
	now       func() time.Time

	locker    domain.LockManager
	trades    TradeRecorder
	observers []CycleObserver

	running sync.Mutex

	mu      sync.Mutex
	reports []domain.CycleReport
}

// NewEngine creates an Engine.
func NewEngine(
	selector CandidateSelector,
	risk RiskEvaluator,
	portfolio Portfolio,
	tiers TierPolicy,
	cfg EngineConfig,
	logger *slog.Logger,
) *Engine {
	if cfg.RecentReports < 1 {
		cfg.RecentReports = 50
	}
	if cfg.LockKey == "" {
		cfg.LockKey = "themetrader:cycle"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	return &Engine{
		selector:  selector,
		risk:      risk,
		portfolio: portfolio,
		tiers:     tiers,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "strategy_engine")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetLocker attaches a distributed lock so that only one process runs a
// cycle at a time.
func (e *Engine) SetLocker(l domain.LockManager) { e.locker = l }

// SetTradeRecorder attaches the trade journal.
func (e *Engine) SetTradeRecorder(r TradeRecorder) { e.trades = r }

// AddObserver registers o to receive every cycle report.
func (e *Engine) AddObserver(o CycleObserver) { e.observers = append(e.observers, o) }

// Status returns the current portfolio snapshot.
func (e *Engine) Status() domain.PortfolioStatus {
	return e.portfolio.Status()
}

// RunDailyCycle runs one full cycle and returns its report. Cycles never
// overlap; a call made while another cycle runs fails with
// domain.ErrCycleInProgress. Data failures inside the cycle are recorded in
// the report rather than returned.
func (e *Engine) RunDailyCycle(ctx context.Context) (domain.CycleReport, error) {
	if !e.running.TryLock() {
		return domain.CycleReport{}, domain.ErrCycleInProgress
	}
	defer e.running.Unlock()

	if e.locker != nil {
		unlock, err := e.locker.Acquire(ctx, e.cfg.LockKey, e.cfg.LockTTL)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			return domain.CycleReport{}, fmt.Errorf("engine: %w: %w", domain.ErrCycleInProgress, err)
		case err != nil:
			e.logger.WarnContext(ctx, "cycle lock unavailable, continuing without it",
				slog.String("error", err.Error()),
			)
		default:
			defer unlock()
		}
	}

	report := domain.CycleReport{
		ID:         uuid.NewString(),
		StartedAt:  e.now(),
		Candidates: []domain.ScoredCandidate{},
		Opened:     []domain.Position{},
		Decisions:  []domain.RiskDecision{},
	}
	logger := e.logger.With(slog.String("cycle_id", report.ID))
	logger.InfoContext(ctx, "cycle started")

	// Step 1: rank candidates for the available capacity.
	candidates, err := e.selector.SelectCandidates(ctx, e.portfolio.MaxPositions())
	if err != nil {
		logger.WarnContext(ctx, "candidate selection failed", slog.String("error", err.Error()))
		report.Errors = append(report.Errors, err.Error())
	}
	if candidates != nil {
		report.Candidates = candidates
	}

	// Step 2: buy into free slots in rank order.
	opened, rejected := e.portfolio.OpenPositions(ctx, report.Candidates)
	report.Opened = append(report.Opened, opened...)
	report.Rejected = rejected
	for _, pos := range opened {
		e.recordTrade(ctx, domain.TradeRecord{
			ID:         uuid.NewString(),
			CycleID:    report.ID,
			Symbol:     pos.Symbol,
			Side:       domain.SideBuy,
			Quantity:   pos.Quantity,
			Price:      pos.EntryPrice,
			Amount:     pos.CostBasis,
			ExecutedAt: pos.EntryTimestamp,
		})
	}

	// Step 3: risk-check every holding, including ones opened above.
	for _, sym := range e.portfolio.Symbols() {
		if err := ctx.Err(); err != nil {
			report.Errors = append(report.Errors, err.Error())
			break
		}
		report.Decisions = append(report.Decisions, e.checkRisk(ctx, logger, report.ID, sym))
	}

	report.FinishedAt = e.now()
	report.Status = e.portfolio.Status()
	e.remember(report)

	logger.InfoContext(ctx, "cycle finished",
		slog.Int("candidates", len(report.Candidates)),
		slog.Int("opened", len(report.Opened)),
		slog.Int("sells", len(report.Sells())),
		slog.Float64("cash", report.Status.Cash),
		slog.Int("positions", report.Status.PositionCount),
		slog.Duration("elapsed", report.Duration()),
	)

	for _, o := range e.observers {
		o.CycleCompleted(ctx, report)
	}
	return report, ctx.Err()
}

func (e *Engine) checkRisk(ctx context.Context, logger *slog.Logger, cycleID, sym string) domain.RiskDecision {
	score := e.risk.ScoreRisk(ctx, sym)
	d := domain.RiskDecision{Symbol: sym, RiskScore: score}

	ratio, sell := e.tiers.SellRatio(score)
	if !sell {
		return d
	}
	d.SellRatio = ratio

	res, err := e.portfolio.ReducePosition(ctx, sym, ratio)
	if err != nil {
		logger.WarnContext(ctx, "reduce position failed",
			slog.String("symbol", sym),
			slog.Float64("risk", score),
			slog.String("error", err.Error()),
		)
		d.Error = err.Error()
		return d
	}
	if res == nil {
		return d
	}
	d.Sell = res
	e.recordTrade(ctx, domain.TradeRecord{
		ID:          uuid.NewString(),
		CycleID:     cycleID,
		Symbol:      sym,
		Side:        domain.SideSell,
		Quantity:    res.Quantity,
		Price:       res.Price,
		Amount:      res.Proceeds,
		RiskScore:   &score,
		RealizedPnL: res.RealizedPnL,
		ExecutedAt:  res.ExecutedAt,
	})
	return d
}

func (e *Engine) recordTrade(ctx context.Context, t domain.TradeRecord) {
	if e.trades != nil {
		e.trades.Record(ctx, t)
	}
}

func (e *Engine) remember(r domain.CycleReport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reports = append(e.reports, r)
	if len(e.reports) > e.cfg.RecentReports {
		e.reports = e.reports[len(e.reports)-e.cfg.RecentReports:]
	}
}

// LastReport returns the most recent cycle report.
func (e *Engine) LastReport() (domain.CycleReport, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.reports) == 0 {
		return domain.CycleReport{}, false
	}
	return e.reports[len(e.reports)-1], true
}

// RecentReports returns up to limit reports, newest first.
func (e *Engine) RecentReports(limit int) []domain.CycleReport {
	if limit <= 0 {
		limit = 10
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.reports)
	if limit > n {
		limit = n
	}
	out := make([]domain.CycleReport, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, e.reports[i])
	}
	return out
}
