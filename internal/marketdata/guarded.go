// Package marketdata holds MarketDataPort implementations and the decorators
// that guard and cache them.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// GuardConfig tunes Guarded.
type GuardConfig struct {
	// Timeout bounds every call, including the wait for a rate token.
	Timeout         time.Duration
	RequestsPerSec  float64
	Burst           int
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Guarded wraps a MarketDataPort with a per-call timeout, a token bucket and
// a circuit breaker. Every failure it returns wraps domain.ErrDataUnavailable
// except domain.ErrNotFound, which passes through untouched and does not
// count against the breaker.
type Guarded struct {
	next    domain.MarketDataPort
	cfg     GuardConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

var _ domain.MarketDataPort = (*Guarded)(nil)

// NewGuarded wraps next.
func NewGuarded(next domain.MarketDataPort, cfg GuardConfig, logger *slog.Logger) *Guarded {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 3
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	logger = logger.With(slog.String("component", "marketdata_guard"))

	st := gobreaker.Settings{Name: "market_data"}
	st.Timeout = cfg.BreakerCooldown
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= cfg.BreakerFailures
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn("circuit breaker state changed",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	}

	return &Guarded{
		next:    next,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(st),
		logger:  logger,
	}
}

// BreakerState reports the circuit breaker state ("closed", "half-open" or
// "open").
func (g *Guarded) BreakerState() string {
	return g.breaker.State().String()
}

// outcome carries a result through the breaker. A not-found error, and a
// call abandoned because the caller's own context ended, are successful
// calls from the breaker's point of view. Only upstream errors and expiry of
// the guard's timeout count as failures.
type outcome[T any] struct {
	val T
	err error
}

func guard[T any](ctx context.Context, g *Guarded, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	if err := g.limiter.Wait(ctx); err != nil {
		return zero, fmt.Errorf("marketdata: %s: %w: %w: %w", op, domain.ErrDataUnavailable, domain.ErrRateLimited, err)
	}

	res, err := g.breaker.Execute(func() (interface{}, error) {
		val, err := withContext(ctx, fn)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return outcome[T]{err: err}, nil
		case err != nil && parent.Err() != nil:
			return outcome[T]{err: fmt.Errorf("marketdata: %s: %w", op, err)}, nil
		}
		if err != nil {
			return nil, err
		}
		return outcome[T]{val: val}, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrDataUnavailable) {
			return zero, fmt.Errorf("marketdata: %s: %w", op, err)
		}
		return zero, fmt.Errorf("marketdata: %s: %w: %w", op, domain.ErrDataUnavailable, err)
	}
	out := res.(outcome[T])
	return out.val, out.err
}

// withContext runs fn and gives up when ctx ends, for upstream clients that
// do not observe cancellation themselves.
func withContext[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (g *Guarded) FetchDailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	return guard(ctx, g, "history "+symbol, func(ctx context.Context) ([]domain.Bar, error) {
		return g.next.FetchDailyHistory(ctx, symbol, start, end)
	})
}

func (g *Guarded) FetchThemeRankings(ctx context.Context) ([]domain.Theme, error) {
	return guard(ctx, g, "theme rankings", g.next.FetchThemeRankings)
}

func (g *Guarded) FetchThemeMembers(ctx context.Context, themeID string) ([]domain.ThemeMember, error) {
	return guard(ctx, g, "theme members "+themeID, func(ctx context.Context) ([]domain.ThemeMember, error) {
		return g.next.FetchThemeMembers(ctx, themeID)
	})
}

func (g *Guarded) FetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	return guard(ctx, g, "quote "+symbol, func(ctx context.Context) (domain.Quote, error) {
		return g.next.FetchQuote(ctx, symbol)
	})
}
