package marketdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// CacheConfig sets how long cached data stays fresh.
type CacheConfig struct {
	BarTTL    time.Duration
	QuoteTTL  time.Duration
	MemberTTL time.Duration
}

// Cached serves history, theme members and quotes from a cache in front of
// another MarketDataPort. Theme rankings are never cached. Cache failures are
// logged and fall through to the upstream port.
type Cached struct {
	next   domain.MarketDataPort
	bars   domain.BarCache
	quotes domain.QuoteCache
	cfg    CacheConfig
	logger *slog.Logger
	now    func() time.Time
}

var _ domain.MarketDataPort = (*Cached)(nil)

// NewCached wraps next.
func NewCached(next domain.MarketDataPort, bars domain.BarCache, quotes domain.QuoteCache, cfg CacheConfig, logger *slog.Logger) *Cached {
	return &Cached{
		next:   next,
		bars:   bars,
		quotes: quotes,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "marketdata_cache")),
		now:    time.Now,
	}
}

func historyKey(symbol string, start, end time.Time) string {
	return fmt.Sprintf("%s:%s:%s", symbol, start.UTC().Format(time.DateOnly), end.UTC().Format(time.DateOnly))
}

func (c *Cached) FetchDailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	key := historyKey(symbol, start, end)
	bars, err := c.bars.GetBars(ctx, key)
	if err == nil && len(bars) > 0 {
		return bars, nil
	}
	c.logMiss(ctx, "history", key, err)

	bars, err = c.next.FetchDailyHistory(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(bars) > 0 {
		if err := c.bars.SetBars(ctx, key, bars, c.cfg.BarTTL); err != nil {
			c.logger.WarnContext(ctx, "cache history failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
	return bars, nil
}

func (c *Cached) FetchThemeRankings(ctx context.Context) ([]domain.Theme, error) {
	return c.next.FetchThemeRankings(ctx)
}

func (c *Cached) FetchThemeMembers(ctx context.Context, themeID string) ([]domain.ThemeMember, error) {
	members, err := c.bars.GetMembers(ctx, themeID)
	if err == nil && len(members) > 0 {
		return members, nil
	}
	c.logMiss(ctx, "members", themeID, err)

	members, err = c.next.FetchThemeMembers(ctx, themeID)
	if err != nil {
		return nil, err
	}
	if len(members) > 0 {
		if err := c.bars.SetMembers(ctx, themeID, members, c.cfg.MemberTTL); err != nil {
			c.logger.WarnContext(ctx, "cache members failed", slog.String("theme", themeID), slog.String("error", err.Error()))
		}
	}
	return members, nil
}

func (c *Cached) FetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	q, err := c.quotes.GetQuote(ctx, symbol)
	if err == nil && c.now().Sub(q.Timestamp) <= c.cfg.QuoteTTL {
		return q, nil
	}
	c.logMiss(ctx, "quote", symbol, err)

	q, err = c.next.FetchQuote(ctx, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	if q.Timestamp.IsZero() {
		q.Timestamp = c.now()
	}
	if err := c.quotes.SetQuote(ctx, q); err != nil {
		c.logger.WarnContext(ctx, "cache quote failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
	}
	return q, nil
}

func (c *Cached) logMiss(ctx context.Context, kind, key string, err error) {
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		c.logger.WarnContext(ctx, "cache read failed",
			slog.String("kind", kind),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
