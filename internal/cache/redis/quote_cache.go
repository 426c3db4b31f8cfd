package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// quoteKeyTTL bounds how long a quote hash survives in Redis. Freshness is
// decided by the reader from the stored timestamp.
const quoteKeyTTL = 24 * time.Hour

// QuoteCache implements domain.QuoteCache with one hash per symbol holding
// the fields "price", "name" and "ts" (Unix nanoseconds).
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by c.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

// SetQuote stores q under its symbol.
func (qc *QuoteCache) SetQuote(ctx context.Context, q domain.Quote) error {
	k := key("quote", q.Symbol)
	err := qc.rdb.HSet(ctx, k,
		"price", strconv.FormatFloat(q.LastPrice, 'f', -1, 64),
		"name", q.Name,
		"ts", strconv.FormatInt(q.Timestamp.UnixNano(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("redis: set quote %s: %w", q.Symbol, err)
	}
	if err := qc.rdb.Expire(ctx, k, quoteKeyTTL).Err(); err != nil {
		return fmt.Errorf("redis: expire quote %s: %w", q.Symbol, err)
	}
	return nil
}

// GetQuote returns the cached quote for symbol, or domain.ErrNotFound.
func (qc *QuoteCache) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	vals, err := qc.rdb.HGetAll(ctx, key("quote", symbol)).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", symbol, err)
	}
	priceStr, ok := vals["price"]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse quote price %s: %w", symbol, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse quote ts %s: %w", symbol, err)
	}
	return domain.Quote{
		Symbol:    symbol,
		Name:      vals["name"],
		LastPrice: price,
		Timestamp: time.Unix(0, tsNano).UTC(),
	}, nil
}

var _ domain.QuoteCache = (*QuoteCache)(nil)
