package domain

import (
	"context"
	"time"
)

// QuoteCache provides fast access to recently fetched quotes.
type QuoteCache interface {
	SetQuote(ctx context.Context, q Quote) error
	// GetQuote returns ErrNotFound when no quote is cached.
	GetQuote(ctx context.Context, symbol string) (Quote, error)
}

// BarCache stores daily history and theme membership with a TTL.
type BarCache interface {
	SetBars(ctx context.Context, key string, bars []Bar, ttl time.Duration) error
	GetBars(ctx context.Context, key string) ([]Bar, error)
	SetMembers(ctx context.Context, themeID string, members []ThemeMember, ttl time.Duration) error
	GetMembers(ctx context.Context, themeID string) ([]ThemeMember, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of engine events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Bus channels.
const (
	ChannelTrades = "themetrader:trades"
	ChannelCycles = "themetrader:cycles"
)
