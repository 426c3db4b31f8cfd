package marketdata

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingPort counts calls and returns canned data or err.
type countingPort struct {
	mu      sync.Mutex
	calls   map[string]int
	err     error
	delay   time.Duration
	bars    []domain.Bar
	members []domain.ThemeMember
	price   float64
}

func newCountingPort() *countingPort {
	return &countingPort{calls: make(map[string]int)}
}

func (p *countingPort) hit(op string) error {
	p.mu.Lock()
	p.calls[op]++
	err, delay := p.err, p.delay
	p.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return err
}

func (p *countingPort) count(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *countingPort) FetchDailyHistory(_ context.Context, symbol string, _, _ time.Time) ([]domain.Bar, error) {
	if err := p.hit("history"); err != nil {
		return nil, err
	}
	return p.bars, nil
}

func (p *countingPort) FetchThemeRankings(context.Context) ([]domain.Theme, error) {
	if err := p.hit("rankings"); err != nil {
		return nil, err
	}
	return []domain.Theme{{ID: "t", PctChange: 1}}, nil
}

func (p *countingPort) FetchThemeMembers(context.Context, string) ([]domain.ThemeMember, error) {
	if err := p.hit("members"); err != nil {
		return nil, err
	}
	return p.members, nil
}

func (p *countingPort) FetchQuote(_ context.Context, symbol string) (domain.Quote, error) {
	if err := p.hit("quote"); err != nil {
		return domain.Quote{}, err
	}
	return domain.Quote{Symbol: symbol, LastPrice: p.price}, nil
}

type memoryCache struct {
	mu      sync.Mutex
	bars    map[string][]domain.Bar
	members map[string][]domain.ThemeMember
	quotes  map[string]domain.Quote
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		bars:    make(map[string][]domain.Bar),
		members: make(map[string][]domain.ThemeMember),
		quotes:  make(map[string]domain.Quote),
	}
}

func (c *memoryCache) SetBars(_ context.Context, key string, bars []domain.Bar, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bars[key] = bars
	return nil
}

func (c *memoryCache) GetBars(_ context.Context, key string) ([]domain.Bar, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.bars[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

func (c *memoryCache) SetMembers(_ context.Context, themeID string, m []domain.ThemeMember, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members[themeID] = m
	return nil
}

func (c *memoryCache) GetMembers(_ context.Context, themeID string) ([]domain.ThemeMember, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.members[themeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (c *memoryCache) SetQuote(_ context.Context, q domain.Quote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[q.Symbol] = q
	return nil
}

func (c *memoryCache) GetQuote(_ context.Context, symbol string) (domain.Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.quotes[symbol]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return q, nil
}
