package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// BarCache implements domain.BarCache. Bars and theme members are stored as
// JSON strings that expire after the caller's TTL.
type BarCache struct {
	rdb *redis.Client
}

// NewBarCache creates a BarCache backed by c.
func NewBarCache(c *Client) *BarCache {
	return &BarCache{rdb: c.Underlying()}
}

// SetBars stores bars under k for ttl.
func (bc *BarCache) SetBars(ctx context.Context, k string, bars []domain.Bar, ttl time.Duration) error {
	return bc.setJSON(ctx, key("bars", k), bars, ttl)
}

// GetBars returns the bars stored under k, or domain.ErrNotFound.
func (bc *BarCache) GetBars(ctx context.Context, k string) ([]domain.Bar, error) {
	var bars []domain.Bar
	if err := bc.getJSON(ctx, key("bars", k), &bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// SetMembers stores the member list of themeID for ttl.
func (bc *BarCache) SetMembers(ctx context.Context, themeID string, members []domain.ThemeMember, ttl time.Duration) error {
	return bc.setJSON(ctx, key("members", themeID), members, ttl)
}

// GetMembers returns the cached members of themeID, or domain.ErrNotFound.
func (bc *BarCache) GetMembers(ctx context.Context, themeID string) ([]domain.ThemeMember, error) {
	var members []domain.ThemeMember
	if err := bc.getJSON(ctx, key("members", themeID), &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (bc *BarCache) setJSON(ctx context.Context, k string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: marshal %s: %w", k, err)
	}
	if err := bc.rdb.Set(ctx, k, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", k, err)
	}
	return nil
}

func (bc *BarCache) getJSON(ctx context.Context, k string, v any) error {
	data, err := bc.rdb.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis: get %s: %w", k, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("redis: unmarshal %s: %w", k, err)
	}
	return nil
}

var _ domain.BarCache = (*BarCache)(nil)
