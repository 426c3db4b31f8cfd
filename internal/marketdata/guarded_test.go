package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

func testGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout:         200 * time.Millisecond,
		RequestsPerSec:  1000,
		Burst:           100,
		BreakerFailures: 3,
		BreakerCooldown: time.Hour,
	}
}

func TestGuardedPassesThrough(t *testing.T) {
	up := newCountingPort()
	up.price = 42
	g := NewGuarded(up, testGuardConfig(), discardLogger())

	q, err := g.FetchQuote(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, 42.0, q.LastPrice)
	assert.Equal(t, "closed", g.BreakerState())
}

func TestGuardedWrapsFailuresAndTrips(t *testing.T) {
	up := newCountingPort()
	up.err = errors.New("502 bad gateway")
	g := NewGuarded(up, testGuardConfig(), discardLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := g.FetchThemeRankings(ctx)
		assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	}
	assert.Equal(t, "open", g.BreakerState())

	// Open breaker short-circuits without calling upstream.
	_, err := g.FetchDailyHistory(ctx, "X", time.Now().AddDate(0, 0, -7), time.Now())
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.Equal(t, 3, up.count("rankings"))
	assert.Zero(t, up.count("history"))
}

func TestGuardedNotFoundDoesNotTrip(t *testing.T) {
	up := newCountingPort()
	up.err = domain.ErrNotFound
	g := NewGuarded(up, testGuardConfig(), discardLogger())

	for i := 0; i < 5; i++ {
		_, err := g.FetchQuote(context.Background(), "NOPE")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NotErrorIs(t, err, domain.ErrDataUnavailable)
	}
	assert.Equal(t, "closed", g.BreakerState())
}

func TestGuardedTimeoutIsUnavailable(t *testing.T) {
	up := newCountingPort()
	up.delay = time.Second
	cfg := testGuardConfig()
	cfg.Timeout = 20 * time.Millisecond
	g := NewGuarded(up, cfg, discardLogger())

	start := time.Now()
	_, err := g.FetchThemeMembers(context.Background(), "t")
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestGuardedCallerDeadlineDoesNotTrip(t *testing.T) {
	up := newCountingPort()
	up.delay = time.Second
	cfg := testGuardConfig()
	cfg.BreakerFailures = 1
	g := NewGuarded(up, cfg, discardLogger())

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := g.FetchQuote(ctx, "X")
		cancel()
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, domain.ErrDataUnavailable)
	}
	assert.Equal(t, "closed", g.BreakerState())

	// Expiry of the guard's own timeout still counts.
	g.cfg.Timeout = 10 * time.Millisecond
	_, err := g.FetchQuote(context.Background(), "X")
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.Equal(t, "open", g.BreakerState())
}

func TestGuardedCancelledCallerDoesNotTrip(t *testing.T) {
	up := newCountingPort()
	up.delay = time.Second
	cfg := testGuardConfig()
	cfg.BreakerFailures = 1
	g := NewGuarded(up, cfg, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	_, err := g.FetchThemeRankings(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "closed", g.BreakerState())
}
