package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}

func newScheduler(t *testing.T, holidays ...string) *Scheduler {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	s, err := New(loc, holidays, discardLogger())
	require.NoError(t, err)
	noop := func(context.Context) {}
	require.NoError(t, s.Add(Job{Name: "summary", At: mustTime(t, "15:00"), Run: noop}))
	require.NoError(t, s.Add(Job{Name: "open", At: mustTime(t, "09:30"), Run: noop}))
	require.NoError(t, s.Add(Job{Name: "afternoon", At: mustTime(t, "14:30"), Run: noop}))
	return s
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 9, Minute: 30}, tod)
	assert.Equal(t, "09:30", tod.String())
	assert.Equal(t, "30 9 * * 1-5", tod.cronSpec())

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
}

func TestNewRejectsBadHoliday(t *testing.T) {
	_, err := New(time.UTC, []string{"2024/12/25"}, discardLogger())
	assert.Error(t, err)
}

func TestAddRegistersCronEntries(t *testing.T) {
	s := newScheduler(t)
	assert.Len(t, s.cron.Entries(), 3)
}

func TestNextSameDay(t *testing.T) {
	s := newScheduler(t)
	// Tuesday 10:00 New York.
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, s.loc)
	at, due := s.Next(now)
	require.Len(t, due, 1)
	assert.Equal(t, "afternoon", due[0].Name)
	assert.True(t, at.Equal(time.Date(2024, 3, 5, 14, 30, 0, 0, s.loc)), "got %s", at)
}

func TestNextSkipsWeekendAndHoliday(t *testing.T) {
	s := newScheduler(t, "2024-03-11")
	// Friday after the last job.
	now := time.Date(2024, 3, 8, 16, 0, 0, 0, s.loc)
	at, due := s.Next(now)
	require.Len(t, due, 1)
	assert.Equal(t, "open", due[0].Name)
	assert.True(t, at.Equal(time.Date(2024, 3, 12, 9, 30, 0, 0, s.loc)), "got %s", at)
}

func TestNextExactlyAtJobMovesOn(t *testing.T) {
	s := newScheduler(t)
	now := time.Date(2024, 3, 5, 9, 30, 0, 0, s.loc)
	at, due := s.Next(now)
	require.Len(t, due, 1)
	assert.Equal(t, "afternoon", due[0].Name)
	assert.Equal(t, 14, at.Hour())
}

func TestNextGroupsSimultaneousJobs(t *testing.T) {
	s, err := New(time.UTC, nil, discardLogger())
	require.NoError(t, err)
	require.NoError(t, s.Add(Job{Name: "a", At: TimeOfDay{9, 30}}))
	require.NoError(t, s.Add(Job{Name: "b", At: TimeOfDay{9, 30}}))
	_, due := s.Next(time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC))
	require.Len(t, due, 2)
	assert.Equal(t, "a", due[0].Name)
	assert.Equal(t, "b", due[1].Name)
}

func TestNextWithoutJobs(t *testing.T) {
	s, err := New(time.UTC, nil, discardLogger())
	require.NoError(t, err)
	at, due := s.Next(time.Now())
	assert.True(t, at.IsZero())
	assert.Empty(t, due)
}

func TestIsTradingDay(t *testing.T) {
	s := newScheduler(t, "2024-07-04")
	assert.True(t, s.IsTradingDay(time.Date(2024, 7, 3, 12, 0, 0, 0, s.loc)))
	assert.False(t, s.IsTradingDay(time.Date(2024, 7, 4, 12, 0, 0, 0, s.loc)))
	assert.False(t, s.IsTradingDay(time.Date(2024, 7, 6, 12, 0, 0, 0, s.loc)))
}

func TestFireSkipsHolidays(t *testing.T) {
	s := newScheduler(t, "2024-07-04")
	var ran []string
	job := Job{Name: "cycle", At: TimeOfDay{9, 30}, Run: func(context.Context) { ran = append(ran, "cycle") }}

	s.now = func() time.Time { return time.Date(2024, 7, 4, 9, 30, 0, 0, s.loc) }
	s.fire(context.Background(), job)
	assert.Empty(t, ran)

	s.now = func() time.Time { return time.Date(2024, 7, 5, 9, 30, 0, 0, s.loc) }
	s.fire(context.Background(), job)
	assert.Equal(t, []string{"cycle"}, ran)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.fire(ctx, job)
	assert.Len(t, ran, 1)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := newScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
