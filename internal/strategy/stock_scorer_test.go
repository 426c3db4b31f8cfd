package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

func scorerPort() *fakePort {
	p := newFakePort()
	p.themes = []domain.Theme{
		{ID: "weak", Name: "Weak", PctChange: -5},
		{ID: "strong", Name: "Strong", PctChange: 5},
	}
	p.members["strong"] = []domain.ThemeMember{
		{Symbol: "X", Name: "Rising"},
		{Symbol: "Y", Name: "Flat"},
	}
	p.members["weak"] = []domain.ThemeMember{
		{Symbol: "Z", Name: "Broken"},
		{Symbol: "X", Name: "Rising again"},
		{Symbol: "W", Name: "New listing"},
	}
	p.bars["X"] = series([]float64{100, 101, 102, 103, 104, 105}, flat(6, 1000))
	p.bars["Y"] = series(flat(6, 50), flat(6, 1000))
	p.barErr["Z"] = errors.New("upstream 503")
	p.bars["W"] = series([]float64{12}, []float64{500})
	return p
}

func TestSelectCandidatesRanksByComposite(t *testing.T) {
	port := scorerPort()
	s := NewStockScorer(port, DefaultScorerConfig(), discardLogger())

	got, err := s.SelectCandidates(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, got, 3)

	wantX := 0.4*((math.Log(105.0/100.0)/5+0.1)/0.2) + 0.3*0.5 + 0.3*0.75
	assert.Equal(t, "X", got[0].Symbol)
	assert.InDelta(t, wantX, got[0].Score, 1e-9)
	assert.Equal(t, 105.0, got[0].Price)
	assert.Equal(t, "Rising", got[0].Name)
	assert.Equal(t, "Strong", got[0].ThemeName)

	assert.Equal(t, "Y", got[1].Symbol)
	assert.InDelta(t, 0.575, got[1].Score, 1e-9)

	// A single bar contributes no momentum or volume but is still ranked.
	assert.Equal(t, "W", got[2].Symbol)
	assert.InDelta(t, 0.3*0.25, got[2].Score, 1e-9)
	assert.Equal(t, 0.0, got[2].Momentum)
	assert.Equal(t, 0.0, got[2].Volume)
	assert.Equal(t, 12.0, got[2].Price)

	// X appears in two themes but is fetched once.
	assert.Equal(t, 1, port.calls["X"])
}

func TestSelectCandidatesTruncatesToMaxCount(t *testing.T) {
	s := NewStockScorer(scorerPort(), DefaultScorerConfig(), discardLogger())

	got, err := s.SelectCandidates(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "X", got[0].Symbol)

	got, err = s.SelectCandidates(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSelectCandidatesUniverseFailure(t *testing.T) {
	port := scorerPort()
	port.themesErr = errors.New("rankings down")
	s := NewStockScorer(port, DefaultScorerConfig(), discardLogger())

	got, err := s.SelectCandidates(context.Background(), 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSelectCandidatesOnlyTopThemes(t *testing.T) {
	port := newFakePort()
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("t%02d", i)
		port.themes = append(port.themes, domain.Theme{ID: id, PctChange: float64(i)})
		sym := fmt.Sprintf("S%02d", i)
		port.members[id] = []domain.ThemeMember{{Symbol: sym}}
		port.bars[sym] = series(flat(6, 10), flat(6, 100))
	}
	s := NewStockScorer(port, DefaultScorerConfig(), discardLogger())

	got, err := s.SelectCandidates(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, "S11", got[0].Symbol)
	assert.Equal(t, "S02", got[9].Symbol)
	assert.Zero(t, port.calls["S00"])
	assert.Zero(t, port.calls["S01"])
	// Without a name the symbol is used.
	assert.Equal(t, "S11", got[0].Name)
}

func TestSelectCandidatesStableOnTies(t *testing.T) {
	port := newFakePort()
	port.themes = []domain.Theme{{ID: "a", PctChange: 1}}
	syms := []string{"P", "Q", "R", "S"}
	for _, sym := range syms {
		port.members["a"] = append(port.members["a"], domain.ThemeMember{Symbol: sym})
		port.bars[sym] = series(flat(6, 20), flat(6, 100))
	}
	cfg := DefaultScorerConfig()
	cfg.Concurrency = 4
	s := NewStockScorer(port, cfg, discardLogger())

	got, err := s.SelectCandidates(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, sym := range syms {
		assert.Equal(t, sym, got[i].Symbol)
	}
}

func TestSelectCandidatesExcludesInvalidCloses(t *testing.T) {
	port := newFakePort()
	port.themes = []domain.Theme{{ID: "a"}}
	port.members["a"] = []domain.ThemeMember{{Symbol: "BAD"}, {Symbol: "EMPTY"}, {Symbol: "OK"}}
	port.bars["BAD"] = series([]float64{10, 0, 12}, flat(3, 1))
	port.bars["EMPTY"] = nil
	port.bars["OK"] = series([]float64{10, 11}, flat(2, 1))
	s := NewStockScorer(port, DefaultScorerConfig(), discardLogger())

	got, err := s.SelectCandidates(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "OK", got[0].Symbol)
}
