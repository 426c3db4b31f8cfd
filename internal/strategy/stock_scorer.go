package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// ScorerConfig tunes StockScorer.
type ScorerConfig struct {
	TopThemes        int
	HistoryDays      int
	MomentumWindow   int
	VolumeRecentDays int
	MomentumWeight   float64
	VolumeWeight     float64
	ThemeWeight      float64
	// Concurrency bounds parallel history fetches.
	Concurrency int
}

// DefaultScorerConfig returns the standard selection parameters.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		TopThemes:        10,
		HistoryDays:      30,
		MomentumWindow:   5,
		VolumeRecentDays: 3,
		MomentumWeight:   0.4,
		VolumeWeight:     0.3,
		ThemeWeight:      0.3,
		Concurrency:      8,
	}
}

// StockScorer ranks the members of the strongest themes by a weighted blend
// of price momentum, volume expansion and theme strength.
type StockScorer struct {
	port   domain.MarketDataPort
	cfg    ScorerConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewStockScorer creates a StockScorer reading from port.
func NewStockScorer(port domain.MarketDataPort, cfg ScorerConfig, logger *slog.Logger) *StockScorer {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &StockScorer{
		port:   port,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "stock_scorer")),
		now:    time.Now,
	}
}

type universeEntry struct {
	member domain.ThemeMember
	theme  domain.Theme
}

// universe returns the members of the top themes, strongest theme first. A
// symbol listed under several themes is kept once, under its strongest theme.
func (s *StockScorer) universe(ctx context.Context) ([]universeEntry, error) {
	themes, err := s.port.FetchThemeRankings(ctx)
	if err != nil {
		return nil, fmt.Errorf("stock_scorer: theme rankings: %w", asUnavailable(err))
	}
	ranked := make([]domain.Theme, len(themes))
	copy(ranked, themes)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PctChange > ranked[j].PctChange
	})
	if len(ranked) > s.cfg.TopThemes {
		ranked = ranked[:s.cfg.TopThemes]
	}

	seen := make(map[string]bool)
	var entries []universeEntry
	for _, theme := range ranked {
		members, err := s.port.FetchThemeMembers(ctx, theme.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "theme members unavailable",
				slog.String("theme", theme.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, m := range members {
			if m.Symbol == "" || seen[m.Symbol] {
				continue
			}
			seen[m.Symbol] = true
			entries = append(entries, universeEntry{member: m, theme: theme})
		}
	}
	return entries, nil
}

// SelectCandidates scores the universe and returns at most maxCount
// candidates, highest score first. Symbols whose data cannot be fetched are
// dropped. When the universe itself is unavailable the result is empty and
// the error wraps domain.ErrDataUnavailable.
func (s *StockScorer) SelectCandidates(ctx context.Context, maxCount int) ([]domain.ScoredCandidate, error) {
	if maxCount <= 0 {
		return []domain.ScoredCandidate{}, nil
	}
	entries, err := s.universe(ctx)
	if err != nil {
		return []domain.ScoredCandidate{}, err
	}

	end := s.now()
	start := end.AddDate(0, 0, -s.cfg.HistoryDays)
	scored := make([]*domain.ScoredCandidate, len(entries))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, e := range entries {
		g.Go(func() error {
			c, err := s.score(ctx, e, start, end)
			if err != nil {
				s.logger.WarnContext(ctx, "symbol excluded",
					slog.String("symbol", e.member.Symbol),
					slog.String("error", err.Error()),
				)
				return nil
			}
			scored[i] = &c
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return []domain.ScoredCandidate{}, fmt.Errorf("stock_scorer: %w", err)
	}

	out := make([]domain.ScoredCandidate, 0, len(scored))
	for _, c := range scored {
		if c != nil {
			out = append(out, *c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	scoredCount := len(out)
	if len(out) > maxCount {
		out = out[:maxCount]
	}

	s.logger.InfoContext(ctx, "candidates selected",
		slog.Int("universe", len(entries)),
		slog.Int("scored", scoredCount),
		slog.Int("selected", len(out)),
	)
	return out, nil
}

func (s *StockScorer) score(ctx context.Context, e universeEntry, start, end time.Time) (domain.ScoredCandidate, error) {
	sym := e.member.Symbol
	bars, err := s.port.FetchDailyHistory(ctx, sym, start, end)
	if err != nil {
		return domain.ScoredCandidate{}, fmt.Errorf("stock_scorer: history %q: %w", sym, asUnavailable(err))
	}
	if len(bars) == 0 {
		return domain.ScoredCandidate{}, fmt.Errorf("stock_scorer: history %q: %w", sym, domain.ErrInsufficientHistory)
	}
	closes := domain.Closes(bars)
	for _, c := range closes {
		if c <= 0 || !finite(c) {
			return domain.ScoredCandidate{}, fmt.Errorf("stock_scorer: %q has invalid close %v: %w", sym, c, domain.ErrDataUnavailable)
		}
	}

	momentum := MomentumScore(closes, s.cfg.MomentumWindow)
	volume := VolumeScore(domain.Volumes(bars), s.cfg.VolumeRecentDays)
	theme := ThemeScore(e.theme.PctChange)
	name := e.member.Name
	if name == "" {
		name = sym
	}
	return domain.ScoredCandidate{
		Symbol:    sym,
		Name:      name,
		Score:     s.cfg.MomentumWeight*momentum + s.cfg.VolumeWeight*volume + s.cfg.ThemeWeight*theme,
		Price:     closes[len(closes)-1],
		Momentum:  momentum,
		Volume:    volume,
		Theme:     theme,
		ThemeName: e.theme.Name,
	}, nil
}
