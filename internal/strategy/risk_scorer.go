package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// Normalization modes for raw risk inputs.
const (
	// NormalizeRolling scales each input against a rolling window of past
	// inputs of the same kind.
	NormalizeRolling = "rolling"
	// NormalizeSingleSample scales each input against itself alone, which
	// always yields 0.
	NormalizeSingleSample = "single_sample"
)

// fallbackRisk is the score reported when risk cannot be computed.
const fallbackRisk = 1.0

// RiskConfig tunes RiskScorer.
type RiskConfig struct {
	LookbackDays     int
	VolumeWeight     float64
	PriceWeight      float64
	VolatilityWeight float64
	Normalization    string
	WindowSize       int
	HistoryCap       int
}

// DefaultRiskConfig returns the standard risk parameters.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		LookbackDays:     7,
		VolumeWeight:     0.3,
		PriceWeight:      0.3,
		VolatilityWeight: 0.4,
		Normalization:    NormalizeRolling,
		WindowSize:       30,
		HistoryCap:       30,
	}
}

// RiskInputs are the raw, unnormalized risk measures of a short history.
type RiskInputs struct {
	// Volume is the relative deviation of the latest volume from the mean of
	// the earlier volumes.
	Volume float64
	// Price is the relative change from the first to the last close.
	Price float64
	// Volatility is the standard deviation of daily log returns.
	Volatility float64
}

// ComputeRiskInputs derives RiskInputs from ascending daily bars. It needs at
// least two bars with positive closes and a non-zero earlier volume.
func ComputeRiskInputs(bars []domain.Bar) (RiskInputs, error) {
	if len(bars) < 2 {
		return RiskInputs{}, fmt.Errorf("risk inputs from %d bars: %w", len(bars), domain.ErrInsufficientHistory)
	}
	closes := domain.Closes(bars)
	for _, c := range closes {
		if c <= 0 || !finite(c) {
			return RiskInputs{}, fmt.Errorf("risk inputs: invalid close %v: %w", c, domain.ErrDataUnavailable)
		}
	}
	volumes := domain.Volumes(bars)
	prior := mean(volumes[:len(volumes)-1])
	if prior <= 0 {
		return RiskInputs{}, fmt.Errorf("risk inputs: no prior volume: %w", domain.ErrInsufficientHistory)
	}

	in := RiskInputs{
		Volume:     math.Abs(volumes[len(volumes)-1]-prior) / prior,
		Price:      math.Abs(closes[len(closes)-1]-closes[0]) / closes[0],
		Volatility: stddev(LogReturns(closes)),
	}
	if !finite(in.Volume, in.Price, in.Volatility) {
		return RiskInputs{}, fmt.Errorf("risk inputs: non-finite result: %w", domain.ErrDataUnavailable)
	}
	return in, nil
}

// normalizer maps a raw input onto [0, 1].
type normalizer interface {
	normalize(x float64) float64
}

// singleSample scales a value against a sample set containing only itself.
type singleSample struct{}

func (singleSample) normalize(float64) float64 { return 0 }

// rollingMinMax scales against the min and max of the last size inputs,
// including the current one. A window with no spread yields 0.
type rollingMinMax struct {
	size   int
	values []float64
}

func (r *rollingMinMax) normalize(x float64) float64 {
	r.values = append(r.values, x)
	if len(r.values) > r.size {
		r.values = r.values[len(r.values)-r.size:]
	}
	lo, hi := floats.Min(r.values), floats.Max(r.values)
	if hi == lo {
		return 0
	}
	return (x - lo) / (hi - lo)
}

func newNormalizer(mode string, size int) normalizer {
	if mode == NormalizeSingleSample {
		return singleSample{}
	}
	return &rollingMinMax{size: max(size, 1)}
}

// RiskScorer scores the short-term risk of a held symbol on [0, 1] and keeps
// a bounded history of the scores it produced.
type RiskScorer struct {
	port   domain.MarketDataPort
	cfg    RiskConfig
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	volume     normalizer
	price      normalizer
	volatility normalizer
	history    []domain.RiskRecord
	bySymbol   map[string][]domain.RiskRecord
}

// NewRiskScorer creates a RiskScorer reading from port.
func NewRiskScorer(port domain.MarketDataPort, cfg RiskConfig, logger *slog.Logger) *RiskScorer {
	if cfg.HistoryCap < 1 {
		cfg.HistoryCap = 30
	}
	return &RiskScorer{
		port:       port,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "risk_scorer")),
		now:        func() time.Time { return time.Now().UTC() },
		volume:     newNormalizer(cfg.Normalization, cfg.WindowSize),
		price:      newNormalizer(cfg.Normalization, cfg.WindowSize),
		volatility: newNormalizer(cfg.Normalization, cfg.WindowSize),
		bySymbol:   make(map[string][]domain.RiskRecord),
	}
}

// ScoreRisk returns the risk score of symbol. Any fetch or computation
// failure is logged and scored as 1.0, the maximum risk. Every score is
// recorded in the history.
func (r *RiskScorer) ScoreRisk(ctx context.Context, symbol string) float64 {
	score, err := r.score(ctx, symbol)
	if err != nil {
		r.logger.WarnContext(ctx, "risk score fell back to maximum",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		r.record(symbol, fallbackRisk, true)
		return fallbackRisk
	}
	r.logger.DebugContext(ctx, "risk scored",
		slog.String("symbol", symbol),
		slog.Float64("score", score),
	)
	r.record(symbol, score, false)
	return score
}

func (r *RiskScorer) score(ctx context.Context, symbol string) (float64, error) {
	end := r.now()
	start := end.AddDate(0, 0, -r.cfg.LookbackDays)
	bars, err := r.port.FetchDailyHistory(ctx, symbol, start, end)
	if err != nil {
		return 0, fmt.Errorf("risk_scorer: history %q: %w", symbol, asUnavailable(err))
	}
	in, err := ComputeRiskInputs(bars)
	if err != nil {
		return 0, fmt.Errorf("risk_scorer: %q: %w", symbol, err)
	}

	r.mu.Lock()
	nv := r.volume.normalize(in.Volume)
	np := r.price.normalize(in.Price)
	nx := r.volatility.normalize(in.Volatility)
	r.mu.Unlock()

	composite := r.cfg.VolumeWeight*nv + r.cfg.PriceWeight*np + r.cfg.VolatilityWeight*nx
	return clamp(composite, 0, 1), nil
}

func (r *RiskScorer) record(symbol string, score float64, fallback bool) {
	rec := domain.RiskRecord{Symbol: symbol, Timestamp: r.now(), Score: score, Fallback: fallback}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = appendCapped(r.history, rec, r.cfg.HistoryCap)
	r.bySymbol[symbol] = appendCapped(r.bySymbol[symbol], rec, r.cfg.HistoryCap)
}

func appendCapped(recs []domain.RiskRecord, rec domain.RiskRecord, limit int) []domain.RiskRecord {
	recs = append(recs, rec)
	if len(recs) > limit {
		recs = append(recs[:0:0], recs[len(recs)-limit:]...)
	}
	return recs
}

// Records returns the recorded scores across all symbols, oldest first.
func (r *RiskScorer) Records() []domain.RiskRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.RiskRecord, len(r.history))
	copy(out, r.history)
	return out
}

// RecentDates returns the timestamps of the recorded scores, oldest first.
func (r *RiskScorer) RecentDates() []time.Time {
	recs := r.Records()
	out := make([]time.Time, len(recs))
	for i, rec := range recs {
		out[i] = rec.Timestamp
	}
	return out
}

// RecentScores returns the recorded scores, oldest first.
func (r *RiskScorer) RecentScores() []float64 {
	recs := r.Records()
	out := make([]float64, len(recs))
	for i, rec := range recs {
		out[i] = rec.Score
	}
	return out
}

// History returns the recorded scores of one symbol, oldest first.
func (r *RiskScorer) History(symbol string) []domain.RiskRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	recs := r.bySymbol[symbol]
	out := make([]domain.RiskRecord, len(recs))
	copy(out, recs)
	return out
}

// Latest returns the most recent score recorded for symbol.
func (r *RiskScorer) Latest(symbol string) (domain.RiskRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	recs := r.bySymbol[symbol]
	if len(recs) == 0 {
		return domain.RiskRecord{}, false
	}
	return recs[len(recs)-1], true
}
