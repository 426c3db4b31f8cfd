package strategy

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// LogReturns returns ln(p[i]/p[i-1]) for consecutive closes. Callers must
// ensure every close is positive.
func LogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out[i-1] = math.Log(closes[i] / closes[i-1])
	}
	return out
}

// MomentumScore averages the last window log returns and maps the mean onto
// (m + 0.1) / 0.2. A +10% mean daily return scores 1 and -10% scores 0; the
// result is not clamped. Fewer than two closes score 0.
func MomentumScore(closes []float64, window int) float64 {
	returns := LogReturns(closes)
	if len(returns) == 0 {
		return 0
	}
	if window > 0 && len(returns) > window {
		returns = returns[len(returns)-window:]
	}
	return (mean(returns) + 0.1) / 0.2
}

// VolumeScore compares the mean of the last recent volumes with the mean of
// all earlier volumes and maps the relative change onto [0, 1]. Histories
// without earlier volumes, or whose earlier mean is zero, score 0.
func VolumeScore(volumes []float64, recent int) float64 {
	if len(volumes) < 2 || recent < 1 || len(volumes) <= recent {
		return 0
	}
	split := len(volumes) - recent
	past := mean(volumes[:split])
	if past <= 0 {
		return 0
	}
	change := (mean(volumes[split:]) - past) / past
	return clamp((change+1)/2, 0, 1)
}

// ThemeScore maps a theme percentage change onto [0, 1]; -10% or worse is 0
// and +10% or better is 1.
func ThemeScore(pctChange float64) float64 {
	return clamp((pctChange+10)/20, 0, 1)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// stddev is the population standard deviation.
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	_, std := stat.PopMeanStdDev(xs, nil)
	return std
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
