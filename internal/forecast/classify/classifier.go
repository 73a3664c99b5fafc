// Package classify derives the statistical shape of a normalized series.
package classify

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

// Config holds the tunable heuristics. Zero values fall back to defaults.
type Config struct {
	// SignificanceMultiplier scales the 1/sqrt(n) autocorrelation bound.
	SignificanceMultiplier float64
}

// DefaultConfig returns the standard 2/sqrt(n) significance bound.
func DefaultConfig() Config {
	return Config{SignificanceMultiplier: 2.0}
}

// candidateLagsDaily are the periods checked on a daily grid.
var candidateLagsDaily = []int{7, 12, 30, 365}

const minClassifiable = 4

// Classify never fails. Short or constant series come back non-seasonal
// with zero trend.
func Classify(s *domain.NormalizedSeries, cfg Config) domain.SeriesProfile {
	if cfg.SignificanceMultiplier <= 0 {
		cfg.SignificanceMultiplier = DefaultConfig().SignificanceMultiplier
	}

	values := s.Values()
	profile := domain.SeriesProfile{
		IntermittencyRatio: IntermittencyRatio(values),
	}

	if len(values) < minClassifiable || stat.Variance(values, nil) == 0 {
		return profile
	}

	period, ok := DetectSeasonality(values, CandidateLags(s.Frequency), cfg.SignificanceMultiplier)
	if ok {
		profile.HasSeasonality = true
		profile.SeasonalPeriod = domain.Int(period)
	}

	profile.TrendStrength = TrendStrength(values, profile.Period())
	return profile
}

// IntermittencyRatio is the fraction of zero-demand periods.
func IntermittencyRatio(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	zeros := 0
	for _, v := range values {
		if v == 0 {
			zeros++
		}
	}
	return float64(zeros) / float64(len(values))
}

// CandidateLags scales the daily candidate periods to the series grid.
func CandidateLags(freq domain.Frequency) []int {
	if freq != domain.FrequencyWeekly {
		return append([]int(nil), candidateLagsDaily...)
	}

	seen := map[int]bool{}
	var lags []int
	for _, lag := range append(append([]int(nil), candidateLagsDaily...), 364) {
		scaled := int(math.Round(float64(lag) / 7))
		if scaled < 2 || seen[scaled] {
			continue
		}
		seen[scaled] = true
		lags = append(lags, scaled)
	}
	sort.Ints(lags)
	return lags
}

// DetectSeasonality returns the candidate lag with the strongest
// autocorrelation that clears the significance bound and beats both
// neighbouring lags.
func DetectSeasonality(values []float64, candidates []int, multiplier float64) (int, bool) {
	n := len(values)
	maxLag := 0
	for _, lag := range candidates {
		if lag+1 > maxLag {
			maxLag = lag + 1
		}
	}
	if maxLag >= n {
		maxLag = n - 1
	}
	acf := ACF(values, maxLag)
	if acf == nil {
		return 0, false
	}

	threshold := multiplier / math.Sqrt(float64(n))
	best, bestACF := 0, math.Inf(-1)
	for _, lag := range candidates {
		if lag < 2 || 2*lag > n || lag+1 > maxLag {
			continue
		}
		r := acf[lag]
		if r <= threshold || r <= acf[lag-1] || r <= acf[lag+1] {
			continue
		}
		if r > bestACF {
			best, bestACF = lag, r
		}
	}
	return best, best > 0
}

// ACF returns autocorrelations for lags 0..maxLag, or nil for a constant
// series.
func ACF(values []float64, maxLag int) []float64 {
	n := len(values)
	if n == 0 || maxLag < 0 {
		return nil
	}
	mean := stat.Mean(values, nil)
	centered := make([]float64, n)
	copy(centered, values)
	floats.AddConst(-mean, centered)

	denom := floats.Dot(centered, centered)
	if denom == 0 {
		return nil
	}

	out := make([]float64, maxLag+1)
	for lag := 0; lag <= maxLag && lag < n; lag++ {
		out[lag] = floats.Dot(centered[lag:], centered[:n-lag]) / denom
	}
	return out
}

// Deseasonalize removes per-phase means for the given period.
func Deseasonalize(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	if period < 2 || period >= len(values) {
		return out
	}

	sums := make([]float64, period)
	counts := make([]float64, period)
	for i, v := range values {
		sums[i%period] += v
		counts[i%period]++
	}
	overall := stat.Mean(values, nil)
	for i := range out {
		phaseMean := sums[i%period] / counts[i%period]
		out[i] = values[i] - phaseMean + overall
	}
	return out
}

// TrendStrength is the absolute fitted change across the history, relative
// to the series mean, after removing seasonality.
func TrendStrength(values []float64, period int) float64 {
	n := len(values)
	if n < minClassifiable {
		return 0
	}
	mean := stat.Mean(values, nil)
	if mean == 0 {
		return 0
	}

	y := Deseasonalize(values, period)
	x := make([]float64, n)
	floats.Span(x, 0, float64(n-1))
	_, slope := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0
	}
	return math.Abs(slope) * float64(n-1) / math.Abs(mean)
}
