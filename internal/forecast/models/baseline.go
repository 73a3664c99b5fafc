package models

import (
	"context"
	"math"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

// Naive carries the last value forward.
type Naive struct{}

func (Naive) Kind() domain.ModelKind { return domain.ModelNaive }

func (m Naive) Fit(_ context.Context, values []float64) (Fitted, error) {
	if len(values) < 1 {
		return nil, domain.NewModelFitError(m.Kind(), "empty series")
	}
	res := make([]float64, 0, len(values))
	for t := 1; t < len(values); t++ {
		res = append(res, values[t]-values[t-1])
	}
	return &naiveFit{last: values[len(values)-1], residuals: res, sigma: residualSigma(res)}, nil
}

type naiveFit struct {
	last      float64
	residuals []float64
	sigma     float64
}

func (f *naiveFit) Kind() domain.ModelKind { return domain.ModelNaive }
func (f *naiveFit) Residuals() []float64   { return f.residuals }

func (f *naiveFit) Predict(horizon int, confidence float64) ([]Prediction, error) {
	if err := checkHorizon(f.Kind(), horizon); err != nil {
		return nil, err
	}
	means := make([]float64, horizon)
	sds := make([]float64, horizon)
	for h := 1; h <= horizon; h++ {
		means[h-1] = f.last
		sds[h-1] = f.sigma * math.Sqrt(float64(h))
	}
	return intervals(means, sds, confidence), nil
}

// SeasonalNaive repeats the value observed one season earlier.
type SeasonalNaive struct {
	Period int
}

func (SeasonalNaive) Kind() domain.ModelKind { return domain.ModelSeasonalNaive }

func (m SeasonalNaive) Fit(_ context.Context, values []float64) (Fitted, error) {
	if m.Period < 2 {
		return nil, domain.NewModelFitError(m.Kind(), "seasonal period must be >= 2, got %d", m.Period)
	}
	if len(values) < m.Period {
		return nil, domain.NewModelFitError(m.Kind(), "need at least one full season of %d periods, got %d", m.Period, len(values))
	}
	res := make([]float64, 0, len(values))
	for t := m.Period; t < len(values); t++ {
		res = append(res, values[t]-values[t-m.Period])
	}
	lastSeason := make([]float64, m.Period)
	copy(lastSeason, values[len(values)-m.Period:])
	return &seasonalNaiveFit{period: m.Period, lastSeason: lastSeason, residuals: res, sigma: residualSigma(res)}, nil
}

type seasonalNaiveFit struct {
	period     int
	lastSeason []float64
	residuals  []float64
	sigma      float64
}

func (f *seasonalNaiveFit) Kind() domain.ModelKind { return domain.ModelSeasonalNaive }
func (f *seasonalNaiveFit) Residuals() []float64   { return f.residuals }

func (f *seasonalNaiveFit) Predict(horizon int, confidence float64) ([]Prediction, error) {
	if err := checkHorizon(f.Kind(), horizon); err != nil {
		return nil, err
	}
	means := make([]float64, horizon)
	sds := make([]float64, horizon)
	for h := 1; h <= horizon; h++ {
		means[h-1] = f.lastSeason[(h-1)%f.period]
		k := (h-1)/f.period + 1
		sds[h-1] = f.sigma * math.Sqrt(float64(k))
	}
	return intervals(means, sds, confidence), nil
}

// Drift extrapolates the average change between the first and last value.
type Drift struct{}

func (Drift) Kind() domain.ModelKind { return domain.ModelRandomWalkWithDrift }

func (m Drift) Fit(_ context.Context, values []float64) (Fitted, error) {
	n := len(values)
	if n < 2 {
		return nil, domain.NewModelFitError(m.Kind(), "need at least 2 periods, got %d", n)
	}
	drift := (values[n-1] - values[0]) / float64(n-1)
	res := make([]float64, 0, n-1)
	for t := 1; t < n; t++ {
		res = append(res, values[t]-values[t-1]-drift)
	}
	return &driftFit{last: values[n-1], drift: drift, n: n, residuals: res, sigma: residualSigma(res)}, nil
}

type driftFit struct {
	last      float64
	drift     float64
	n         int
	residuals []float64
	sigma     float64
}

func (f *driftFit) Kind() domain.ModelKind { return domain.ModelRandomWalkWithDrift }
func (f *driftFit) Residuals() []float64   { return f.residuals }

func (f *driftFit) Predict(horizon int, confidence float64) ([]Prediction, error) {
	if err := checkHorizon(f.Kind(), horizon); err != nil {
		return nil, err
	}
	means := make([]float64, horizon)
	sds := make([]float64, horizon)
	t := float64(f.n - 1)
	for h := 1; h <= horizon; h++ {
		fh := float64(h)
		means[h-1] = f.last + fh*f.drift
		sds[h-1] = f.sigma * math.Sqrt(fh*(1+fh/t))
	}
	return intervals(means, sds, confidence), nil
}
