package models

import (
	"context"
	"math"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

// CrostonVariant selects the smoothing and bias correction.
type CrostonVariant int

const (
	CrostonClassic CrostonVariant = iota
	CrostonOptimized
	CrostonSBA
)

const crostonAlpha = 0.1

// crostonGrid is the smoothing parameter search space for the optimized variant.
var crostonGrid = []float64{0.05, 0.1, 0.15, 0.2, 0.25, 0.3, 0.35, 0.4, 0.45, 0.5}

// Croston forecasts intermittent demand as smoothed size over smoothed
// inter-demand interval.
type Croston struct {
	Variant CrostonVariant
}

func (m Croston) Kind() domain.ModelKind {
	switch m.Variant {
	case CrostonOptimized:
		return domain.ModelCrostonOptimized
	case CrostonSBA:
		return domain.ModelCrostonSBA
	default:
		return domain.ModelCrostonClassic
	}
}

func (m Croston) Fit(ctx context.Context, values []float64) (Fitted, error) {
	if len(values) < 2 {
		return nil, domain.NewModelFitError(m.Kind(), "need at least 2 periods, got %d", len(values))
	}
	demands := 0
	for _, v := range values {
		if v != 0 {
			demands++
		}
	}
	if demands == 0 {
		return nil, domain.NewModelFitError(m.Kind(), "series has no non-zero demand")
	}

	alphaSize, alphaInterval := crostonAlpha, crostonAlpha
	if m.Variant == CrostonOptimized {
		best := math.Inf(1)
		for _, as := range crostonGrid {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for _, ai := range crostonGrid {
				_, res := crostonRun(values, as, ai, 1)
				if s := sse(res); s < best {
					best, alphaSize, alphaInterval = s, as, ai
				}
			}
		}
	}

	bias := 1.0
	if m.Variant == CrostonSBA {
		bias = 1 - alphaInterval/2
	}

	level, res := crostonRun(values, alphaSize, alphaInterval, bias)
	return &crostonFit{kind: m.Kind(), level: level, residuals: res, sigma: residualSigma(res)}, nil
}

// crostonRun smooths sizes and intervals and returns the final per-period
// rate together with one-step residuals from the first demand onwards.
func crostonRun(values []float64, alphaSize, alphaInterval, bias float64) (float64, []float64) {
	var (
		size, interval float64
		initialised    bool
		sinceLast      int
		res            = make([]float64, 0, len(values))
	)
	for _, y := range values {
		sinceLast++
		if initialised {
			res = append(res, y-bias*size/interval)
		}
		if y == 0 {
			continue
		}
		if !initialised {
			size, interval = y, float64(sinceLast)
			initialised = true
		} else {
			size += alphaSize * (y - size)
			interval += alphaInterval * (float64(sinceLast) - interval)
		}
		sinceLast = 0
	}
	return bias * size / interval, res
}

type crostonFit struct {
	kind      domain.ModelKind
	level     float64
	residuals []float64
	sigma     float64
}

func (f *crostonFit) Kind() domain.ModelKind { return f.kind }
func (f *crostonFit) Residuals() []float64   { return f.residuals }

// Predict returns a flat rate with a constant-width interval.
func (f *crostonFit) Predict(horizon int, confidence float64) ([]Prediction, error) {
	if err := checkHorizon(f.kind, horizon); err != nil {
		return nil, err
	}
	means := make([]float64, horizon)
	sds := make([]float64, horizon)
	for i := range means {
		means[i] = f.level
		sds[i] = f.sigma
	}
	return intervals(means, sds, confidence), nil
}
