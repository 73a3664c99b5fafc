// Package evaluate scores a forecasting method on a held-out tail of the
// history.
package evaluate

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/forecast/models"
)

// HoldoutSize returns min(horizon, floor(0.2*n)), at least 1.
func HoldoutSize(n, horizon int) int {
	size := n / 5
	if horizon < size {
		size = horizon
	}
	if size < 1 {
		size = 1
	}
	return size
}

// Evaluate refits model on the history minus the hold-out window and
// compares its forecast with the held-out actuals. Any failure other than
// cancellation yields all-nil metrics.
func Evaluate(ctx context.Context, model models.Model, values []float64, horizon int, confidence float64) (domain.AccuracyMetrics, error) {
	holdout := HoldoutSize(len(values), horizon)
	train := len(values) - holdout
	if train < 2 {
		return domain.AccuracyMetrics{}, nil
	}

	fit, err := model.Fit(ctx, values[:train])
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.AccuracyMetrics{}, err
		}
		log.Debug().Str("model", string(model.Kind())).Err(err).Msg("evaluation refit failed")
		return domain.AccuracyMetrics{}, nil
	}
	preds, err := fit.Predict(holdout, confidence)
	if err != nil || len(preds) != holdout {
		return domain.AccuracyMetrics{}, nil
	}

	forecast := make([]float64, holdout)
	for i, p := range preds {
		forecast[i] = math.Max(0, p.Mean)
	}
	return Metrics(values[train:], forecast), nil
}

// Metrics computes the error measures. A metric whose denominator is zero
// for every period is nil.
func Metrics(actual, forecast []float64) domain.AccuracyMetrics {
	n := len(actual)
	if n == 0 || n != len(forecast) {
		return domain.AccuracyMetrics{}
	}

	errs := make([]float64, n)
	floats.SubTo(errs, actual, forecast)
	abs := make([]float64, n)
	for i, e := range errs {
		abs[i] = math.Abs(e)
	}

	var m domain.AccuracyMetrics
	mae := floats.Sum(abs) / float64(n)
	mse := floats.Dot(errs, errs) / float64(n)
	m.MAE = finite(mae)
	m.MSE = finite(mse)
	m.RMSE = finite(math.Sqrt(mse))

	var apeSum, smapeSum, actualAbs float64
	var apeN, smapeN int
	for i, a := range actual {
		actualAbs += math.Abs(a)
		if a != 0 {
			apeSum += abs[i] / math.Abs(a)
			apeN++
		}
		if denom := math.Abs(a) + math.Abs(forecast[i]); denom > 0 {
			smapeSum += 2 * abs[i] / denom
			smapeN++
		}
	}
	if apeN > 0 {
		m.MAPE = finite(apeSum / float64(apeN))
	}
	if actualAbs > 0 {
		m.WAPE = finite(floats.Sum(abs) / actualAbs)
	}
	if smapeN > 0 {
		m.SMAPE = finite(smapeSum / float64(smapeN))
	}
	return m
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return domain.Float(v)
}
