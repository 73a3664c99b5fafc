// Package models implements the forecasting methods behind a uniform
// fit/predict capability. A fitted model is immutable and holds no state
// shared with other series.
package models

import (
	"context"
	"fmt"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

// Prediction is one future period in model space, before clamping.
type Prediction struct {
	Mean  float64
	Lower float64
	Upper float64
}

// Fitted is a model after Fit. Predict must be safe to call repeatedly.
type Fitted interface {
	Kind() domain.ModelKind
	Predict(horizon int, confidence float64) ([]Prediction, error)
	// Residuals are the in-sample one-step errors used for intervals.
	Residuals() []float64
}

// MethodNamer is implemented by fits that pick among several internal
// variants, such as an ETS component set or an ARIMA order.
type MethodNamer interface {
	Method() string
}

// Model fits a series of period values.
type Model interface {
	Kind() domain.ModelKind
	Fit(ctx context.Context, values []float64) (Fitted, error)
}

// Options carries the series shape a model may need.
type Options struct {
	SeasonalPeriod int
	// SeasonalPeriods lists every period for multi-seasonal models.
	SeasonalPeriods []int
}

// Factory builds a model for one series.
type Factory func(opts Options) Model

// Registry maps each kind to its factory. Callers may swap entries, for
// example to inject a failing model.
type Registry map[domain.ModelKind]Factory

// DefaultRegistry wires every built-in model.
func DefaultRegistry() Registry {
	return Registry{
		domain.ModelNaive:               func(Options) Model { return Naive{} },
		domain.ModelSeasonalNaive:       func(o Options) Model { return SeasonalNaive{Period: o.SeasonalPeriod} },
		domain.ModelRandomWalkWithDrift: func(Options) Model { return Drift{} },
		domain.ModelCrostonClassic:      func(Options) Model { return Croston{Variant: CrostonClassic} },
		domain.ModelCrostonOptimized:    func(Options) Model { return Croston{Variant: CrostonOptimized} },
		domain.ModelCrostonSBA:          func(Options) Model { return Croston{Variant: CrostonSBA} },
		domain.ModelAutoETS:             func(o Options) Model { return AutoETS{Period: o.SeasonalPeriod} },
		domain.ModelAutoARIMA:           func(Options) Model { return AutoARIMA{MaxP: 3, MaxQ: 3} },
		domain.ModelTBATS:               func(o Options) Model { return TBATS{Periods: o.SeasonalPeriods} },
	}
}

// Clone returns a shallow copy that can be modified independently.
func (r Registry) Clone() Registry {
	out := make(Registry, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// New builds the model registered for kind.
func (r Registry) New(kind domain.ModelKind, opts Options) (Model, error) {
	factory, ok := r[kind]
	if !ok {
		return nil, fmt.Errorf("no model registered for %s", kind)
	}
	return factory(opts), nil
}

func checkHorizon(kind domain.ModelKind, horizon int) error {
	if horizon < 1 {
		return domain.NewModelFitError(kind, "horizon must be positive, got %d", horizon)
	}
	return nil
}
