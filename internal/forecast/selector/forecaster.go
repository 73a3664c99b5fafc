package selector

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/forecast/models"
	"github.com/andresuchdata/autopo-forecast/backend-go/pkg/logger"
)

// Outcome is the result of running the cascade for one series.
type Outcome struct {
	Model  domain.ModelKind
	// Method names the fitted variant when the model chooses one, such as
	// "ETS(A,A,N)" or "ARIMA(1,1,0)". Empty otherwise.
	Method string
	Points []domain.ForecastPoint
	Plan   Plan
	// Options are the model options the winner was fit with.
	Options models.Options
	// Exhausted is set when every candidate failed and the last-value
	// fallback produced the forecast.
	Exhausted bool
	Failures  []error
}

// Fallback reports whether the method used is not the first planned one.
func (o *Outcome) Fallback() bool {
	return o.Exhausted || (len(o.Plan.Candidates) > 0 && o.Model != o.Plan.Candidates[0])
}

// Forecaster runs the selection policy and cascade over a model registry.
type Forecaster struct {
	registry models.Registry
	log      zerolog.Logger
}

// New creates a forecaster. A nil registry uses the built-in models.
func New(registry models.Registry) *Forecaster {
	if registry == nil {
		registry = models.DefaultRegistry()
	}
	return &Forecaster{registry: registry, log: logger.Component("selector")}
}

// Forecast plans the candidates for the series and returns the first that
// fits. It never fails on model errors; only context cancellation and an
// invalid request abort.
func (f *Forecaster) Forecast(ctx context.Context, series *domain.NormalizedSeries, profile domain.SeriesProfile, req Request) (*Outcome, error) {
	if req.Horizon < 1 {
		return nil, fmt.Errorf("%w: horizon must be positive, got %d", domain.ErrInvalidConfig, req.Horizon)
	}
	if series == nil || series.Len() == 0 {
		return nil, &domain.InsufficientHistoryError{Need: 2, Got: 0}
	}

	plan := PlanModels(profile, series.Len(), series.Frequency, req)
	opts := models.Options{SeasonalPeriod: plan.Period, SeasonalPeriods: plan.TBATSPeriods}
	values := series.Values()

	out := &Outcome{Plan: plan, Options: opts}
	for _, kind := range plan.Candidates {
		preds, method, err := f.fitPredict(ctx, kind, opts, values, req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			f.log.Debug().
				Str("unique_id", series.UniqueID).
				Str("model", string(kind)).
				Err(err).
				Msg("model failed, trying next")
			out.Failures = append(out.Failures, err)
			continue
		}
		out.Model = kind
		out.Method = method
		out.Points = datePoints(series, preds)
		return out, nil
	}

	f.log.Warn().
		Str("unique_id", series.UniqueID).
		Int("failures", len(out.Failures)).
		Msg("all models failed, using last value")
	out.Model = domain.ModelNaive
	out.Exhausted = true
	last := values[len(values)-1]
	preds := make([]models.Prediction, req.Horizon)
	for i := range preds {
		preds[i] = models.Prediction{Mean: last, Lower: last, Upper: last}
	}
	out.Points = datePoints(series, preds)
	return out, nil
}

// ModelFor rebuilds the winning model so it can be refit on other data.
func (f *Forecaster) ModelFor(out *Outcome) (models.Model, error) {
	if out.Exhausted {
		return models.Naive{}, nil
	}
	return f.registry.New(out.Model, out.Options)
}

func (f *Forecaster) fitPredict(ctx context.Context, kind domain.ModelKind, opts models.Options, values []float64, req Request) ([]models.Prediction, string, error) {
	m, err := f.registry.New(kind, opts)
	if err != nil {
		return nil, "", domain.NewModelFitError(kind, "%v", err)
	}
	fit, err := m.Fit(ctx, values)
	if err != nil {
		return nil, "", wrapFit(kind, err)
	}
	preds, err := fit.Predict(req.Horizon, req.ConfidenceLevel)
	if err != nil {
		return nil, "", wrapFit(kind, err)
	}
	for i, p := range preds {
		if !finite(p.Mean) || !finite(p.Lower) || !finite(p.Upper) {
			return nil, "", domain.NewModelFitError(kind, "non-finite forecast at step %d", i+1)
		}
	}
	var method string
	if named, ok := fit.(models.MethodNamer); ok {
		method = named.Method()
	}
	return preds, method, nil
}

func wrapFit(kind domain.ModelKind, err error) error {
	if errors.Is(err, domain.ErrModelFit) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &domain.ModelFitError{Model: kind, Err: err}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// datePoints stamps predictions onto the future grid and clamps them so
// that 0 <= lower <= point <= upper.
func datePoints(series *domain.NormalizedSeries, preds []models.Prediction) []domain.ForecastPoint {
	step := series.Frequency.PeriodDays()
	last := series.LastDate()
	points := make([]domain.ForecastPoint, len(preds))
	for i, p := range preds {
		point := math.Max(0, p.Mean)
		lower := math.Max(0, math.Min(p.Lower, point))
		upper := math.Max(p.Upper, point)
		points[i] = domain.ForecastPoint{
			Date:          last.AddDays((i + 1) * step),
			PointForecast: point,
			LowerBound:    domain.Float(lower),
			UpperBound:    domain.Float(upper),
		}
	}
	return points
}
