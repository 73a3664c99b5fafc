package selector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/forecast/models"
)

type failingModel struct {
	kind domain.ModelKind
}

func (m failingModel) Kind() domain.ModelKind { return m.kind }

func (m failingModel) Fit(context.Context, []float64) (models.Fitted, error) {
	return nil, domain.NewModelFitError(m.kind, "injected failure")
}

type negativeModel struct{}

func (negativeModel) Kind() domain.ModelKind { return domain.ModelAutoARIMA }

func (negativeModel) Fit(context.Context, []float64) (models.Fitted, error) {
	return negativeFit{}, nil
}

type negativeFit struct{}

func (negativeFit) Kind() domain.ModelKind { return domain.ModelAutoARIMA }
func (negativeFit) Residuals() []float64   { return nil }

func (negativeFit) Predict(horizon int, _ float64) ([]models.Prediction, error) {
	out := make([]models.Prediction, horizon)
	for i := range out {
		out[i] = models.Prediction{Mean: -3, Lower: -10, Upper: 2}
	}
	return out, nil
}

func seasonalProfile(period int) domain.SeriesProfile {
	return domain.SeriesProfile{HasSeasonality: true, SeasonalPeriod: domain.Int(period)}
}

func dailySeries(values ...float64) *domain.NormalizedSeries {
	start := domain.MakeDate(2024, 1, 1)
	points := make([]domain.SeriesPoint, len(values))
	for i, v := range values {
		points[i] = domain.SeriesPoint{Timestamp: start.AddDays(i), Value: v}
	}
	return &domain.NormalizedSeries{UniqueID: "SKU-1", Points: points, Frequency: domain.FrequencyDaily, CoveragePct: 1}
}

func TestPlanModels(t *testing.T) {
	tests := []struct {
		name    string
		profile domain.SeriesProfile
		n       int
		req     Request
		want    []domain.ModelKind
	}{
		{
			name:    "intermittent wins over seasonality",
			profile: domain.SeriesProfile{HasSeasonality: true, SeasonalPeriod: domain.Int(7), IntermittencyRatio: 0.5},
			n:       60,
			want:    []domain.ModelKind{domain.ModelCrostonClassic, domain.ModelCrostonOptimized, domain.ModelCrostonSBA},
		},
		{
			name:    "seasonal with two cycles",
			profile: seasonalProfile(7),
			n:       14,
			want:    []domain.ModelKind{domain.ModelAutoETS, domain.ModelSeasonalNaive},
		},
		{
			name:    "seasonal without two cycles falls to default",
			profile: seasonalProfile(7),
			n:       13,
			want:    []domain.ModelKind{domain.ModelAutoARIMA, domain.ModelNaive},
		},
		{
			name:    "trend",
			profile: domain.SeriesProfile{TrendStrength: 0.4},
			n:       30,
			want:    []domain.ModelKind{domain.ModelAutoARIMA, domain.ModelRandomWalkWithDrift},
		},
		{
			name:    "flat",
			profile: domain.SeriesProfile{TrendStrength: 0.05},
			n:       30,
			want:    []domain.ModelKind{domain.ModelAutoARIMA, domain.ModelNaive},
		},
		{
			name:    "explicit model leads and keeps fallbacks",
			profile: seasonalProfile(7),
			n:       30,
			req:     Request{Model: domain.ModelSeasonalNaive},
			want:    []domain.ModelKind{domain.ModelSeasonalNaive, domain.ModelAutoETS},
		},
		{
			name:    "tbats prepended when enabled and supported",
			profile: domain.SeriesProfile{},
			n:       60,
			req:     Request{EnableTBATS: true},
			want:    []domain.ModelKind{domain.ModelTBATS, domain.ModelAutoARIMA, domain.ModelNaive},
		},
		{
			name:    "explicit tbats falls back to ets when disabled",
			profile: domain.SeriesProfile{},
			n:       60,
			req:     Request{Model: domain.ModelTBATS},
			want:    []domain.ModelKind{domain.ModelAutoETS, domain.ModelAutoARIMA, domain.ModelNaive},
		},
		{
			name:    "explicit tbats falls back to ets without usable seasons",
			profile: domain.SeriesProfile{},
			n:       10,
			req:     Request{Model: domain.ModelTBATS, EnableTBATS: true},
			want:    []domain.ModelKind{domain.ModelAutoETS, domain.ModelAutoARIMA, domain.ModelNaive},
		},
		{
			name:    "explicit tbats kept when enabled",
			profile: domain.SeriesProfile{},
			n:       60,
			req:     Request{Model: domain.ModelTBATS, EnableTBATS: true},
			want:    []domain.ModelKind{domain.ModelTBATS, domain.ModelAutoARIMA, domain.ModelNaive},
		},
		{
			name:    "tbats skipped on short history",
			profile: domain.SeriesProfile{},
			n:       10,
			req:     Request{EnableTBATS: true},
			want:    []domain.ModelKind{domain.ModelAutoARIMA, domain.ModelNaive},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanModels(tt.profile, tt.n, domain.FrequencyDaily, tt.req)
			assert.Equal(t, tt.want, plan.Candidates)
			assert.NotEmpty(t, plan.Reason)
		})
	}
}

func TestPlanModelsSeasonalLengthOverride(t *testing.T) {
	plan := PlanModels(seasonalProfile(7), 40, domain.FrequencyDaily, Request{SeasonalLength: 12})
	assert.Equal(t, 12, plan.Period)
	assert.Equal(t, []domain.ModelKind{domain.ModelAutoETS, domain.ModelSeasonalNaive}, plan.Candidates)
	assert.Equal(t, []int{7, 12}, plan.TBATSPeriods)
}

func TestForecastCascadesOnFailure(t *testing.T) {
	reg := models.DefaultRegistry().Clone()
	reg[domain.ModelAutoARIMA] = func(models.Options) models.Model { return failingModel{kind: domain.ModelAutoARIMA} }

	f := New(reg)
	series := dailySeries(4, 5, 6, 5, 4, 5, 6, 5, 4, 5)
	out, err := f.Forecast(context.Background(), series, domain.SeriesProfile{}, Request{Horizon: 3, ConfidenceLevel: 0.9})
	require.NoError(t, err)

	assert.Equal(t, domain.ModelNaive, out.Model)
	assert.Empty(t, out.Method)
	assert.False(t, out.Exhausted)
	assert.True(t, out.Fallback())
	require.Len(t, out.Failures, 1)
	assert.True(t, errors.Is(out.Failures[0], domain.ErrModelFit))

	require.Len(t, out.Points, 3)
	assert.Equal(t, "2024-01-11", out.Points[0].Date.String())
	assert.Equal(t, "2024-01-13", out.Points[2].Date.String())
	assert.Equal(t, 5.0, out.Points[0].PointForecast)
}

func TestForecastRecordsFittedMethod(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = float64(20 + i%3)
	}
	series := dailySeries(values...)

	tests := []struct {
		name    string
		req     Request
		model   domain.ModelKind
		pattern string
	}{
		{"arima order", Request{Horizon: 5, ConfidenceLevel: 0.95}, domain.ModelAutoARIMA, `^ARIMA\(\d,\d,\d\)$`},
		{"ets components", Request{Horizon: 5, ConfidenceLevel: 0.95, Model: domain.ModelAutoETS}, domain.ModelAutoETS, `^ETS\(A,[AN],[AN]\)$`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := New(nil).Forecast(context.Background(), series, domain.SeriesProfile{}, tt.req)
			require.NoError(t, err)
			require.Equal(t, tt.model, out.Model)
			assert.Regexp(t, tt.pattern, out.Method)
		})
	}
}

func TestForecastExhaustedUsesLastValue(t *testing.T) {
	reg := models.DefaultRegistry().Clone()
	for _, kind := range domain.AllModels {
		k := kind
		reg[k] = func(models.Options) models.Model { return failingModel{kind: k} }
	}

	out, err := New(reg).Forecast(context.Background(), dailySeries(1, 2, 3, 7), domain.SeriesProfile{}, Request{Horizon: 2, ConfidenceLevel: 0.95})
	require.NoError(t, err)
	assert.True(t, out.Exhausted)
	assert.Equal(t, domain.ModelNaive, out.Model)
	assert.Len(t, out.Failures, 2)
	for _, p := range out.Points {
		assert.Equal(t, 7.0, p.PointForecast)
		assert.Equal(t, 7.0, *p.LowerBound)
		assert.Equal(t, 7.0, *p.UpperBound)
	}
}

func TestForecastClampsNegative(t *testing.T) {
	reg := models.DefaultRegistry().Clone()
	reg[domain.ModelAutoARIMA] = func(models.Options) models.Model { return negativeModel{} }

	out, err := New(reg).Forecast(context.Background(), dailySeries(1, 1, 1, 1), domain.SeriesProfile{}, Request{Horizon: 4, ConfidenceLevel: 0.95})
	require.NoError(t, err)
	for _, p := range out.Points {
		assert.Equal(t, 0.0, p.PointForecast)
		assert.Equal(t, 0.0, *p.LowerBound)
		assert.Equal(t, 2.0, *p.UpperBound)
	}
}

func TestForecastDeterministic(t *testing.T) {
	values := make([]float64, 56)
	for i := range values {
		values[i] = float64(10 + (i%7)*3 + i/7)
	}
	series := dailySeries(values...)
	req := Request{Horizon: 14, ConfidenceLevel: 0.95}

	first, err := New(nil).Forecast(context.Background(), series, seasonalProfile(7), req)
	require.NoError(t, err)
	second, err := New(nil).Forecast(context.Background(), series, seasonalProfile(7), req)
	require.NoError(t, err)

	assert.Equal(t, first.Model, second.Model)
	assert.Equal(t, first.Points, second.Points)
}

func TestForecastCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	values := make([]float64, 30)
	for i := range values {
		values[i] = float64(i)
	}
	_, err := New(nil).Forecast(ctx, dailySeries(values...), domain.SeriesProfile{}, Request{Horizon: 3, ConfidenceLevel: 0.95})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForecastRejectsBadHorizon(t *testing.T) {
	_, err := New(nil).Forecast(context.Background(), dailySeries(1, 2, 3), domain.SeriesProfile{}, Request{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
