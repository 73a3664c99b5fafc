package planner

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

var day0 = domain.MakeDate(2024, 1, 1)

func observations(id string, values []float64) []domain.Observation {
	out := make([]domain.Observation, len(values))
	for i, v := range values {
		out[i] = domain.Observation{UniqueID: id, Timestamp: day0.AddDays(i), Value: v}
	}
	return out
}

func assertClamped(t *testing.T, points []domain.ForecastPoint) {
	t.Helper()
	for _, p := range points {
		assert.GreaterOrEqual(t, p.PointForecast, 0.0)
		if p.LowerBound != nil && p.UpperBound != nil {
			assert.LessOrEqual(t, *p.LowerBound, p.PointForecast)
			assert.LessOrEqual(t, p.PointForecast, *p.UpperBound)
		}
	}
}

func TestWeeklySeasonalSeries(t *testing.T) {
	values := make([]float64, 60)
	for d := range values {
		values[d] = 100 + 20*math.Sin(2*math.Pi*float64(d)/7)
	}
	cfg := domain.DefaultPlanConfig()
	cfg.Horizon = 14

	res, err := PlanSKU(context.Background(), domain.SKUInput{ProductID: "SEASONAL", Observations: observations("SEASONAL", values)}, cfg)
	require.NoError(t, err)

	require.NotNil(t, res.Profile)
	assert.True(t, res.Profile.HasSeasonality)
	assert.Equal(t, 7, res.Profile.Period())
	assert.Contains(t, []domain.ModelKind{domain.ModelAutoETS, domain.ModelSeasonalNaive}, res.ModelUsed)
	require.Len(t, res.ForecastPoints, 14)
	for _, p := range res.ForecastPoints {
		assert.NotNil(t, p.LowerBound)
		assert.NotNil(t, p.UpperBound)
	}
	assertClamped(t, res.ForecastPoints)
	assert.Equal(t, domain.SKUCompleted, res.Status)
}

func TestIntermittentSeries(t *testing.T) {
	values := make([]float64, 90)
	for i := range values {
		if i%5 >= 3 {
			values[i] = float64(1 + i%3)
		}
	}
	cfg := domain.DefaultPlanConfig()
	cfg.Horizon = 30

	res, err := PlanSKU(context.Background(), domain.SKUInput{ProductID: "SPARSE", Observations: observations("SPARSE", values)}, cfg)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, res.Profile.IntermittencyRatio, 0.3)
	assert.True(t, res.ModelUsed.IsCroston(), "got %s", res.ModelUsed)
	assertClamped(t, res.ForecastPoints)
}

func TestReorderScenario(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 50
	}
	cfg := domain.DefaultPlanConfig()
	cfg.Horizon = 20

	res, err := PlanSKU(context.Background(), domain.SKUInput{
		ProductID:    "STEADY",
		Observations: observations("STEADY", values),
		OnHand:       domain.Float(500),
		LeadTimeDays: domain.Int(5),
	}, cfg)
	require.NoError(t, err)

	last := day0.AddDays(29)
	assert.Equal(t, 5, *res.LeadTimeDays)
	assert.Equal(t, 500.0, *res.StartingInventory)
	assert.InDelta(t, 50*5+*res.SafetyStock, *res.ReorderPoint, 1e-6)
	require.NotNil(t, res.StockoutDate)
	assert.Equal(t, last.AddDays(10), *res.StockoutDate)
	require.NotNil(t, res.ReorderDate)
	assert.True(t, res.ReorderDate.Before(res.StockoutDate.Time))
}

func TestSingleObservation(t *testing.T) {
	_, err := PlanSKU(context.Background(), domain.SKUInput{
		ProductID:    "ONE",
		Observations: observations("ONE", []float64{4}),
	}, domain.DefaultPlanConfig())
	require.ErrorIs(t, err, domain.ErrInsufficientHistory)
	assert.Equal(t, "not enough history: need ≥2 points, got 1", err.Error())
}

func TestAllZeroSeries(t *testing.T) {
	cfg := domain.DefaultPlanConfig()
	cfg.Horizon = 7

	res, err := PlanSKU(context.Background(), domain.SKUInput{ProductID: "ZERO", Observations: observations("ZERO", make([]float64, 30))}, cfg)
	require.NoError(t, err)

	m := res.AccuracyMetrics
	require.NotNil(t, m)
	assert.Nil(t, m.MAPE)
	assert.Nil(t, m.WAPE)
	require.NotNil(t, m.MAE)
	require.NotNil(t, m.RMSE)
	assert.Equal(t, 0.0, *m.MAE)
	assert.Equal(t, 0.0, *m.RMSE)

	var kinds []string
	for _, in := range res.Insights {
		kinds = append(kinds, in.Type)
	}
	assert.Contains(t, kinds, domain.InsightModelFallback)
}

func TestIdempotent(t *testing.T) {
	values := make([]float64, 45)
	for i := range values {
		values[i] = float64(20 + i%4 + i/9)
	}
	in := domain.SKUInput{ProductID: "REPEAT", Observations: observations("REPEAT", values), OnHand: domain.Float(120)}
	cfg := domain.DefaultPlanConfig()
	cfg.Horizon = 21

	first, err := PlanSKU(context.Background(), in, cfg)
	require.NoError(t, err)
	second, err := PlanSKU(context.Background(), in, cfg)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestOverridesWin(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 10
	}
	model := domain.ModelNaive
	lt := 3
	in := domain.SKUInput{
		ProductID:    "OVR",
		Observations: observations("OVR", values),
		LeadTimeDays: domain.Int(9),
		Overrides:    &domain.SKUOverrides{Model: &model, LeadTimeDays: &lt},
	}
	res, err := PlanSKU(context.Background(), in, domain.DefaultPlanConfig())
	require.NoError(t, err)
	assert.Equal(t, domain.ModelNaive, res.ModelUsed)
	assert.Equal(t, 3, *res.LeadTimeDays)
}

func TestResolveConfigFromRows(t *testing.T) {
	obs := observations("ROWS", []float64{1, 2, 3})
	obs[0].LeadTimeDays = domain.Int(4)
	obs[2].LeadTimeDays = domain.Int(6)
	obs[1].OnHand = domain.Float(80)

	in := domain.SKUInput{ProductID: "ROWS", Observations: obs}
	assert.Equal(t, 6, ResolveConfig(in, domain.DefaultPlanConfig()).Policy.LeadTimeDays)
	assert.Equal(t, 80.0, StartingInventory(in))
	assert.Equal(t, 0.0, StartingInventory(domain.SKUInput{}))
}

func TestInvalidConfig(t *testing.T) {
	cfg := domain.DefaultPlanConfig()
	cfg.Horizon = 0
	_, err := PlanSKU(context.Background(), domain.SKUInput{ProductID: "X", Observations: observations("X", []float64{1, 2, 3})}, cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := PlanSKU(ctx, domain.SKUInput{ProductID: "C", Observations: observations("C", []float64{1, 2, 3, 4})}, domain.DefaultPlanConfig())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.ProductID)
}

func TestSafetyStockStableAcrossHorizons(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	values := make([]float64, 120)
	level := 60.0
	for i := range values {
		level = math.Max(5, level+rng.NormFloat64()*4)
		values[i] = level
	}
	in := domain.SKUInput{
		ProductID:    "WALK",
		Observations: observations("WALK", values),
		OnHand:       domain.Float(400),
		LeadTimeDays: domain.Int(5),
	}

	plan := func(horizon int) domain.SKUResult {
		cfg := domain.DefaultPlanConfig()
		cfg.Horizon = horizon
		res, err := PlanSKU(context.Background(), in, cfg)
		require.NoError(t, err)
		require.Equal(t, domain.SKUCompleted, res.Status)
		return res
	}

	short, long := plan(14), plan(365)
	require.Equal(t, short.ModelUsed, long.ModelUsed)
	assert.InDelta(t, *short.SafetyStock, *long.SafetyStock, 1e-9)
}
