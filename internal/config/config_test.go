package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg := FromViper(v)
	require.NotNil(t, cfg)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 90, cfg.Forecast.Horizon)
	assert.InDelta(t, 0.95, cfg.Forecast.ConfidenceLevel, 1e-9)
	assert.InDelta(t, 0.95, cfg.Forecast.ServiceLevel, 1e-9)
	assert.Equal(t, 7, cfg.Forecast.LeadTimeDays)
	assert.Equal(t, "z_score", cfg.Forecast.SafetyStockPolicy)
	assert.Equal(t, "continuous_review", cfg.Forecast.ReorderPolicy)
	assert.Equal(t, 7, cfg.Forecast.ReviewPeriodDays)
	assert.InDelta(t, 0.30, cfg.Forecast.IntermittencyThreshold, 1e-9)
	assert.InDelta(t, 2.0, cfg.Forecast.SeasonalitySignificance, 1e-9)
	assert.InDelta(t, 0.15, cfg.Forecast.TrendThreshold, 1e-9)
	assert.False(t, cfg.Forecast.EnableTBATS)
	assert.False(t, cfg.Cache.Enabled)
	assert.Greater(t, cfg.Pipeline.WorkerCount, 0)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("FORECAST_HORIZON", 30)
	v.Set("FORECAST_REORDER_POLICY", "periodic_review")
	v.Set("FORECAST_ENABLE_TBATS", true)
	v.Set("CACHE_ENABLED", true)
	v.Set("REDIS_URL", "redis://localhost:6379/2")

	cfg := FromViper(v)

	assert.Equal(t, 30, cfg.Forecast.Horizon)
	assert.Equal(t, "periodic_review", cfg.Forecast.ReorderPolicy)
	assert.True(t, cfg.Forecast.EnableTBATS)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "redis://localhost:6379/2", cfg.Cache.RedisURL)
}

func TestPlanConfigFromDefaultsIsValid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	plan := FromViper(v).Forecast.PlanConfig()
	require.NoError(t, plan.Validate())
	assert.Equal(t, 90, plan.Horizon)
	assert.Equal(t, 7, plan.Policy.ReviewPeriodDays)
	assert.InDelta(t, 1.5, plan.VolatilityRatio, 1e-9)
}
