package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanConfigMerge(t *testing.T) {
	global := DefaultPlanConfig()

	t.Run("nil overrides keep global", func(t *testing.T) {
		assert.Equal(t, global, global.Merge(nil))
	})

	t.Run("per-SKU values win", func(t *testing.T) {
		model := ModelNaive
		policy := PeriodicReview
		merged := global.Merge(&SKUOverrides{
			Horizon:       Int(14),
			LeadTimeDays:  Int(3),
			Model:         &model,
			ReorderPolicy: &policy,
		})

		assert.Equal(t, 14, merged.Horizon)
		assert.Equal(t, 3, merged.Policy.LeadTimeDays)
		assert.Equal(t, ModelNaive, merged.Model)
		assert.Equal(t, PeriodicReview, merged.Policy.ReorderPolicy)
		assert.InDelta(t, global.Policy.ServiceLevel, merged.Policy.ServiceLevel, 1e-12)
		assert.Equal(t, 90, global.Horizon, "global config must not be mutated")
	})
}

func TestPlanConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *PlanConfig)
	}{
		{"horizon zero", func(c *PlanConfig) { c.Horizon = 0 }},
		{"horizon too long", func(c *PlanConfig) { c.Horizon = 366 }},
		{"confidence too high", func(c *PlanConfig) { c.ConfidenceLevel = 0.995 }},
		{"service level too low", func(c *PlanConfig) { c.Policy.ServiceLevel = 0.4 }},
		{"negative lead time", func(c *PlanConfig) { c.Policy.LeadTimeDays = -1 }},
		{"unknown model", func(c *PlanConfig) { c.Model = "Prophet" }},
		{"monthly grid", func(c *PlanConfig) { c.Frequency = FrequencyMonthly }},
		{"zero review period", func(c *PlanConfig) { c.Policy.ReviewPeriodDays = 0 }},
	}

	require.NoError(t, DefaultPlanConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPlanConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestErrorsMatchSentinels(t *testing.T) {
	var err error = &InsufficientHistoryError{Need: 2, Got: 1}
	assert.True(t, errors.Is(err, ErrInsufficientHistory))
	assert.Equal(t, "not enough history: need ≥2 points, got 1", err.Error())

	fit := NewModelFitError(ModelAutoETS, "no convergence")
	assert.True(t, errors.Is(fit, ErrModelFit))
	var target *ModelFitError
	require.True(t, errors.As(fit, &target))
	assert.Equal(t, ModelAutoETS, target.Model)
}

func TestDateJSON(t *testing.T) {
	d := MakeDate(2024, 3, 9)
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-09"`, string(raw))

	var back Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-09T10:00:00Z"`), &back))
	assert.Equal(t, d, back)
	assert.Equal(t, 7, d.DaysUntil(d.AddDays(7)))
}
