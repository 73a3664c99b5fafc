// Package selector chooses a forecasting method for a series and runs the
// fallback cascade.
package selector

import (
	"fmt"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

// Request holds the per-SKU forecasting options.
type Request struct {
	Horizon         int
	ConfidenceLevel float64
	// Model forces a method ahead of the policy when set.
	Model domain.ModelKind
	// SeasonalLength replaces the detected seasonal period when > 0.
	SeasonalLength         int
	EnableTBATS            bool
	IntermittencyThreshold float64
	TrendThreshold         float64
}

// RequestFromConfig extracts the forecasting options from a plan config.
func RequestFromConfig(cfg domain.PlanConfig) Request {
	return Request{
		Horizon:                cfg.Horizon,
		ConfidenceLevel:        cfg.ConfidenceLevel,
		Model:                  cfg.Model,
		SeasonalLength:         cfg.SeasonalLength,
		EnableTBATS:            cfg.EnableTBATS,
		IntermittencyThreshold: cfg.IntermittencyThreshold,
		TrendThreshold:         cfg.TrendThreshold,
	}
}

// Plan is the ordered cascade for one series.
type Plan struct {
	Candidates   []domain.ModelKind
	Period       int
	TBATSPeriods []int
	Reason       string
}

// tbatsSeasons are the multi-seasonal periods tried per grid.
func tbatsSeasons(freq domain.Frequency, n int) []int {
	if freq == domain.FrequencyWeekly {
		return []int{52}
	}
	if n >= 2*365 {
		return []int{7, 30, 365}
	}
	return []int{7, 30}
}

// PlanModels is a pure function of the profile, history length and request.
func PlanModels(profile domain.SeriesProfile, n int, freq domain.Frequency, req Request) Plan {
	intermittency := req.IntermittencyThreshold
	if intermittency <= 0 {
		intermittency = 0.30
	}
	trend := req.TrendThreshold
	if trend <= 0 {
		trend = 0.15
	}

	period := profile.Period()
	if req.SeasonalLength > 0 {
		period = req.SeasonalLength
	}

	var plan Plan
	plan.Period = period

	switch {
	case profile.IntermittencyRatio >= intermittency:
		plan.Candidates = []domain.ModelKind{domain.ModelCrostonClassic, domain.ModelCrostonOptimized, domain.ModelCrostonSBA}
		plan.Reason = fmt.Sprintf("intermittent demand (%.0f%% zero periods)", profile.IntermittencyRatio*100)
	case profile.HasSeasonality && period >= 2 && n >= 2*period:
		plan.Candidates = []domain.ModelKind{domain.ModelAutoETS, domain.ModelSeasonalNaive}
		plan.Reason = fmt.Sprintf("seasonal with period %d", period)
	case profile.TrendStrength > trend && !profile.HasSeasonality:
		plan.Candidates = []domain.ModelKind{domain.ModelAutoARIMA, domain.ModelRandomWalkWithDrift}
		plan.Reason = fmt.Sprintf("trend strength %.2f", profile.TrendStrength)
	default:
		plan.Candidates = []domain.ModelKind{domain.ModelAutoARIMA, domain.ModelNaive}
		plan.Reason = "default"
	}

	seasons := tbatsSeasons(freq, n)
	if period >= 2 {
		seasons = append(seasons, period)
	}
	for _, p := range seasons {
		if p >= 2 && n >= 2*p {
			plan.TBATSPeriods = appendUnique(plan.TBATSPeriods, p)
		}
	}

	tbatsAllowed := req.EnableTBATS && len(plan.TBATSPeriods) > 0

	if req.Model != "" {
		model := req.Model
		if model == domain.ModelTBATS && !tbatsAllowed {
			// TBATS only runs when enabled; a disabled request falls back to ETS
			model = domain.ModelAutoETS
		}
		plan.Candidates = prepend(model, plan.Candidates)
		plan.Reason = fmt.Sprintf("explicit %s, then %s", model, plan.Reason)
		return plan
	}

	if tbatsAllowed {
		plan.Candidates = prepend(domain.ModelTBATS, plan.Candidates)
		plan.Reason = "tbats enabled, then " + plan.Reason
	}
	return plan
}

func prepend(kind domain.ModelKind, rest []domain.ModelKind) []domain.ModelKind {
	out := []domain.ModelKind{kind}
	for _, k := range rest {
		if k != kind {
			out = append(out, k)
		}
	}
	return out
}

func appendUnique(list []int, v int) []int {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
