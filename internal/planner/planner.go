// Package planner runs the full per-SKU chain: normalize, classify,
// forecast, evaluate, simulate and derive insights.
package planner

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/forecast/classify"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/forecast/evaluate"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/forecast/models"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/forecast/selector"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/forecast/series"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/insight"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/inventory"
	"github.com/andresuchdata/autopo-forecast/backend-go/pkg/logger"
)

// Planner holds no per-SKU state and is safe for concurrent use.
type Planner struct {
	forecaster *selector.Forecaster
	log        zerolog.Logger
}

// New creates a planner. A nil registry uses the built-in models.
func New(registry models.Registry) *Planner {
	return &Planner{
		forecaster: selector.New(registry),
		log:        logger.Component("planner"),
	}
}

var defaultPlanner = New(nil)

// PlanSKU plans one SKU with the built-in models.
func PlanSKU(ctx context.Context, in domain.SKUInput, global domain.PlanConfig) (domain.SKUResult, error) {
	return defaultPlanner.PlanSKU(ctx, in, global)
}

// ResolveConfig layers SKU data and explicit overrides on the global config.
// Lead time from the SKU rows applies first so explicit overrides still win.
func ResolveConfig(in domain.SKUInput, global domain.PlanConfig) domain.PlanConfig {
	cfg := global
	if lt := leadTime(in); lt != nil {
		cfg.Policy.LeadTimeDays = *lt
	}
	return cfg.Merge(in.Overrides)
}

// StartingInventory is the explicit on-hand, else the latest on-hand seen
// in the rows, else zero.
func StartingInventory(in domain.SKUInput) float64 {
	if in.OnHand != nil {
		return *in.OnHand
	}
	var latest *domain.Observation
	for i := range in.Observations {
		o := &in.Observations[i]
		if o.OnHand == nil {
			continue
		}
		if latest == nil || !o.Timestamp.Before(latest.Timestamp.Time) {
			latest = o
		}
	}
	if latest == nil {
		return 0
	}
	return *latest.OnHand
}

func leadTime(in domain.SKUInput) *int {
	if in.LeadTimeDays != nil {
		return in.LeadTimeDays
	}
	var latest *domain.Observation
	for i := range in.Observations {
		o := &in.Observations[i]
		if o.LeadTimeDays == nil {
			continue
		}
		if latest == nil || !o.Timestamp.Before(latest.Timestamp.Time) {
			latest = o
		}
	}
	if latest == nil {
		return nil
	}
	return latest.LeadTimeDays
}

// PlanSKU returns an error only when no record can be produced: invalid
// config, insufficient or ambiguous history, or cancellation.
func (p *Planner) PlanSKU(ctx context.Context, in domain.SKUInput, global domain.PlanConfig) (domain.SKUResult, error) {
	cfg := ResolveConfig(in, global)
	if err := cfg.Validate(); err != nil {
		return domain.SKUResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.SKUResult{}, err
	}

	s, err := series.Normalize(in.ProductID, in.Observations, series.Options{
		Frequency: cfg.Frequency,
		FillMode:  cfg.FillMode,
	})
	if err != nil {
		return domain.SKUResult{}, err
	}

	profile := classify.Classify(s, classify.Config{SignificanceMultiplier: cfg.SeasonalitySignificance})

	outcome, err := p.forecaster.Forecast(ctx, s, profile, selector.RequestFromConfig(cfg))
	if err != nil {
		return domain.SKUResult{}, err
	}

	model, err := p.forecaster.ModelFor(outcome)
	if err != nil {
		return domain.SKUResult{}, fmt.Errorf("rebuild %s: %w", outcome.Model, err)
	}
	metrics, err := evaluate.Evaluate(ctx, model, s.Values(), cfg.Horizon, cfg.ConfidenceLevel)
	if err != nil {
		return domain.SKUResult{}, err
	}

	onHand := StartingInventory(in)
	sim := inventory.Simulate(inventory.Input{
		Points:            outcome.Points,
		StartingInventory: onHand,
		Policy:            cfg.Policy,
		Frequency:         s.Frequency,
		ConfidenceLevel:   cfg.ConfidenceLevel,
		History:           inventory.StatsFromSeries(s.Values()),
	})

	runDate := s.LastDate()
	if cfg.RunDate != nil {
		runDate = *cfg.RunDate
	}

	insights := insight.Generate(insight.Input{
		Series:       s,
		Profile:      profile,
		Points:       outcome.Points,
		Simulation:   sim,
		Metrics:      metrics,
		ModelUsed:    outcome.Model,
		Exhausted:    outcome.Exhausted,
		RunDate:      runDate,
		LeadTimeDays: cfg.Policy.LeadTimeDays,
		Thresholds: insight.Thresholds{
			LowCoverage:     cfg.LowCoverageThreshold,
			DemandChange:    cfg.DemandChangeThreshold,
			VolatilityRatio: cfg.VolatilityRatio,
		},
	})

	if err := ctx.Err(); err != nil {
		return domain.SKUResult{}, err
	}

	p.log.Debug().
		Str("sku", in.ProductID).
		Str("model", string(outcome.Model)).
		Str("method", outcome.Method).
		Str("reason", outcome.Plan.Reason).
		Int("periods", s.Len()).
		Msg("sku planned")

	return domain.SKUResult{
		ProductID:           in.ProductID,
		Status:              domain.SKUCompleted,
		ModelUsed:           outcome.Model,
		ForecastPoints:      outcome.Points,
		StockoutDate:        sim.StockoutDate,
		ReorderPoint:        domain.Float(sim.ReorderPoint),
		ReorderDate:         sim.ReorderDate,
		RecommendedOrderQty: sim.RecommendedOrderQty,
		SafetyStock:         domain.Float(sim.SafetyStock),
		ServiceLevel:        domain.Float(cfg.Policy.ServiceLevel),
		LeadTimeDays:        domain.Int(cfg.Policy.LeadTimeDays),
		StartingInventory:   domain.Float(sim.StartingInventory),
		AccuracyMetrics:     &metrics,
		Insights:            insights,
		Profile:             &profile,
		Frequency:           s.Frequency,
		CoveragePct:         domain.Float(s.CoveragePct),
	}, nil
}
