package domain

import "fmt"

// PlanConfig is the fully resolved configuration for planning one SKU.
type PlanConfig struct {
	Horizon         int       `json:"horizon"`
	ConfidenceLevel float64   `json:"confidence_level"`
	Frequency       Frequency `json:"frequency,omitempty"`
	FillMode        FillMode  `json:"fill_mode,omitempty"`
	SeasonalLength  int       `json:"seasonal_length,omitempty"`
	Model           ModelKind `json:"model,omitempty"`
	EnableTBATS     bool      `json:"enable_tbats"`
	// RunDate anchors lead-time relative insights. Zero means the last
	// observed period.
	RunDate *Date         `json:"run_date,omitempty"`
	Policy  ReorderPolicy `json:"policy"`

	IntermittencyThreshold  float64 `json:"intermittency_threshold"`
	SeasonalitySignificance float64 `json:"seasonality_significance"`
	TrendThreshold          float64 `json:"trend_threshold"`
	LowCoverageThreshold    float64 `json:"low_coverage_threshold"`
	DemandChangeThreshold   float64 `json:"demand_change_threshold"`
	VolatilityRatio         float64 `json:"volatility_ratio"`
}

// DefaultPlanConfig returns the documented defaults.
func DefaultPlanConfig() PlanConfig {
	return PlanConfig{
		Horizon:         90,
		ConfidenceLevel: 0.95,
		FillMode:        FillZero,
		Policy: ReorderPolicy{
			ServiceLevel:      0.95,
			LeadTimeDays:      7,
			SafetyStockPolicy: SafetyStockZScore,
			ReorderPolicy:     ContinuousReview,
			ReviewPeriodDays:  7,
		},
		IntermittencyThreshold:  0.30,
		SeasonalitySignificance: 2.0,
		TrendThreshold:          0.15,
		LowCoverageThreshold:    0.8,
		DemandChangeThreshold:   0.10,
		VolatilityRatio:         1.5,
	}
}

// Validate checks every bounded option.
func (c PlanConfig) Validate() error {
	if c.Horizon < 1 || c.Horizon > 365 {
		return fmt.Errorf("%w: horizon must be within [1, 365], got %d", ErrInvalidConfig, c.Horizon)
	}
	if c.ConfidenceLevel < 0.5 || c.ConfidenceLevel > 0.99 {
		return fmt.Errorf("%w: confidence_level must be within [0.5, 0.99], got %v", ErrInvalidConfig, c.ConfidenceLevel)
	}
	if c.Frequency != "" && !c.Frequency.Supported() {
		return fmt.Errorf("%w: unsupported frequency %q", ErrInvalidConfig, c.Frequency)
	}
	switch c.FillMode {
	case "", FillZero, FillInterpolate:
	default:
		return fmt.Errorf("%w: unknown fill_mode %q", ErrInvalidConfig, c.FillMode)
	}
	if c.SeasonalLength < 0 {
		return fmt.Errorf("%w: seasonal_length must be >= 0", ErrInvalidConfig)
	}
	if c.Model != "" && !c.Model.Valid() {
		return fmt.Errorf("%w: unknown model %q", ErrInvalidConfig, c.Model)
	}
	return c.Policy.Validate()
}

// SKUOverrides holds per-SKU values. A nil field keeps the global value.
type SKUOverrides struct {
	Horizon           *int               `json:"horizon,omitempty"`
	ConfidenceLevel   *float64           `json:"confidence_level,omitempty"`
	Frequency         *Frequency         `json:"frequency,omitempty"`
	FillMode          *FillMode          `json:"fill_mode,omitempty"`
	SeasonalLength    *int               `json:"seasonal_length,omitempty"`
	Model             *ModelKind         `json:"model,omitempty"`
	EnableTBATS       *bool              `json:"enable_tbats,omitempty"`
	ServiceLevel      *float64           `json:"service_level,omitempty"`
	LeadTimeDays      *int               `json:"lead_time_days,omitempty"`
	SafetyStockPolicy *SafetyStockPolicy `json:"safety_stock_policy,omitempty"`
	ReorderPolicy     *ReorderPolicyKind `json:"reorder_policy,omitempty"`
	ReviewPeriodDays  *int               `json:"review_period_days,omitempty"`
	MinOrderQty       *float64           `json:"min_order_qty,omitempty"`
}

// Merge applies o on top of c. Per-SKU values win when present.
func (c PlanConfig) Merge(o *SKUOverrides) PlanConfig {
	if o == nil {
		return c
	}
	out := c
	if o.Horizon != nil {
		out.Horizon = *o.Horizon
	}
	if o.ConfidenceLevel != nil {
		out.ConfidenceLevel = *o.ConfidenceLevel
	}
	if o.Frequency != nil {
		out.Frequency = *o.Frequency
	}
	if o.FillMode != nil {
		out.FillMode = *o.FillMode
	}
	if o.SeasonalLength != nil {
		out.SeasonalLength = *o.SeasonalLength
	}
	if o.Model != nil {
		out.Model = *o.Model
	}
	if o.EnableTBATS != nil {
		out.EnableTBATS = *o.EnableTBATS
	}
	if o.ServiceLevel != nil {
		out.Policy.ServiceLevel = *o.ServiceLevel
	}
	if o.LeadTimeDays != nil {
		out.Policy.LeadTimeDays = *o.LeadTimeDays
	}
	if o.SafetyStockPolicy != nil {
		out.Policy.SafetyStockPolicy = *o.SafetyStockPolicy
	}
	if o.ReorderPolicy != nil {
		out.Policy.ReorderPolicy = *o.ReorderPolicy
	}
	if o.ReviewPeriodDays != nil {
		out.Policy.ReviewPeriodDays = *o.ReviewPeriodDays
	}
	if o.MinOrderQty != nil {
		out.Policy.MinOrderQty = *o.MinOrderQty
	}
	return out
}

// SKUInput is everything needed to plan one SKU.
type SKUInput struct {
	ProductID    string        `json:"product_id"`
	Observations []Observation `json:"observations"`
	OnHand       *float64      `json:"on_hand,omitempty"`
	LeadTimeDays *int          `json:"lead_time_days,omitempty"`
	Overrides    *SKUOverrides `json:"overrides,omitempty"`
}
