package domain

import "fmt"

type SafetyStockPolicy string

const (
	SafetyStockZScore SafetyStockPolicy = "z_score"
	SafetyStockMinMax SafetyStockPolicy = "minmax"
)

type ReorderPolicyKind string

const (
	ContinuousReview ReorderPolicyKind = "continuous_review"
	PeriodicReview   ReorderPolicyKind = "periodic_review"
)

// ReorderPolicy configures safety stock and reorder evaluation.
type ReorderPolicy struct {
	ServiceLevel      float64           `json:"service_level"`
	LeadTimeDays      int               `json:"lead_time_days"`
	SafetyStockPolicy SafetyStockPolicy `json:"safety_stock_policy"`
	ReorderPolicy     ReorderPolicyKind `json:"reorder_policy"`
	// ReviewPeriodDays is the replenishment cycle covered by an order on top
	// of lead time. Periodic review also uses it as the evaluation interval.
	ReviewPeriodDays int     `json:"review_period_days"`
	MinOrderQty      float64 `json:"min_order_qty"`
}

// Validate checks ranges and enum values.
func (p ReorderPolicy) Validate() error {
	if p.ServiceLevel < 0.5 || p.ServiceLevel > 0.999 {
		return fmt.Errorf("%w: service_level must be within [0.5, 0.999], got %v", ErrInvalidConfig, p.ServiceLevel)
	}
	if p.LeadTimeDays < 0 {
		return fmt.Errorf("%w: lead_time_days must be >= 0, got %d", ErrInvalidConfig, p.LeadTimeDays)
	}
	switch p.SafetyStockPolicy {
	case SafetyStockZScore, SafetyStockMinMax:
	default:
		return fmt.Errorf("%w: unknown safety_stock_policy %q", ErrInvalidConfig, p.SafetyStockPolicy)
	}
	switch p.ReorderPolicy {
	case ContinuousReview, PeriodicReview:
	default:
		return fmt.Errorf("%w: unknown reorder_policy %q", ErrInvalidConfig, p.ReorderPolicy)
	}
	if p.ReviewPeriodDays < 1 {
		return fmt.Errorf("%w: review_period_days must be >= 1, got %d", ErrInvalidConfig, p.ReviewPeriodDays)
	}
	if p.MinOrderQty < 0 {
		return fmt.Errorf("%w: min_order_qty must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// InventoryPoint is one step of the depletion walk.
type InventoryPoint struct {
	Date      Date    `json:"date"`
	Demand    float64 `json:"demand"`
	Available float64 `json:"available"`
	Reviewed  bool    `json:"reviewed"`
}

// SimulationResult is the reorder guidance for one SKU.
type SimulationResult struct {
	SafetyStock         float64  `json:"safety_stock"`
	ReorderPoint        float64  `json:"reorder_point"`
	ReorderDate         *Date    `json:"reorder_date"`
	RecommendedOrderQty *float64 `json:"recommended_order_qty"`
	StockoutDate        *Date    `json:"stockout_date"`
	StartingInventory   float64  `json:"starting_inventory"`
	LeadTimeDemand      float64  `json:"lead_time_demand"`
	TargetCycleStock    float64  `json:"target_cycle_stock"`
	PeriodsInLead       int      `json:"periods_in_lead"`
	// DaysOfCover is starting inventory over mean daily demand, nil when
	// demand is zero.
	DaysOfCover *float64         `json:"days_of_cover"`
	Trajectory  []InventoryPoint `json:"trajectory,omitempty"`
}
