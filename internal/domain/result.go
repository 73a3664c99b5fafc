package domain

import "time"

// Insight types.
const (
	InsightStockoutRisk       = "stockout_risk"
	InsightReorderPoint       = "reorder_point"
	InsightRecommendedOrder   = "recommended_order"
	InsightLowCoverage        = "low_coverage"
	InsightModelFallback      = "model_fallback"
	InsightDemandIncrease     = "demand_increase"
	InsightDemandDecrease     = "demand_decrease"
	InsightVolatility         = "volatility"
	InsightPeakSeason         = "peak_season"
	InsightIntermittentDemand = "intermittent_demand"
	InsightLowAccuracy        = "low_accuracy"
	InsightAnomalies          = "anomalies"
)

// Insight is a severity-tagged, human-readable flag for one SKU.
type Insight struct {
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Value    *float64 `json:"value,omitempty"`
}

// SKUResult is the stable output record for one SKU. Absent optional fields
// mean "not applicable", never an error.
type SKUResult struct {
	ProductID           string           `json:"product_id"`
	Status              SKUStatus        `json:"status"`
	Error               string           `json:"error,omitempty"`
	ModelUsed           ModelKind        `json:"model_used,omitempty"`
	ForecastPoints      []ForecastPoint  `json:"forecast_points"`
	StockoutDate        *Date            `json:"stockout_date,omitempty"`
	ReorderPoint        *float64         `json:"reorder_point,omitempty"`
	ReorderDate         *Date            `json:"reorder_date,omitempty"`
	RecommendedOrderQty *float64         `json:"recommended_order_qty,omitempty"`
	SafetyStock         *float64         `json:"safety_stock,omitempty"`
	ServiceLevel        *float64         `json:"service_level,omitempty"`
	LeadTimeDays        *int             `json:"lead_time_days,omitempty"`
	StartingInventory   *float64         `json:"starting_inventory,omitempty"`
	AccuracyMetrics     *AccuracyMetrics `json:"accuracy_metrics,omitempty"`
	Insights            []Insight        `json:"insights"`
	Profile             *SeriesProfile   `json:"profile,omitempty"`
	Frequency           Frequency        `json:"frequency,omitempty"`
	CoveragePct         *float64         `json:"coverage_pct,omitempty"`
}

// FailedResult builds the record for a SKU that could not be planned.
func FailedResult(productID string, status SKUStatus, reason string) SKUResult {
	return SKUResult{
		ProductID:      productID,
		Status:         status,
		Error:          reason,
		ForecastPoints: []ForecastPoint{},
		Insights:       []Insight{},
	}
}

// BatchSummary counts SKU outcomes.
type BatchSummary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Cached    int `json:"cached"`
}

// BatchResult is the job-level record of a multi-SKU run.
type BatchResult struct {
	JobID       string       `json:"job_id"`
	Status      JobStatus    `json:"status"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Results     []SKUResult  `json:"results"`
	Summary     BatchSummary `json:"summary"`
}
