// backend-go/internal/domain/models.go
package domain

// Frequency is the regular grid a normalized series lives on.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// PeriodDays is the number of calendar days one period spans.
func (f Frequency) PeriodDays() int {
	switch f {
	case FrequencyWeekly:
		return 7
	case FrequencyMonthly:
		return 30
	default:
		return 1
	}
}

// Supported reports whether the frequency can be used as a forecast grid.
func (f Frequency) Supported() bool {
	return f == FrequencyDaily || f == FrequencyWeekly
}

// FillMode controls how gaps in the grid are filled.
type FillMode string

const (
	FillZero        FillMode = "zero"
	FillInterpolate FillMode = "interpolate"
)

// Observation is a single raw demand reading for one SKU.
type Observation struct {
	UniqueID     string   `json:"unique_id"`
	Timestamp    Date     `json:"timestamp"`
	Value        float64  `json:"value"`
	OnHand       *float64 `json:"on_hand,omitempty"`
	LeadTimeDays *int     `json:"lead_time_days,omitempty"`
}

// SeriesPoint is one period of a normalized series.
type SeriesPoint struct {
	Timestamp      Date    `json:"timestamp"`
	Value          float64 `json:"value"`
	IsInterpolated bool    `json:"is_interpolated"`
}

// NormalizedSeries is a uniform-frequency, gap-filled series for one SKU.
// It is built once per run and never mutated afterwards.
type NormalizedSeries struct {
	UniqueID    string        `json:"unique_id"`
	Points      []SeriesPoint `json:"points"`
	Frequency   Frequency     `json:"frequency"`
	CoveragePct float64       `json:"coverage_pct"`
}

// Len returns the number of periods.
func (s *NormalizedSeries) Len() int {
	return len(s.Points)
}

// Values copies the period values in order.
func (s *NormalizedSeries) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// LastDate returns the timestamp of the final period.
func (s *NormalizedSeries) LastDate() Date {
	return s.Points[len(s.Points)-1].Timestamp
}

// FirstDate returns the timestamp of the first period.
func (s *NormalizedSeries) FirstDate() Date {
	return s.Points[0].Timestamp
}

// Truncate returns a new series holding only the first n periods.
func (s *NormalizedSeries) Truncate(n int) *NormalizedSeries {
	if n > len(s.Points) {
		n = len(s.Points)
	}
	points := make([]SeriesPoint, n)
	copy(points, s.Points[:n])
	return &NormalizedSeries{
		UniqueID:    s.UniqueID,
		Points:      points,
		Frequency:   s.Frequency,
		CoveragePct: s.CoveragePct,
	}
}

// SeriesProfile is the statistical shape of a normalized series.
type SeriesProfile struct {
	HasSeasonality     bool    `json:"has_seasonality"`
	SeasonalPeriod     *int    `json:"seasonal_period"`
	IntermittencyRatio float64 `json:"intermittency_ratio"`
	TrendStrength      float64 `json:"trend_strength"`
}

// Period returns the seasonal period or 0.
func (p SeriesProfile) Period() int {
	if p.SeasonalPeriod == nil {
		return 0
	}
	return *p.SeasonalPeriod
}

// ModelKind names one forecasting method.
type ModelKind string

const (
	ModelAutoARIMA           ModelKind = "AutoARIMA"
	ModelAutoETS             ModelKind = "AutoETS"
	ModelSeasonalNaive       ModelKind = "SeasonalNaive"
	ModelNaive               ModelKind = "Naive"
	ModelRandomWalkWithDrift ModelKind = "RandomWalkWithDrift"
	ModelCrostonClassic      ModelKind = "CrostonClassic"
	ModelCrostonOptimized    ModelKind = "CrostonOptimized"
	ModelCrostonSBA          ModelKind = "CrostonSBA"
	ModelTBATS               ModelKind = "TBATS"
)

// AllModels lists every supported model in a stable order.
var AllModels = []ModelKind{
	ModelAutoARIMA,
	ModelAutoETS,
	ModelSeasonalNaive,
	ModelNaive,
	ModelRandomWalkWithDrift,
	ModelCrostonClassic,
	ModelCrostonOptimized,
	ModelCrostonSBA,
	ModelTBATS,
}

// Valid reports whether k is a known model.
func (k ModelKind) Valid() bool {
	for _, m := range AllModels {
		if m == k {
			return true
		}
	}
	return false
}

// IsCroston reports whether k belongs to the intermittent-demand family.
func (k ModelKind) IsCroston() bool {
	return k == ModelCrostonClassic || k == ModelCrostonOptimized || k == ModelCrostonSBA
}

// ForecastPoint is one future period of a forecast.
type ForecastPoint struct {
	Date          Date     `json:"date"`
	PointForecast float64  `json:"point_forecast"`
	LowerBound    *float64 `json:"lower_bound"`
	UpperBound    *float64 `json:"upper_bound"`
}

// AccuracyMetrics are hold-out errors. A nil metric is degenerate.
type AccuracyMetrics struct {
	MAE   *float64 `json:"MAE"`
	MSE   *float64 `json:"MSE"`
	RMSE  *float64 `json:"RMSE"`
	MAPE  *float64 `json:"MAPE"`
	WAPE  *float64 `json:"WAPE"`
	SMAPE *float64 `json:"sMAPE"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}
