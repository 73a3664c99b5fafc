// Package insight turns a finished plan into severity-tagged flags.
package insight

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

// Thresholds tune when a flag fires. Zero values use the defaults.
type Thresholds struct {
	LowCoverage     float64
	DemandChange    float64
	VolatilityRatio float64
	LowAccuracyWAPE float64
	AnomalyZ        float64
}

// DefaultThresholds are the standard cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LowCoverage:     0.8,
		DemandChange:    0.10,
		VolatilityRatio: 1.5,
		LowAccuracyWAPE: 0.5,
		AnomalyZ:        3,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.LowCoverage <= 0 {
		t.LowCoverage = d.LowCoverage
	}
	if t.DemandChange <= 0 {
		t.DemandChange = d.DemandChange
	}
	if t.VolatilityRatio <= 0 {
		t.VolatilityRatio = d.VolatilityRatio
	}
	if t.LowAccuracyWAPE <= 0 {
		t.LowAccuracyWAPE = d.LowAccuracyWAPE
	}
	if t.AnomalyZ <= 0 {
		t.AnomalyZ = d.AnomalyZ
	}
	return t
}

// Input collects everything the flags are derived from.
type Input struct {
	Series       *domain.NormalizedSeries
	Profile      domain.SeriesProfile
	Points       []domain.ForecastPoint
	Simulation   domain.SimulationResult
	Metrics      domain.AccuracyMetrics
	ModelUsed    domain.ModelKind
	Exhausted    bool
	RunDate      domain.Date
	LeadTimeDays int
	Thresholds   Thresholds
}

const (
	recentWindow      = 7
	minAnomalyHistory = 10
	minPeakDaily      = 30
	minPeakWeekly     = 13
	percent           = 100
)

// Generate is deterministic: the same input always yields the same flags
// in the same order.
func Generate(in Input) []domain.Insight {
	th := in.Thresholds.withDefaults()
	out := []domain.Insight{}

	out = appendIf(out, stockoutRisk(in))
	out = appendIf(out, reorderPoint(in))
	out = appendIf(out, recommendedOrder(in))
	out = appendIf(out, lowCoverage(in, th))
	out = appendIf(out, modelFallback(in))
	out = appendIf(out, demandChange(in, th))
	out = appendIf(out, volatility(in, th))
	out = appendIf(out, peakSeason(in))
	out = appendIf(out, intermittent(in))
	out = appendIf(out, lowAccuracy(in, th))
	out = appendIf(out, anomalies(in, th))
	return out
}

func appendIf(list []domain.Insight, in *domain.Insight) []domain.Insight {
	if in == nil {
		return list
	}
	return append(list, *in)
}

func stockoutRisk(in Input) *domain.Insight {
	if in.Simulation.StockoutDate == nil {
		return nil
	}
	days := in.RunDate.DaysUntil(*in.Simulation.StockoutDate)
	severity := domain.SeverityWarning
	if days <= in.LeadTimeDays {
		severity = domain.SeverityCritical
	}
	return &domain.Insight{
		Type:     domain.InsightStockoutRisk,
		Message:  fmt.Sprintf("Projected stockout on %s.", in.Simulation.StockoutDate),
		Severity: severity,
		Value:    domain.Float(float64(days)),
	}
}

func reorderPoint(in Input) *domain.Insight {
	if in.Simulation.ReorderDate == nil {
		return nil
	}
	days := in.RunDate.DaysUntil(*in.Simulation.ReorderDate)
	severity := domain.SeverityWarning
	if len(in.Points) > 0 && !in.Simulation.ReorderDate.After(in.Points[0].Date.Time) {
		severity = domain.SeverityCritical
	}
	return &domain.Insight{
		Type:     domain.InsightReorderPoint,
		Message:  fmt.Sprintf("Place next order by %s.", in.Simulation.ReorderDate),
		Severity: severity,
		Value:    domain.Float(float64(days)),
	}
}

func recommendedOrder(in Input) *domain.Insight {
	qty := in.Simulation.RecommendedOrderQty
	if qty == nil || *qty <= 0 {
		return nil
	}
	return &domain.Insight{
		Type:     domain.InsightRecommendedOrder,
		Message:  fmt.Sprintf("Order %.0f units to cover lead time and the next review cycle.", math.Ceil(*qty)),
		Severity: domain.SeverityInfo,
		Value:    domain.Float(*qty),
	}
}

func lowCoverage(in Input, th Thresholds) *domain.Insight {
	if in.Series == nil || in.Series.CoveragePct >= th.LowCoverage {
		return nil
	}
	return &domain.Insight{
		Type:     domain.InsightLowCoverage,
		Message:  fmt.Sprintf("Only %.0f%% of periods have recorded sales; gaps were filled.", in.Series.CoveragePct*percent),
		Severity: domain.SeverityWarning,
		Value:    domain.Float(in.Series.CoveragePct),
	}
}

func modelFallback(in Input) *domain.Insight {
	if !in.Exhausted {
		return nil
	}
	return &domain.Insight{
		Type:     domain.InsightModelFallback,
		Message:  "No forecasting model could be fit; using the last observed value.",
		Severity: domain.SeverityWarning,
	}
}

// demandChange compares the first week of forecast with the last week of
// history.
func demandChange(in Input, th Thresholds) *domain.Insight {
	if in.Series == nil || in.Series.Len() == 0 || len(in.Points) == 0 {
		return nil
	}
	values := in.Series.Values()
	recent := stat.Mean(tail(values, recentWindow), nil)
	if recent <= 0 {
		return nil
	}
	ahead := stat.Mean(head(forecastValues(in.Points), recentWindow), nil)
	change := (ahead - recent) / recent

	switch {
	case change > th.DemandChange:
		return &domain.Insight{
			Type:     domain.InsightDemandIncrease,
			Message:  fmt.Sprintf("Demand is expected to rise %.0f%% over the coming week.", change*percent),
			Severity: domain.SeverityInfo,
			Value:    domain.Float(change * percent),
		}
	case change < -th.DemandChange:
		return &domain.Insight{
			Type:     domain.InsightDemandDecrease,
			Message:  fmt.Sprintf("Demand is expected to fall %.0f%% over the coming week.", -change*percent),
			Severity: domain.SeverityInfo,
			Value:    domain.Float(-change * percent),
		}
	}
	return nil
}

func volatility(in Input, th Thresholds) *domain.Insight {
	if in.Series == nil || in.Series.Len() < 2 || len(in.Points) < 2 {
		return nil
	}
	historical := stat.PopStdDev(in.Series.Values(), nil)
	projected := stat.PopStdDev(forecastValues(in.Points), nil)
	if projected <= historical*th.VolatilityRatio {
		return nil
	}
	return &domain.Insight{
		Type:     domain.InsightVolatility,
		Message:  "High volatility expected in the forecast period.",
		Severity: domain.SeverityInfo,
		Value:    domain.Float(projected),
	}
}

// peakSeason reports the calendar month with the highest mean demand.
func peakSeason(in Input) *domain.Insight {
	if in.Series == nil {
		return nil
	}
	need := minPeakDaily
	if in.Series.Frequency == domain.FrequencyWeekly {
		need = minPeakWeekly
	}
	if in.Series.Len() < need {
		return nil
	}

	sums := map[int]float64{}
	counts := map[int]int{}
	for _, p := range in.Series.Points {
		m := int(p.Timestamp.Month())
		sums[m] += p.Value
		counts[m]++
	}
	if len(counts) < 2 {
		return nil
	}
	months := make([]int, 0, len(counts))
	for m := range counts {
		months = append(months, m)
	}
	sort.Ints(months)

	best, bestMean := 0, math.Inf(-1)
	for _, m := range months {
		mean := sums[m] / float64(counts[m])
		if mean > bestMean {
			best, bestMean = m, mean
		}
	}
	if bestMean <= 0 {
		return nil
	}
	return &domain.Insight{
		Type:     domain.InsightPeakSeason,
		Message:  fmt.Sprintf("Peak demand typically occurs in %s.", time.Month(best)),
		Severity: domain.SeverityInfo,
		Value:    domain.Float(bestMean),
	}
}

func intermittent(in Input) *domain.Insight {
	if !in.ModelUsed.IsCroston() {
		return nil
	}
	return &domain.Insight{
		Type:     domain.InsightIntermittentDemand,
		Message:  fmt.Sprintf("Demand is intermittent (%.0f%% zero periods); forecast is an average rate.", in.Profile.IntermittencyRatio*percent),
		Severity: domain.SeverityInfo,
		Value:    domain.Float(in.Profile.IntermittencyRatio),
	}
}

func lowAccuracy(in Input, th Thresholds) *domain.Insight {
	if in.Metrics.WAPE == nil || *in.Metrics.WAPE <= th.LowAccuracyWAPE {
		return nil
	}
	return &domain.Insight{
		Type:     domain.InsightLowAccuracy,
		Message:  fmt.Sprintf("Hold-out error is high (WAPE %.0f%%); treat the forecast with caution.", *in.Metrics.WAPE*percent),
		Severity: domain.SeverityWarning,
		Value:    domain.Float(*in.Metrics.WAPE),
	}
}

func anomalies(in Input, th Thresholds) *domain.Insight {
	if in.Series == nil || in.Series.Len() < minAnomalyHistory {
		return nil
	}
	count := len(Anomalies(in.Series.Values(), th.AnomalyZ))
	if count == 0 {
		return nil
	}
	return &domain.Insight{
		Type:     domain.InsightAnomalies,
		Message:  fmt.Sprintf("%d unusual demand period(s) detected in history.", count),
		Severity: domain.SeverityInfo,
		Value:    domain.Float(float64(count)),
	}
}

// Anomalies returns the indexes whose z-score magnitude is at least zCut.
func Anomalies(values []float64, zCut float64) []int {
	if len(values) < 2 {
		return nil
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if std == 0 {
		return nil
	}
	var idx []int
	for i, v := range values {
		if math.Abs(v-mean)/std >= zCut {
			idx = append(idx, i)
		}
	}
	return idx
}

func forecastValues(points []domain.ForecastPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.PointForecast
	}
	return out
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func head(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[:n]
}
