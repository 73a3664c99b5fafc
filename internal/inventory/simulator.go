// Package inventory walks projected demand against on-hand stock to find
// reorder and stockout dates.
package inventory

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

// DemandStats summarises observed history for the minmax policy.
type DemandStats struct {
	Max  float64
	Mean float64
}

// StatsFromSeries computes DemandStats over the normalized history.
func StatsFromSeries(values []float64) DemandStats {
	if len(values) == 0 {
		return DemandStats{}
	}
	peak := values[0]
	for _, v := range values[1:] {
		if v > peak {
			peak = v
		}
	}
	return DemandStats{Max: peak, Mean: stat.Mean(values, nil)}
}

// Input is everything one simulation needs.
type Input struct {
	Points            []domain.ForecastPoint
	StartingInventory float64
	Policy            domain.ReorderPolicy
	Frequency         domain.Frequency
	// ConfidenceLevel is the level the forecast bounds were built at.
	ConfidenceLevel float64
	History         DemandStats
}

// ServiceZ is the one-sided normal quantile at the service level, clamped
// to [0.5, 0.999].
func ServiceZ(serviceLevel float64) float64 {
	level := math.Min(math.Max(serviceLevel, 0.5), 0.999)
	return distuv.UnitNormal.Quantile(level)
}

func periodsCovering(days, periodDays int) int {
	n := int(math.Ceil(float64(days) / float64(periodDays)))
	if n < 1 {
		n = 1
	}
	return n
}

// Simulate runs the single forward pass over the forecast horizon.
func Simulate(in Input) domain.SimulationResult {
	periodDays := in.Frequency.PeriodDays()
	policy := in.Policy
	res := domain.SimulationResult{StartingInventory: math.Max(0, in.StartingInventory)}
	if len(in.Points) == 0 {
		return res
	}

	demand := make([]float64, len(in.Points))
	for i, p := range in.Points {
		demand[i] = p.PointForecast
	}
	meanDemand := stat.Mean(demand, nil)

	// 1. Lead time and review interval in grid periods
	res.PeriodsInLead = periodsCovering(policy.LeadTimeDays, periodDays)
	reviewPeriods := periodsCovering(policy.ReviewPeriodDays, periodDays)

	// 2. Safety stock
	switch policy.SafetyStockPolicy {
	case domain.SafetyStockMinMax:
		leadPeriods := float64(policy.LeadTimeDays) / float64(periodDays)
		res.SafetyStock = math.Max(0, (in.History.Max-in.History.Mean)*leadPeriods)
	default:
		sigma := forecastSigma(in.Points, in.ConfidenceLevel)
		res.SafetyStock = math.Max(0, ServiceZ(policy.ServiceLevel)*sigma*math.Sqrt(float64(res.PeriodsInLead)))
	}

	// 3. Reorder point = demand over lead time + safety stock
	res.LeadTimeDemand = meanDemand * float64(res.PeriodsInLead)
	res.ReorderPoint = res.LeadTimeDemand + res.SafetyStock

	// 4. Target cycle stock covers lead time plus one review period
	res.TargetCycleStock = meanDemand*float64(res.PeriodsInLead+reviewPeriods) + res.SafetyStock

	// 5. Days of cover
	if daily := meanDemand / float64(periodDays); daily > 0 {
		res.DaysOfCover = domain.Float(res.StartingInventory / daily)
	}

	// 6. Walk the horizon
	available := res.StartingInventory
	res.Trajectory = make([]domain.InventoryPoint, len(in.Points))
	for i, p := range in.Points {
		available -= p.PointForecast
		reviewed := policy.ReorderPolicy != domain.PeriodicReview || i%reviewPeriods == 0
		res.Trajectory[i] = domain.InventoryPoint{
			Date:      p.Date,
			Demand:    p.PointForecast,
			Available: available,
			Reviewed:  reviewed,
		}

		if reviewed && res.ReorderDate == nil && available <= res.ReorderPoint {
			res.ReorderDate = domain.DatePtr(p.Date)
			res.RecommendedOrderQty = domain.Float(orderQuantity(res.TargetCycleStock-available, policy.MinOrderQty))
		}
		if res.StockoutDate == nil && available <= 0 {
			res.StockoutDate = domain.DatePtr(p.Date)
		}
	}
	return res
}

// orderQuantity floors at zero and enforces the minimum order.
func orderQuantity(qty, minOrder float64) float64 {
	qty = math.Max(0, qty)
	if qty > 0 && qty < minOrder {
		return minOrder
	}
	return qty
}

// forecastSigma recovers the one-period demand deviation from the first
// step's upper half-width, so it does not depend on the horizon length.
// Without bounds it falls back to the spread of the point forecasts.
func forecastSigma(points []domain.ForecastPoint, confidence float64) float64 {
	z := distuv.UnitNormal.Quantile(0.5 + math.Min(math.Max(confidence, 0.5), 0.999)/2)
	if first := points[0]; first.UpperBound != nil && z > 0 {
		return math.Max(0, *first.UpperBound-first.PointForecast) / z
	}

	demand := make([]float64, len(points))
	for i, p := range points {
		demand[i] = p.PointForecast
	}
	if len(demand) < 2 {
		return 0
	}
	return stat.StdDev(demand, nil)
}
