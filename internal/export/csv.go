// Package export projects SKU results into flat CSV views.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

// View names one CSV projection.
type View string

const (
	ViewForecast  View = "forecast"
	ViewOrderPlan View = "order_plan"
)

// Views lists every projection in a stable order.
var Views = []View{ViewForecast, ViewOrderPlan}

var (
	ForecastHeader  = []string{"product_id", "date", "point_forecast", "lower_bound", "upper_bound", "model_used"}
	OrderPlanHeader = []string{"product_id", "reorder_date", "recommended_order_qty", "reorder_point", "safety_stock", "stockout_date", "lead_time_days", "starting_inventory"}
)

// ParseView accepts the view name, case-insensitively.
func ParseView(s string) (View, error) {
	v := View(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Views {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown export view %q", s)
}

// FileName is the export file for a job and view.
func FileName(jobID string, view View) string {
	return fmt.Sprintf("%s_%s.csv", jobID, view)
}

// Header returns the column names of a view.
func Header(view View) []string {
	if view == ViewOrderPlan {
		return OrderPlanHeader
	}
	return ForecastHeader
}

// Rows projects results into records for view. Only completed SKUs appear.
func Rows(view View, results []domain.SKUResult) [][]string {
	if view == ViewOrderPlan {
		return OrderPlanRows(results)
	}
	return ForecastRows(results)
}

// ForecastRows has one record per SKU and forecast period.
func ForecastRows(results []domain.SKUResult) [][]string {
	var rows [][]string
	for _, r := range results {
		if r.Status != domain.SKUCompleted {
			continue
		}
		for _, p := range r.ForecastPoints {
			rows = append(rows, []string{
				r.ProductID,
				p.Date.String(),
				quantity(p.PointForecast),
				optionalQuantity(p.LowerBound),
				optionalQuantity(p.UpperBound),
				string(r.ModelUsed),
			})
		}
	}
	return rows
}

// OrderPlanRows has one record per SKU.
func OrderPlanRows(results []domain.SKUResult) [][]string {
	var rows [][]string
	for _, r := range results {
		if r.Status != domain.SKUCompleted {
			continue
		}
		lead := ""
		if r.LeadTimeDays != nil {
			lead = strconv.Itoa(*r.LeadTimeDays)
		}
		rows = append(rows, []string{
			r.ProductID,
			optionalDate(r.ReorderDate),
			optionalQuantity(r.RecommendedOrderQty),
			optionalQuantity(r.ReorderPoint),
			optionalQuantity(r.SafetyStock),
			optionalDate(r.StockoutDate),
			lead,
			optionalQuantity(r.StartingInventory),
		})
	}
	return rows
}

// Write streams the header and every record of view to w.
func Write(w io.Writer, view View, results []domain.SKUResult) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header(view)); err != nil {
		return err
	}
	if err := writer.WriteAll(Rows(view, results)); err != nil {
		return fmt.Errorf("write %s rows: %w", view, err)
	}
	return writer.Error()
}

func quantity(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func optionalQuantity(v *float64) string {
	if v == nil {
		return ""
	}
	return quantity(*v)
}

func optionalDate(d *domain.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}
