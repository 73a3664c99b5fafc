package ingest

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/forecast/series"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/insight"
)

const (
	anomalyZ             = 3.0
	anomalyMinValues     = 10
	lowCoverageWarning   = 0.7
	missingDemandWarning = 0.05
)

// Anomaly is a history value far from its SKU mean.
type Anomaly struct {
	UniqueID string      `json:"unique_id"`
	Date     domain.Date `json:"date"`
	Value    float64     `json:"value"`
	ZScore   float64     `json:"z_score"`
}

// Summary is the data-quality report for an uploaded table.
type Summary struct {
	Valid             bool               `json:"valid"`
	Errors            []string           `json:"errors"`
	Warnings          []string           `json:"warnings"`
	Rows              int                `json:"rows"`
	Columns           []string           `json:"columns"`
	Mapping           ColumnMapping      `json:"mapping"`
	SKUCount          int                `json:"sku_count"`
	SkippedRows       int                `json:"skipped_rows"`
	DetectedFrequency domain.Frequency   `json:"detected_frequency,omitempty"`
	DateCoveragePct   *float64           `json:"date_coverage_pct"`
	MissingByField    map[string]float64 `json:"missing_by_field"`
	Anomalies         []Anomaly          `json:"anomalies"`
}

// Validate loads the table and reports what the planner would see.
func Validate(t *Table, override ColumnMapping) *Summary {
	s := &Summary{
		Valid:          true,
		Errors:         []string{},
		Warnings:       []string{},
		Rows:           len(t.Rows),
		Columns:        t.Header,
		MissingByField: map[string]float64{},
		Anomalies:      []Anomaly{},
	}
	if len(t.Rows) == 0 {
		s.Valid = false
		s.Errors = append(s.Errors, "file has no data rows")
		return s
	}

	s.Mapping = override.Merge(DetectMapping(t))
	for field, col := range map[string]string{"demand": s.Mapping.Demand, "inventory": s.Mapping.Inventory, "lead_time": s.Mapping.LeadTime} {
		if idx := t.Column(col); idx >= 0 {
			s.MissingByField[field] = round4(missingShare(t, idx))
		}
	}

	ds, err := Load(t, override)
	if err != nil {
		s.Valid = false
		s.Errors = append(s.Errors, err.Error())
		return s
	}
	s.SkippedRows = len(ds.Skipped)
	if len(ds.Observations) == 0 {
		s.Valid = false
		s.Errors = append(s.Errors, "no row has a parseable date and demand value")
		return s
	}

	if ds.Mapping.SKU == "" {
		s.Warnings = append(s.Warnings, "Could not detect SKU/product column. Treating the file as a single product.")
	}

	bySKU := groupBySKU(ds.Observations)
	s.SKUCount = len(bySKU)

	dates := distinctDates(ds.Observations)
	if freq, err := series.DetectFrequency(dates); err == nil {
		s.DetectedFrequency = freq
	} else {
		s.Warnings = append(s.Warnings, fmt.Sprintf("Frequency could not be detected: %v", err))
	}
	s.DateCoveragePct = coverage(dates, s.DetectedFrequency)
	s.Anomalies = findAnomalies(bySKU)

	if s.DateCoveragePct != nil && *s.DateCoveragePct < lowCoverageWarning {
		s.Warnings = append(s.Warnings, "Date coverage is below 70%. Consider filling gaps for better accuracy.")
	}
	if s.MissingByField["demand"] > missingDemandWarning {
		s.Warnings = append(s.Warnings, "More than 5% of demand values are missing. Fill or clean the dataset.")
	}
	if len(s.Anomalies) > 0 {
		s.Warnings = append(s.Warnings, fmt.Sprintf("Detected %d potential demand anomalies (|z| >= 3.0).", len(s.Anomalies)))
	}
	if s.SkippedRows > 0 {
		s.Warnings = append(s.Warnings, fmt.Sprintf("%d row(s) were skipped because the date or demand could not be parsed.", s.SkippedRows))
	}
	return s
}

func missingShare(t *Table, col int) float64 {
	missing := 0
	for _, row := range t.Rows {
		if isMissing(row[col]) {
			missing++
		}
	}
	return float64(missing) / float64(len(t.Rows))
}

func groupBySKU(obs []domain.Observation) map[string][]domain.Observation {
	out := map[string][]domain.Observation{}
	for _, o := range obs {
		out[o.UniqueID] = append(out[o.UniqueID], o)
	}
	return out
}

func distinctDates(obs []domain.Observation) []domain.Date {
	seen := map[domain.Date]bool{}
	out := make([]domain.Date, 0, len(obs))
	for _, o := range obs {
		if !seen[o.Timestamp] {
			seen[o.Timestamp] = true
			out = append(out, o.Timestamp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j].Time) })
	return out
}

// coverage is distinct dates over the slots of the min..max grid. Daily is
// assumed when the frequency is unknown.
func coverage(dates []domain.Date, freq domain.Frequency) *float64 {
	if len(dates) == 0 {
		return nil
	}
	step := freq.PeriodDays()
	if step <= 0 {
		step = 1
	}
	expected := dates[0].DaysUntil(dates[len(dates)-1])/step + 1
	share := math.Min(1, float64(len(dates))/float64(expected))
	return domain.Float(round4(share))
}

func findAnomalies(bySKU map[string][]domain.Observation) []Anomaly {
	ids := make([]string, 0, len(bySKU))
	for id := range bySKU {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := []Anomaly{}
	for _, id := range ids {
		rows := bySKU[id]
		if len(rows) < anomalyMinValues {
			continue
		}
		values := make([]float64, len(rows))
		for i, r := range rows {
			values[i] = r.Value
		}
		mean, std := stat.PopMeanStdDev(values, nil)
		for _, i := range insight.Anomalies(values, anomalyZ) {
			out = append(out, Anomaly{
				UniqueID: id,
				Date:     rows[i].Timestamp,
				Value:    values[i],
				ZScore:   round4((values[i] - mean) / std),
			})
		}
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
