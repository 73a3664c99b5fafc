package ingest

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

// DefaultSKU is the id used when the table has no SKU column.
const DefaultSKU = "default_sku"

// RowError describes a row that could not be converted.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Dataset is the converted table.
type Dataset struct {
	Mapping      ColumnMapping        `json:"mapping"`
	Observations []domain.Observation `json:"-"`
	Skipped      []RowError           `json:"skipped,omitempty"`
}

// Load converts rows into observations. Rows without a parseable date or
// demand value are skipped and reported; on_hand and lead_time are attached
// to the row when present.
func Load(t *Table, override ColumnMapping) (*Dataset, error) {
	m := override.Merge(DetectMapping(t))
	if m.Date == "" || m.Demand == "" {
		return nil, fmt.Errorf("missing required column(s): %s", missingRequired(m))
	}

	dateCol, demandCol := t.Column(m.Date), t.Column(m.Demand)
	if dateCol < 0 || demandCol < 0 {
		return nil, fmt.Errorf("mapped column not found in header: date=%q demand=%q", m.Date, m.Demand)
	}
	skuCol, invCol, ltCol := t.Column(m.SKU), t.Column(m.Inventory), t.Column(m.LeadTime)

	ds := &Dataset{Mapping: m, Observations: make([]domain.Observation, 0, len(t.Rows))}
	for i, row := range t.Rows {
		// header is line 1
		line := i + 2

		date, err := domain.ParseDate(row[dateCol])
		if err != nil {
			ds.Skipped = append(ds.Skipped, RowError{Row: line, Reason: err.Error()})
			continue
		}
		value, err := parseNumber(row[demandCol])
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			ds.Skipped = append(ds.Skipped, RowError{Row: line, Reason: fmt.Sprintf("unparseable demand %q", row[demandCol])})
			continue
		}

		obs := domain.Observation{UniqueID: DefaultSKU, Timestamp: date, Value: value}
		if skuCol >= 0 {
			obs.UniqueID = row[skuCol]
			if obs.UniqueID == "" {
				ds.Skipped = append(ds.Skipped, RowError{Row: line, Reason: "empty SKU"})
				continue
			}
		}
		if invCol >= 0 && !isMissing(row[invCol]) {
			if v, err := parseNumber(row[invCol]); err == nil {
				obs.OnHand = domain.Float(v)
			}
		}
		if ltCol >= 0 && !isMissing(row[ltCol]) {
			if v, err := parseNumber(row[ltCol]); err == nil && v >= 0 {
				obs.LeadTimeDays = domain.Int(int(math.Round(v)))
			}
		}
		ds.Observations = append(ds.Observations, obs)
	}

	if len(ds.Skipped) > 0 {
		log.Warn().Int("skipped", len(ds.Skipped)).Int("loaded", len(ds.Observations)).Msg("some rows could not be loaded")
	}
	return ds, nil
}

func missingRequired(m ColumnMapping) string {
	switch {
	case m.Date == "" && m.Demand == "":
		return "date, demand"
	case m.Date == "":
		return "date"
	default:
		return "demand"
	}
}
