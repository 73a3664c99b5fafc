package ingest

import (
	"strconv"
	"strings"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

// ColumnMapping names the header holding each field. Empty means absent.
type ColumnMapping struct {
	Date      string `json:"date,omitempty"`
	Demand    string `json:"demand,omitempty"`
	SKU       string `json:"sku,omitempty"`
	Inventory string `json:"inventory,omitempty"`
	LeadTime  string `json:"lead_time,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Merge fills empty fields of m from detected.
func (m ColumnMapping) Merge(detected ColumnMapping) ColumnMapping {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	return ColumnMapping{
		Date:      pick(m.Date, detected.Date),
		Demand:    pick(m.Demand, detected.Demand),
		SKU:       pick(m.SKU, detected.SKU),
		Inventory: pick(m.Inventory, detected.Inventory),
		LeadTime:  pick(m.LeadTime, detected.LeadTime),
		Name:      pick(m.Name, detected.Name),
	}
}

var (
	dateKeywords      = []string{"date", "day", "timestamp", "period"}
	demandKeywords    = []string{"demand", "units_sold", "qty", "quantity", "sales"}
	inventoryKeywords = []string{"inventory", "on_hand", "stock", "available"}
	leadTimeKeywords  = []string{"lead_time", "leadtime", "lt"}
	skuKeywords       = []string{"sku", "product_id", "item", "product", "unique_id"}
	nameKeywords      = []string{"name", "description", "title"}
)

const sniffRows = 5

// DetectMapping guesses the column for each field from header keywords and
// the shape of the first few values.
func DetectMapping(t *Table) ColumnMapping {
	var m ColumnMapping
	used := map[string]bool{}
	take := func(col string) string {
		if col != "" {
			used[col] = true
		}
		return col
	}

	m.Date = take(detectDate(t))

	// Demand prefers an exact name, then a keyword, then the first numeric column.
	lower := map[string]string{}
	for _, h := range t.Header {
		lower[strings.ToLower(h)] = h
	}
	for _, kw := range demandKeywords {
		if col, ok := lower[kw]; ok && !used[col] {
			m.Demand = take(col)
			break
		}
	}

	m.Inventory = take(findByKeywords(t.Header, inventoryKeywords, used))
	m.LeadTime = take(findByKeywords(t.Header, leadTimeKeywords, used))
	m.SKU = take(findByKeywords(t.Header, skuKeywords, used))

	if m.Demand == "" {
		m.Demand = take(findByKeywords(t.Header, demandKeywords, used))
	}
	if m.Demand == "" {
		for i, h := range t.Header {
			if !used[h] && columnIs(t, i, isNumber) {
				m.Demand = take(h)
				break
			}
		}
	}

	m.Name = take(findByKeywords(t.Header, nameKeywords, used))
	return m
}

func detectDate(t *Table) string {
	for i, h := range t.Header {
		if hasKeyword(h, dateKeywords) && columnIs(t, i, isDate) {
			return h
		}
	}
	for i, h := range t.Header {
		if columnIs(t, i, isDate) && !columnIs(t, i, isNumber) {
			return h
		}
	}
	return findByKeywords(t.Header, dateKeywords, nil)
}

func findByKeywords(header []string, keywords []string, used map[string]bool) string {
	for _, kw := range keywords {
		for _, h := range header {
			if used[h] {
				continue
			}
			if strings.Contains(strings.ToLower(h), kw) {
				return h
			}
		}
	}
	return ""
}

func hasKeyword(h string, keywords []string) bool {
	lower := strings.ToLower(h)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// columnIs reports whether every non-empty value among the first rows
// satisfies ok. A column with no values never matches.
func columnIs(t *Table, col int, ok func(string) bool) bool {
	seen := 0
	for _, row := range t.Rows {
		if seen == sniffRows {
			break
		}
		v := row[col]
		if isMissing(v) {
			continue
		}
		if !ok(v) {
			return false
		}
		seen++
	}
	return seen > 0
}

func isDate(v string) bool {
	_, err := domain.ParseDate(v)
	return err == nil
}

func isNumber(v string) bool {
	_, err := parseNumber(v)
	return err == nil
}

func parseNumber(v string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", ""), 64)
}

func isMissing(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "nan", "null", "na", "n/a", "none":
		return true
	}
	return false
}
