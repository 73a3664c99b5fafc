package ingest

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

const salesCSV = `product_id,date,qty,on_hand,lead_time_days
A,2024-01-01,5,100,3
A,2024-01-02,7,,3
B,2024-01-01,1,20,
B,not-a-date,4,20,
`

func TestReadCSVAndDetectMapping(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(salesCSV))
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, 4)

	m := DetectMapping(tbl)
	assert.Equal(t, ColumnMapping{
		Date:      "date",
		Demand:    "qty",
		SKU:       "product_id",
		Inventory: "on_hand",
		LeadTime:  "lead_time_days",
	}, m)
}

func TestReadStripsByteOrderMark(t *testing.T) {
	tbl, err := Read(strings.NewReader("\ufeff product_id ,date,qty\nA,2024-01-01,5\n"), "export.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"product_id", "date", "qty"}, tbl.Header)
	assert.Equal(t, 0, tbl.Column("product_id"))

	ds, err := Load(tbl, ColumnMapping{})
	require.NoError(t, err)
	require.Len(t, ds.Observations, 1)
	assert.Equal(t, "A", ds.Observations[0].UniqueID)
}

func TestDetectMappingFallsBackToNumericDemand(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("when,item,amount\n2024-01-01,X,3\n2024-01-02,X,4\n"))
	require.NoError(t, err)
	m := DetectMapping(tbl)
	assert.Equal(t, "when", m.Date)
	assert.Equal(t, "amount", m.Demand)
	assert.Equal(t, "item", m.SKU)
}

func TestLoad(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(salesCSV))
	require.NoError(t, err)

	ds, err := Load(tbl, ColumnMapping{})
	require.NoError(t, err)
	require.Len(t, ds.Observations, 3)
	assert.Equal(t, []RowError{{Row: 5, Reason: `unrecognised date "not-a-date"`}}, ds.Skipped)

	first := ds.Observations[0]
	assert.Equal(t, "A", first.UniqueID)
	assert.Equal(t, domain.MakeDate(2024, 1, 1), first.Timestamp)
	assert.Equal(t, 5.0, first.Value)
	assert.Equal(t, 100.0, *first.OnHand)
	assert.Equal(t, 3, *first.LeadTimeDays)

	assert.Nil(t, ds.Observations[1].OnHand)
	assert.Nil(t, ds.Observations[2].LeadTimeDays)
}

func TestLoadWithoutSKUColumn(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("date,sales\n2024-01-01,3\n2024-01-08,4\n"))
	require.NoError(t, err)
	ds, err := Load(tbl, ColumnMapping{})
	require.NoError(t, err)
	for _, o := range ds.Observations {
		assert.Equal(t, DefaultSKU, o.UniqueID)
	}
}

func TestLoadMissingDemand(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("date,sku\n2024-01-01,A\n"))
	require.NoError(t, err)
	_, err = Load(tbl, ColumnMapping{})
	assert.EqualError(t, err, "missing required column(s): demand")
}

func TestLoadOverrideMapping(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("day,units,returns\n2024-01-01,3,1\n2024-01-02,4,0\n"))
	require.NoError(t, err)
	ds, err := Load(tbl, ColumnMapping{Demand: "returns"})
	require.NoError(t, err)
	assert.Equal(t, "returns", ds.Mapping.Demand)
	assert.Equal(t, 1.0, ds.Observations[0].Value)
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"sku", "date", "demand"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"A", "2024-01-01", 4}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"A", "2024-01-02", 6}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	tbl, err := Read(bytes.NewReader(buf.Bytes()), "history.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"sku", "date", "demand"}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"A", "2024-01-02", "6"}, tbl.Rows[1])
}

func TestReadUnsupported(t *testing.T) {
	_, err := Read(strings.NewReader(""), "history.parquet")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestValidateSummary(t *testing.T) {
	var b strings.Builder
	b.WriteString("sku,date,demand\n")
	start := domain.MakeDate(2024, 1, 1)
	for i := 0; i < 20; i++ {
		// day 10 is missing, day 15 spikes
		if i == 10 {
			continue
		}
		v := 10
		if i == 15 {
			v = 200
		}
		fmt.Fprintf(&b, "A,%s,%d\n", start.AddDays(i), v)
	}
	fmt.Fprintf(&b, "B,%s,\n", start)

	tbl, err := ReadCSV(strings.NewReader(b.String()))
	require.NoError(t, err)

	s := Validate(tbl, ColumnMapping{})
	assert.True(t, s.Valid)
	assert.Equal(t, 20, s.Rows)
	assert.Equal(t, 1, s.SKUCount)
	assert.Equal(t, 1, s.SkippedRows)
	assert.Equal(t, domain.FrequencyDaily, s.DetectedFrequency)
	require.NotNil(t, s.DateCoveragePct)
	assert.Equal(t, 0.95, *s.DateCoveragePct)
	assert.Equal(t, 0.05, s.MissingByField["demand"])

	require.Len(t, s.Anomalies, 1)
	assert.Equal(t, "A", s.Anomalies[0].UniqueID)
	assert.Equal(t, "2024-01-16", s.Anomalies[0].Date.String())
	assert.Greater(t, s.Anomalies[0].ZScore, 3.0)
}

func TestValidateReportsMissingColumns(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("foo,bar\nx,y\n"))
	require.NoError(t, err)
	s := Validate(tbl, ColumnMapping{})
	assert.False(t, s.Valid)
	assert.Equal(t, []string{"missing required column(s): date, demand"}, s.Errors)
}

func TestValidateEmptyTable(t *testing.T) {
	s := Validate(&Table{Header: []string{"date"}}, ColumnMapping{})
	assert.False(t, s.Valid)
	assert.Contains(t, s.Errors, "file has no data rows")
}
