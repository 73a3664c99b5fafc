package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/ingest"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/pipeline"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/planner"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	p := planner.New(nil)
	w := pipeline.NewWorker(p, pipeline.PipelineConfig{WorkerCount: 2})
	return NewRouter(&Services{Worker: w, Planner: p, Defaults: domain.DefaultPlanConfig()}, nil)
}

func steadyRows(id string, days int, value float64) []domain.Observation {
	start := domain.MakeDate(2024, 1, 1)
	rows := make([]domain.Observation, days)
	for i := range rows {
		rows[i] = domain.Observation{UniqueID: id, Timestamp: start.AddDays(i), Value: value}
	}
	return rows
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func doUpload(t *testing.T, r http.Handler, path, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doJSON(t, newTestRouter(t), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestForecastBatchThenFetchAndExport(t *testing.T) {
	r := newTestRouter(t)

	rows := steadyRows("STEADY", 30, 10)
	rows[len(rows)-1].OnHand = domain.Float(100)
	rows = append(rows, domain.Observation{UniqueID: "LONELY", Timestamp: domain.MakeDate(2024, 1, 1), Value: 3})
	horizon := 14

	rec := doJSON(t, r, http.MethodPost, "/api/v1/forecast", map[string]interface{}{
		"config": domain.SKUOverrides{Horizon: &horizon},
		"rows":   rows,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var run domain.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, domain.JobCompleted, run.Status)
	require.Len(t, run.Results, 2)
	assert.Equal(t, domain.SKUFailed, run.Results[0].Status)
	assert.Equal(t, domain.SKUCompleted, run.Results[1].Status)
	assert.Len(t, run.Results[1].ForecastPoints, 14)
	assert.Equal(t, 100.0, *run.Results[1].StartingInventory)

	rec = doJSON(t, r, http.MethodGet, "/api/v1/runs/"+run.JobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/v1/runs/"+run.JobID+"/export/forecast", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), run.JobID+"_forecast.csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Equal(t, "product_id,date,point_forecast,lower_bound,upper_bound,model_used", lines[0])
	assert.Len(t, lines, 15)

	rec = doJSON(t, r, http.MethodGet, "/api/v1/runs/"+run.JobID+"/export/order_plan", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, strings.Split(strings.TrimSpace(rec.Body.String()), "\n"), 2)

	rec = doJSON(t, r, http.MethodGet, "/api/v1/runs/"+run.JobID+"/export/pivot", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownRun(t *testing.T) {
	rec := doJSON(t, newTestRouter(t), http.MethodGet, "/api/v1/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "run not found")
}

func TestForecastValidationErrors(t *testing.T) {
	r := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/forecast", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no SKUs provided")

	horizon := 1000
	rec = doJSON(t, r, http.MethodPost, "/api/v1/forecast", map[string]interface{}{
		"config": domain.SKUOverrides{Horizon: &horizon},
		"rows":   steadyRows("A", 10, 1),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "horizon must be within")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/forecast", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	out := httptest.NewRecorder()
	r.ServeHTTP(out, req)
	assert.Equal(t, http.StatusBadRequest, out.Code)
}

func TestForecastSKU(t *testing.T) {
	r := newTestRouter(t)
	horizon := 7

	rec := doJSON(t, r, http.MethodPost, "/api/v1/forecast/sku", skuRequestBody("A", steadyRows("A", 21, 4), &horizon))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res domain.SKUResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "A", res.ProductID)
	assert.Len(t, res.ForecastPoints, 7)

	rec = doJSON(t, r, http.MethodPost, "/api/v1/forecast/sku", skuRequestBody("B", steadyRows("B", 1, 4), &horizon))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "not enough history")

	rec = doJSON(t, r, http.MethodPost, "/api/v1/forecast/sku", map[string]interface{}{"sku": map[string]string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func skuRequestBody(id string, rows []domain.Observation, horizon *int) map[string]interface{} {
	return map[string]interface{}{
		"config": domain.SKUOverrides{Horizon: horizon},
		"sku":    domain.SKUInput{ProductID: id, Observations: rows},
	}
}

func historyCSV() string {
	var b strings.Builder
	b.WriteString("sku,date,units_sold,stock\n")
	start := domain.MakeDate(2024, 3, 1)
	for i := 0; i < 28; i++ {
		fmt.Fprintf(&b, "P1,%s,%d,80\n", start.AddDays(i), 5+i%3)
	}
	return b.String()
}

func TestValidateUpload(t *testing.T) {
	rec := doUpload(t, newTestRouter(t), "/api/v1/validate", "history.csv", historyCSV(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var s ingest.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.True(t, s.Valid)
	assert.Equal(t, 28, s.Rows)
	assert.Equal(t, 1, s.SKUCount)
	assert.Equal(t, "units_sold", s.Mapping.Demand)
	assert.Equal(t, "stock", s.Mapping.Inventory)
	assert.Equal(t, domain.FrequencyDaily, s.DetectedFrequency)
}

func TestValidateRequiresFile(t *testing.T) {
	rec := doJSON(t, newTestRouter(t), http.MethodPost, "/api/v1/validate", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForecastUpload(t *testing.T) {
	rec := doUpload(t, newTestRouter(t), "/api/v1/forecast/upload", "history.csv", historyCSV(), map[string]string{
		"config": `{"horizon": 10, "lead_time_days": 3}`,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var run domain.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	require.Len(t, run.Results, 1)
	res := run.Results[0]
	assert.Equal(t, domain.SKUCompleted, res.Status)
	assert.Len(t, res.ForecastPoints, 10)
	assert.Equal(t, 3, *res.LeadTimeDays)
	assert.Equal(t, 80.0, *res.StartingInventory)
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	parsed, all := normalizeAllowedOrigins([]string{"https://a.example, https://b.example", " "})
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, parsed)
	assert.False(t, all)

	_, all = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, all)
}
