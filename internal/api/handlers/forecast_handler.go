package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/ingest"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/pipeline"
)

// ForecastRequest is the body of a batch forecast. Either SKUs or flat Rows
// may be given; rows are grouped by unique_id.
type ForecastRequest struct {
	Config  *domain.SKUOverrides `json:"config,omitempty"`
	RunDate *domain.Date         `json:"run_date,omitempty"`
	SKUs    []domain.SKUInput    `json:"skus"`
	Rows    []domain.Observation `json:"rows"`
}

// SKUForecastRequest is the body of a single SKU forecast.
type SKUForecastRequest struct {
	Config  *domain.SKUOverrides `json:"config,omitempty"`
	RunDate *domain.Date         `json:"run_date,omitempty"`
	SKU     domain.SKUInput      `json:"sku"`
}

type ForecastHandler struct {
	worker   *pipeline.Worker
	planner  pipeline.SKUPlanner
	defaults domain.PlanConfig
}

func NewForecastHandler(worker *pipeline.Worker, planner pipeline.SKUPlanner, defaults domain.PlanConfig) *ForecastHandler {
	return &ForecastHandler{worker: worker, planner: planner, defaults: defaults}
}

func (h *ForecastHandler) config(overrides *domain.SKUOverrides, runDate *domain.Date) domain.PlanConfig {
	cfg := h.defaults.Merge(overrides)
	if runDate != nil {
		cfg.RunDate = runDate
	}
	return cfg
}

// Forecast plans a batch synchronously and returns the job record.
func (h *ForecastHandler) Forecast(c *gin.Context) {
	var req ForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	inputs := req.SKUs
	if len(req.Rows) > 0 {
		inputs = append(inputs, pipeline.GroupObservations(req.Rows)...)
	}
	if len(inputs) == 0 {
		badRequest(c, "no SKUs provided", nil)
		return
	}

	h.runBatch(c, inputs, h.config(req.Config, req.RunDate))
}

// ForecastUpload plans every SKU of an uploaded CSV or XLSX file. An
// optional "config" form field carries overrides as JSON.
func (h *ForecastHandler) ForecastUpload(c *gin.Context) {
	tbl, ok := readUpload(c)
	if !ok {
		return
	}

	var overrides *domain.SKUOverrides
	if raw := c.PostForm("config"); raw != "" {
		overrides = &domain.SKUOverrides{}
		if err := json.Unmarshal([]byte(raw), overrides); err != nil {
			badRequest(c, "invalid config field", err)
			return
		}
	}

	ds, err := ingest.Load(tbl, mappingFromForm(c))
	if err != nil {
		badRequest(c, "file could not be loaded", err)
		return
	}

	h.runBatch(c, pipeline.GroupObservations(ds.Observations), h.config(overrides, nil))
}

func (h *ForecastHandler) runBatch(c *gin.Context, inputs []domain.SKUInput, cfg domain.PlanConfig) {
	run, err := h.worker.Run(c.Request.Context(), pipeline.Batch{Inputs: inputs, Config: cfg})
	if err != nil {
		errorResponse(c, err, "forecast failed")
		return
	}

	log.Info().
		Str("job_id", run.JobID).
		Int("skus", run.Summary.Total).
		Int("failed", run.Summary.Failed).
		Msg("forecast batch finished")

	c.JSON(http.StatusOK, run)
}

// ForecastSKU plans one SKU and returns its record directly.
func (h *ForecastHandler) ForecastSKU(c *gin.Context) {
	var req SKUForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	if req.SKU.ProductID == "" {
		badRequest(c, "sku.product_id is required", nil)
		return
	}

	res, err := h.planner.PlanSKU(c.Request.Context(), req.SKU, h.config(req.Config, req.RunDate))
	if err != nil {
		errorResponse(c, err, fmt.Sprintf("sku %s could not be planned", req.SKU.ProductID))
		return
	}

	c.JSON(http.StatusOK, res)
}
