package pipeline

import (
	"context"
	"sort"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

// SKUMeta carries per-SKU values that do not come from the demand rows.
type SKUMeta struct {
	OnHand       *float64
	LeadTimeDays *int
	Overrides    *domain.SKUOverrides
}

// Orchestrator turns flat demand rows into a batch and runs it.
type Orchestrator struct {
	worker *Worker
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(worker *Worker) *Orchestrator {
	return &Orchestrator{worker: worker}
}

// Run groups rows per SKU, attaches meta and plans the batch.
func (o *Orchestrator) Run(ctx context.Context, rows []domain.Observation, meta map[string]SKUMeta, cfg domain.PlanConfig) (*domain.BatchResult, error) {
	inputs := GroupObservations(rows)
	for i := range inputs {
		m, ok := meta[inputs[i].ProductID]
		if !ok {
			continue
		}
		inputs[i].OnHand = m.OnHand
		inputs[i].LeadTimeDays = m.LeadTimeDays
		inputs[i].Overrides = m.Overrides
	}
	return o.worker.Run(ctx, Batch{Inputs: inputs, Config: cfg})
}

// GroupObservations splits rows by SKU, keeping row order within a SKU.
// SKUs come back sorted by id so batches are reproducible.
func GroupObservations(rows []domain.Observation) []domain.SKUInput {
	bySKU := make(map[string][]domain.Observation)
	for _, r := range rows {
		if r.UniqueID == "" {
			continue
		}
		bySKU[r.UniqueID] = append(bySKU[r.UniqueID], r)
	}

	ids := make([]string, 0, len(bySKU))
	for id := range bySKU {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	inputs := make([]domain.SKUInput, len(ids))
	for i, id := range ids {
		inputs[i] = domain.SKUInput{ProductID: id, Observations: bySKU[id]}
	}
	return inputs
}
