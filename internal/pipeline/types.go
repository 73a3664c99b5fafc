package pipeline

import (
	"context"
	"runtime"
	"sync"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

// SKUPlanner plans a single SKU. planner.Planner satisfies it.
type SKUPlanner interface {
	PlanSKU(ctx context.Context, in domain.SKUInput, cfg domain.PlanConfig) (domain.SKUResult, error)
}

// RunStore persists batch results so they can be fetched by job id.
type RunStore interface {
	SaveRun(ctx context.Context, run *domain.BatchResult) error
	// GetRun returns domain.ErrRunNotFound for unknown ids.
	GetRun(ctx context.Context, jobID string) (*domain.BatchResult, error)
}

// ResultCache skips recomputation for an unchanged SKU input and config.
type ResultCache interface {
	Get(ctx context.Context, in domain.SKUInput, cfg domain.PlanConfig) (*domain.SKUResult, bool, error)
	Set(ctx context.Context, in domain.SKUInput, cfg domain.PlanConfig, res domain.SKUResult) error
}

// Batch is one multi-SKU job.
type Batch struct {
	// JobID is generated when empty.
	JobID  string
	Inputs []domain.SKUInput
	Config domain.PlanConfig
}

// PipelineConfig holds configuration for a batch worker
type PipelineConfig struct {
	WorkerCount int    // Number of concurrent SKU workers
	OutputDir   string // Directory for export CSVs, empty disables export
}

// DefaultPipelineConfig sizes the pool to the available cores.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		WorkerCount: runtime.NumCPU(),
	}
}

// MemoryStore keeps runs in process. It is the default RunStore.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*domain.BatchResult
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*domain.BatchResult)}
}

func (m *MemoryStore) SaveRun(_ context.Context, run *domain.BatchResult) error {
	cp := *run
	cp.Results = append([]domain.SKUResult(nil), run.Results...)
	m.mu.Lock()
	m.runs[run.JobID] = &cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetRun(_ context.Context, jobID string) (*domain.BatchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[jobID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

type noopCache struct{}

// NewNoopCache returns a cache that never hits.
func NewNoopCache() ResultCache {
	return noopCache{}
}

func (noopCache) Get(context.Context, domain.SKUInput, domain.PlanConfig) (*domain.SKUResult, bool, error) {
	return nil, false, nil
}

func (noopCache) Set(context.Context, domain.SKUInput, domain.PlanConfig, domain.SKUResult) error {
	return nil
}
