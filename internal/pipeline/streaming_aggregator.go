package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/export"
	"github.com/andresuchdata/autopo-forecast/backend-go/pkg/logger"
)

// ResultAggregator buffers SKU results per job and flushes them to one CSV
// per export view when the job is finalized. Concurrent jobs never share a
// buffer.
type ResultAggregator struct {
	outputDir     string
	buffers       map[string][]domain.SKUResult
	mu            sync.Mutex
	flushCallback func(ctx context.Context, csvPath string) error
}

// NewResultAggregator writes exports under outputDir. flushCallback, when
// set, runs for every written file (for example to upload it).
func NewResultAggregator(outputDir string, flushCallback func(ctx context.Context, csvPath string) error) *ResultAggregator {
	return &ResultAggregator{
		outputDir:     outputDir,
		buffers:       make(map[string][]domain.SKUResult),
		flushCallback: flushCallback,
	}
}

// Add buffers results of jobID for its flush.
func (ra *ResultAggregator) Add(_ context.Context, jobID string, results []domain.SKUResult) error {
	ra.mu.Lock()
	defer ra.mu.Unlock()

	ra.buffers[jobID] = append(ra.buffers[jobID], results...)
	return nil
}

// Finalize writes every view for jobID and drops its buffer.
func (ra *ResultAggregator) Finalize(ctx context.Context, jobID string) error {
	ra.mu.Lock()
	results := ra.buffers[jobID]
	delete(ra.buffers, jobID)
	ra.mu.Unlock()

	log := logger.Component("aggregator")
	if len(results) == 0 {
		log.Debug().Str("job_id", jobID).Msg("no results to export")
		return nil
	}

	if err := os.MkdirAll(ra.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, view := range export.Views {
		csvPath := ra.Path(jobID, view)
		if err := writeCSV(csvPath, view, results); err != nil {
			return fmt.Errorf("failed to write %s CSV: %w", view, err)
		}
		log.Info().Str("job_id", jobID).Str("path", csvPath).Msg("export written")

		if ra.flushCallback != nil {
			if err := ra.flushCallback(ctx, csvPath); err != nil {
				return fmt.Errorf("flush callback failed: %w", err)
			}
		}
	}

	return nil
}

// Path is where the view for jobID is written.
func (ra *ResultAggregator) Path(jobID string, view export.View) string {
	return filepath.Join(ra.outputDir, export.FileName(jobID, view))
}

func writeCSV(path string, view export.View, results []domain.SKUResult) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.Write(file, view, results); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Buffered returns the number of results waiting for Finalize.
func (ra *ResultAggregator) Buffered() int {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	n := 0
	for _, b := range ra.buffers {
		n += len(b)
	}
	return n
}
