package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

type runRow struct {
	JobID       string       `db:"job_id"`
	Status      string       `db:"status"`
	Error       string       `db:"error"`
	StartedAt   time.Time    `db:"started_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
	Total       int          `db:"total"`
	Completed   int          `db:"completed"`
	Failed      int          `db:"failed"`
	Cancelled   int          `db:"cancelled"`
	Cached      int          `db:"cached"`
}

type skuResultRow struct {
	Position int    `db:"position"`
	Payload  []byte `db:"payload"`
}

type RunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// SaveRun upserts the run header and replaces its SKU results.
func (r *RunRepository) SaveRun(ctx context.Context, run *domain.BatchResult) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		// 1. Upsert the run header
		var completedAt sql.NullTime
		if run.CompletedAt != nil {
			completedAt = sql.NullTime{Time: *run.CompletedAt, Valid: true}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO forecast_runs (
				job_id, status, error, started_at, completed_at,
				total, completed, failed, cancelled, cached, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
			ON CONFLICT (job_id)
			DO UPDATE SET
				status = EXCLUDED.status,
				error = EXCLUDED.error,
				completed_at = EXCLUDED.completed_at,
				total = EXCLUDED.total,
				completed = EXCLUDED.completed,
				failed = EXCLUDED.failed,
				cancelled = EXCLUDED.cancelled,
				cached = EXCLUDED.cached,
				updated_at = NOW()
		`,
			run.JobID,
			string(run.Status),
			run.Error,
			run.StartedAt,
			completedAt,
			run.Summary.Total,
			run.Summary.Completed,
			run.Summary.Failed,
			run.Summary.Cancelled,
			run.Summary.Cached,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert run: %w", err)
		}

		// 2. Drop results from an earlier save of the same job
		if _, err := tx.ExecContext(ctx, `DELETE FROM forecast_sku_results WHERE job_id = $1`, run.JobID); err != nil {
			return fmt.Errorf("failed to clear sku results: %w", err)
		}

		if len(run.Results) == 0 {
			return nil
		}

		// 3. Insert results in batch order
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO forecast_sku_results (
				job_id, position, product_id, status, model_used, payload
			) VALUES ($1, $2, $3, $4, $5, $6)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, res := range run.Results {
			payload, err := json.Marshal(res)
			if err != nil {
				return fmt.Errorf("failed to encode result for %s: %w", res.ProductID, err)
			}
			if _, err := stmt.ExecContext(ctx, run.JobID, i, res.ProductID, string(res.Status), string(res.ModelUsed), payload); err != nil {
				return fmt.Errorf("failed to insert sku result: %w", err)
			}
		}

		return nil
	})
}

// GetRun loads a run and its results, or domain.ErrRunNotFound.
func (r *RunRepository) GetRun(ctx context.Context, jobID string) (*domain.BatchResult, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, `
		SELECT job_id, status, error, started_at, completed_at,
			total, completed, failed, cancelled, cached
		FROM forecast_runs
		WHERE job_id = $1
	`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var rows []skuResultRow
	err = r.db.SelectContext(ctx, &rows, `
		SELECT position, payload
		FROM forecast_sku_results
		WHERE job_id = $1
		ORDER BY position
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sku results: %w", err)
	}

	run := &domain.BatchResult{
		JobID:     row.JobID,
		Status:    domain.JobStatus(row.Status),
		Error:     row.Error,
		StartedAt: row.StartedAt,
		Results:   make([]domain.SKUResult, 0, len(rows)),
		Summary: domain.BatchSummary{
			Total:     row.Total,
			Completed: row.Completed,
			Failed:    row.Failed,
			Cancelled: row.Cancelled,
			Cached:    row.Cached,
		},
	}
	if row.CompletedAt.Valid {
		t := row.CompletedAt.Time
		run.CompletedAt = &t
	}

	for _, rr := range rows {
		var res domain.SKUResult
		if err := json.Unmarshal(rr.Payload, &res); err != nil {
			return nil, fmt.Errorf("failed to decode sku result %d: %w", rr.Position, err)
		}
		run.Results = append(run.Results, res)
	}

	return run, nil
}
