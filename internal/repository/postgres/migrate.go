package postgres

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS forecast_runs (
		job_id       TEXT PRIMARY KEY,
		status       TEXT NOT NULL,
		error        TEXT NOT NULL DEFAULT '',
		started_at   TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ,
		total        INTEGER NOT NULL DEFAULT 0,
		completed    INTEGER NOT NULL DEFAULT 0,
		failed       INTEGER NOT NULL DEFAULT 0,
		cancelled    INTEGER NOT NULL DEFAULT 0,
		cached       INTEGER NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS forecast_sku_results (
		job_id     TEXT NOT NULL REFERENCES forecast_runs (job_id) ON DELETE CASCADE,
		position   INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		status     TEXT NOT NULL,
		model_used TEXT NOT NULL DEFAULT '',
		payload    JSONB NOT NULL,
		PRIMARY KEY (job_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_forecast_sku_results_product ON forecast_sku_results (product_id)`,
}

// Migrate creates the run tables if they are missing.
func Migrate(ctx context.Context, db *DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	log.Info().Int("statements", len(schema)).Msg("forecast schema is up to date")
	return nil
}
