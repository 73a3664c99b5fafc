package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/config"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return Wrap(sqlx.NewDb(raw, driverName)), mock
}

func sampleRun() *domain.BatchResult {
	started := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	done := started.Add(2 * time.Second)
	return &domain.BatchResult{
		JobID:       "job-1",
		Status:      domain.JobCompleted,
		StartedAt:   started,
		CompletedAt: &done,
		Results: []domain.SKUResult{
			{ProductID: "A", Status: domain.SKUCompleted, ModelUsed: domain.ModelNaive, ReorderPoint: domain.Float(12), Insights: []domain.Insight{}},
			domain.FailedResult("B", domain.SKUFailed, "not enough history"),
		},
		Summary: domain.BatchSummary{Total: 2, Completed: 1, Failed: 1},
	}
}

func TestSaveRun(t *testing.T) {
	db, mock := newMockDB(t)
	run := sampleRun()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO forecast_runs").
		WithArgs("job-1", "COMPLETED", "", sqlmock.AnyArg(), sqlmock.AnyArg(), 2, 1, 1, 0, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM forecast_sku_results").
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare("INSERT INTO forecast_sku_results")
	prep.ExpectExec().
		WithArgs("job-1", 0, "A", "completed", "Naive", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("job-1", 1, "B", "failed", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewRunRepository(db).SaveRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO forecast_runs").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := NewRunRepository(db).SaveRun(context.Background(), sampleRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upsert run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRun(t *testing.T) {
	db, mock := newMockDB(t)
	run := sampleRun()

	payloadA, err := json.Marshal(run.Results[0])
	require.NoError(t, err)
	payloadB, err := json.Marshal(run.Results[1])
	require.NoError(t, err)

	mock.ExpectQuery("SELECT job_id, status").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"job_id", "status", "error", "started_at", "completed_at",
			"total", "completed", "failed", "cancelled", "cached",
		}).AddRow("job-1", "COMPLETED", "", run.StartedAt, *run.CompletedAt, 2, 1, 1, 0, 0))
	mock.ExpectQuery("SELECT position, payload").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"position", "payload"}).
			AddRow(0, payloadA).
			AddRow(1, payloadB))

	got, err := NewRunRepository(db).GetRun(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, got.Status)
	assert.Equal(t, run.Summary, got.Summary)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, run.CompletedAt.Equal(*got.CompletedAt))
	require.Len(t, got.Results, 2)
	assert.Equal(t, "A", got.Results[0].ProductID)
	assert.Equal(t, 12.0, *got.Results[0].ReorderPoint)
	assert.Equal(t, "not enough history", got.Results[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT job_id, status").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"job_id"}))

	_, err := NewRunRepository(db).GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestMigrate(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS forecast_runs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS forecast_sku_results").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/x", DSN(&config.DatabaseConfig{URL: "postgres://u:p@db:5432/x", Host: "ignored"}))
	assert.Equal(t,
		"host=localhost port=5432 user=app password=secret dbname=forecast sslmode=disable",
		DSN(&config.DatabaseConfig{Host: "localhost", Port: "5432", User: "app", Password: "secret", DBName: "forecast", SSLMode: "disable"}))
}
