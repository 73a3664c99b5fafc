package boltstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

func openStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndGetRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	run := &domain.BatchResult{
		JobID:     "job-1",
		Status:    domain.JobCompleted,
		StartedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Results: []domain.SKUResult{
			{ProductID: "A", Status: domain.SKUCompleted, StockoutDate: domain.DatePtr(domain.MakeDate(2024, 2, 1)), Insights: []domain.Insight{}},
		},
		Summary: domain.BatchSummary{Total: 1, Completed: 1},
	}
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, got.Status)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "2024-02-01", got.Results[0].StockoutDate.String())

	run.Status = domain.JobFailed
	require.NoError(t, s.SaveRun(ctx, run))
	got, err = s.GetRun(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, got.Status)
}

func TestGetRunNotFound(t *testing.T) {
	_, err := openStore(t).GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "new", "mid"} {
		offset := map[int]time.Duration{0: 0, 1: 2 * time.Hour, 2: time.Hour}[i]
		require.NoError(t, s.SaveRun(ctx, &domain.BatchResult{
			JobID:     id,
			StartedAt: base.Add(offset),
			Results:   []domain.SKUResult{{ProductID: "X"}},
		}))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].JobID)
	assert.Equal(t, "mid", runs[1].JobID)
	assert.Nil(t, runs[0].Results)
}

func TestCancelledContext(t *testing.T) {
	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.SaveRun(ctx, &domain.BatchResult{JobID: "x"}), context.Canceled)
}
