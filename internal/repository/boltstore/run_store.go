// Package boltstore keeps batch runs in a local bbolt file for CLI use.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

var runsBucket = []byte("runs")

// RunStore implements pipeline.RunStore on bbolt.
type RunStore struct {
	db *bbolt.DB
}

// Open creates the file and its parent directory when missing.
func Open(path string) (*RunStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory for bolt db: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{
		Timeout:      1 * time.Second,
		FreelistType: bbolt.FreelistMapType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create runs bucket: %w", err)
	}

	return &RunStore{db: db}, nil
}

func (s *RunStore) Close() error {
	return s.db.Close()
}

func (s *RunStore) SaveRun(ctx context.Context, run *domain.BatchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(runsBucket).Put([]byte(run.JobID), data)
	})
}

func (s *RunStore) GetRun(ctx context.Context, jobID string) (*domain.BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var run domain.BatchResult
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(runsBucket).Get([]byte(jobID))
		if data == nil {
			return domain.ErrRunNotFound
		}
		if err := json.Unmarshal(data, &run); err != nil {
			return fmt.Errorf("failed to unmarshal run: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns run headers, newest first, without their SKU results.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]domain.BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var runs []domain.BatchResult
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(_, v []byte) error {
			var run domain.BatchResult
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("failed to unmarshal run: %w", err)
			}
			run.Results = nil
			runs = append(runs, run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].JobID < runs[j].JobID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
