// Package app wires the planner, its persistence and its side channels from
// configuration. Both binaries build on it.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/cache"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/config"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/pipeline"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/planner"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/repository/boltstore"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/storage"
)

// StoreKind selects where runs are persisted.
type StoreKind string

const (
	StoreAuto     StoreKind = ""
	StoreMemory   StoreKind = "memory"
	StoreBolt     StoreKind = "bolt"
	StorePostgres StoreKind = "postgres"
)

// Options adjust the wiring for one process.
type Options struct {
	Store StoreKind
	// OutputDir enables CSV exports. Empty disables them.
	OutputDir string
	// Upload pushes exports to object storage when storage is configured.
	Upload bool
}

// App holds the wired components.
type App struct {
	Config  *config.Config
	Planner *planner.Planner
	Worker  *pipeline.Worker
	Store   pipeline.RunStore
	Cache   cache.ResultCache
	Objects storage.ObjectStorage

	closers []func() error
}

// New builds the App. Close releases whatever it opened.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, Planner: planner.New(nil)}

	store, err := a.openStore(ctx, opts.Store)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	a.Cache, err = cache.NewResultCache(cfg.Cache)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("result cache: %w", err)
	}

	if cfg.Storage.Enabled {
		objects, err := storage.New(cfg.Storage)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("object storage: %w", err)
		}
		a.Objects = objects
	}

	workerOpts := []pipeline.Option{
		pipeline.WithRunStore(a.Store),
		pipeline.WithResultCache(a.Cache),
	}
	if opts.OutputDir != "" {
		var flush func(ctx context.Context, path string) error
		if opts.Upload && a.Objects != nil {
			flush = storage.ExportUploader(a.Objects, cfg.Storage.Prefix)
		}
		workerOpts = append(workerOpts, pipeline.WithAggregator(pipeline.NewResultAggregator(opts.OutputDir, flush)))
	}

	a.Worker = pipeline.NewWorker(a.Planner, pipeline.PipelineConfig{
		WorkerCount: cfg.Pipeline.WorkerCount,
		OutputDir:   opts.OutputDir,
	}, workerOpts...)

	return a, nil
}

func (a *App) openStore(ctx context.Context, kind StoreKind) (pipeline.RunStore, error) {
	cfg := a.Config
	if kind == StoreAuto {
		switch {
		case cfg.Database.Enabled:
			kind = StorePostgres
		case cfg.App.BoltPath != "":
			kind = StoreBolt
		default:
			kind = StoreMemory
		}
	}

	switch kind {
	case StorePostgres:
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, err
		}
		log.Info().Msg("runs are persisted to postgres")
		return postgres.NewRunRepository(db), nil
	case StoreBolt:
		if cfg.App.BoltPath == "" {
			return nil, fmt.Errorf("bolt store selected but APP_BOLT_PATH is empty")
		}
		s, err := boltstore.Open(cfg.App.BoltPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		log.Info().Str("path", cfg.App.BoltPath).Msg("runs are persisted to bolt")
		return s, nil
	case StoreMemory:
		return pipeline.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown run store %q", kind)
	}
}

// Close releases opened stores in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("failed to close resource")
		}
	}
	a.closers = nil
}
