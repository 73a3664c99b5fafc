package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/app"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/cache"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/config"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/drive"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/export"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/ingest"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/pipeline"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/repository/boltstore"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/autopo-forecast/backend-go/pkg/logger"
)

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "out",
			Usage:   "Directory the forecast and order plan CSVs are written to",
			EnvVars: []string{"APP_DATA_DIR"},
		},
		&cli.StringFlag{
			Name:  "store",
			Usage: "Where the run is persisted: memory, bolt or postgres (default picks from config)",
		},
		&cli.BoolFlag{
			Name:  "upload",
			Usage: "Upload the exports to object storage when STORAGE_ENABLED is set",
		},
		&cli.IntFlag{Name: "horizon", Usage: "Forecast periods ahead"},
		&cli.IntFlag{Name: "lead-time", Usage: "Supplier lead time in days"},
		&cli.Float64Flag{Name: "service-level", Usage: "Target service level, e.g. 0.95"},
		&cli.StringFlag{Name: "run-date", Usage: "Planning date (YYYY-MM-DD), defaults to the last observed date"},
		&cli.StringFlag{Name: "model", Usage: "Force a model instead of the cascade, e.g. AutoETS"},
	}
}

func mappingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "date-column", Usage: "Column holding the period date"},
		&cli.StringFlag{Name: "demand-column", Usage: "Column holding the demand quantity"},
		&cli.StringFlag{Name: "sku-column", Usage: "Column holding the product id"},
		&cli.StringFlag{Name: "inventory-column", Usage: "Column holding on-hand stock"},
		&cli.StringFlag{Name: "lead-time-column", Usage: "Column holding per-row lead time"},
	}
}

func driveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "drive-file", Usage: "Google Drive file id to plan from"},
		&cli.StringFlag{
			Name:    "drive-folder",
			Usage:   "Google Drive folder id; every CSV and XLSX in it is planned",
			EnvVars: []string{"GOOGLE_DRIVE_FOLDER_ID"},
		},
	}
}

func columnMapping(c *cli.Context) ingest.ColumnMapping {
	return ingest.ColumnMapping{
		Date:      c.String("date-column"),
		Demand:    c.String("demand-column"),
		SKU:       c.String("sku-column"),
		Inventory: c.String("inventory-column"),
		LeadTime:  c.String("lead-time-column"),
	}
}

func overrides(c *cli.Context) *domain.SKUOverrides {
	o := &domain.SKUOverrides{}
	if c.IsSet("horizon") {
		v := c.Int("horizon")
		o.Horizon = &v
	}
	if c.IsSet("lead-time") {
		v := c.Int("lead-time")
		o.LeadTimeDays = &v
	}
	if c.IsSet("service-level") {
		v := c.Float64("service-level")
		o.ServiceLevel = &v
	}
	if c.IsSet("model") {
		v := domain.ModelKind(c.String("model"))
		o.Model = &v
	}
	return o
}

func runPlan(c *cli.Context) error {
	cfg := config.Load()
	log := logger.Component("planner")

	plan := cfg.Forecast.PlanConfig().Merge(overrides(c))
	if s := c.String("run-date"); s != "" {
		d, err := domain.ParseDate(s)
		if err != nil {
			return fmt.Errorf("invalid --run-date: %w", err)
		}
		plan.RunDate = &d
	}
	if err := plan.Validate(); err != nil {
		return err
	}

	paths, err := historyFiles(c, cfg)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no history files given")
	}

	var rows []domain.Observation
	for _, p := range paths {
		table, err := ingest.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		ds, err := ingest.Load(table, columnMapping(c))
		if err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
		if len(ds.Skipped) > 0 {
			log.Warn().Str("file", p).Int("skipped", len(ds.Skipped)).Msg("rows skipped")
		}
		rows = append(rows, ds.Observations...)
	}

	outDir := c.String("out")
	if outDir == "" {
		outDir = cfg.App.DataDir
	}
	a, err := app.New(c.Context, cfg, app.Options{
		Store:     app.StoreKind(c.String("store")),
		OutputDir: outDir,
		Upload:    c.Bool("upload"),
	})
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := pipeline.NewOrchestrator(a.Worker).Run(c.Context, rows, nil, plan)
	if err != nil {
		return err
	}

	log.Info().
		Str("job_id", run.JobID).
		Str("status", string(run.Status)).
		Int("skus", run.Summary.Total).
		Int("completed", run.Summary.Completed).
		Int("failed", run.Summary.Failed).
		Int("cached", run.Summary.Cached).
		Msg("run finished")
	for _, view := range export.Views {
		fmt.Fprintln(c.App.Writer, filepath.Join(outDir, export.FileName(run.JobID, view)))
	}
	return nil
}

// historyFiles returns local paths, pulling from Google Drive when asked.
func historyFiles(c *cli.Context, cfg *config.Config) ([]string, error) {
	paths := c.Args().Slice()

	fileID, folderID := c.String("drive-file"), c.String("drive-folder")
	if fileID == "" && (folderID == "" || len(paths) > 0) {
		return paths, nil
	}

	creds, err := driveCredentials(cfg.Drive)
	if err != nil {
		return nil, err
	}
	svc, err := drive.NewService(c.Context, creds)
	if err != nil {
		return nil, err
	}
	dl := drive.NewDownloader(svc)
	dir := filepath.Join(cfg.App.UploadDir, "drive")

	if fileID != "" {
		f, err := svc.GetFile(c.Context, fileID)
		if err != nil {
			return nil, err
		}
		if !drive.IsHistoryFile(f.Name) {
			return nil, fmt.Errorf("%s: %w", f.Name, ingest.ErrUnsupportedFormat)
		}
		p, err := dl.Download(c.Context, f.ID, filepath.Join(dir, filepath.Base(f.Name)))
		if err != nil {
			return nil, err
		}
		return append(paths, p), nil
	}

	return dl.DownloadFolder(c.Context, drive.DownloadOptions{FolderID: folderID, DownloadDir: dir})
}

func driveCredentials(cfg config.DriveConfig) (string, error) {
	if cfg.CredentialsJSON != "" {
		return cfg.CredentialsJSON, nil
	}
	if cfg.CredentialsFile == "" {
		return "", fmt.Errorf("google drive credentials are not configured")
	}
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return "", fmt.Errorf("read drive credentials: %w", err)
	}
	return string(b), nil
}

func runValidate(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file")
	}
	table, err := ingest.ReadFile(c.Args().First())
	if err != nil {
		return err
	}
	summary := ingest.Validate(table, columnMapping(c))

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return err
	}
	if !summary.Valid {
		return cli.Exit("validation failed", 1)
	}
	return nil
}

func runMigrate(c *cli.Context) error {
	cfg := config.Load()
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	return postgres.Migrate(c.Context, db)
}

func runList(c *cli.Context) error {
	cfg := config.Load()
	if cfg.App.BoltPath == "" {
		return fmt.Errorf("APP_BOLT_PATH is not set")
	}
	store, err := boltstore.Open(cfg.App.BoltPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\t%d/%d completed\n",
			r.JobID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, r.Summary.Completed, r.Summary.Total)
	}
	return nil
}

func runCacheFlush(c *cli.Context) error {
	return flushResultCache(c.Context, config.Load().Cache, c.App.Writer)
}

// flushResultCache drops every cached SKU result so the next run replans
// from scratch.
func flushResultCache(ctx context.Context, cfg config.CacheConfig, w io.Writer) error {
	if !cfg.Enabled {
		fmt.Fprintln(w, "result cache is disabled, nothing to flush")
		return nil
	}
	rc, err := cache.NewResultCache(cfg)
	if err != nil {
		return fmt.Errorf("result cache: %w", err)
	}
	if err := rc.InvalidateAll(ctx); err != nil {
		return err
	}
	fmt.Fprintln(w, "result cache flushed")
	return nil
}
