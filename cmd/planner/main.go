package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/autopo-forecast/backend-go/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "planner",
		Usage: "Forecast demand and plan reorders from sales history files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (console or json)",
				Value:   "console",
				EnvVars: []string{"LOG_FORMAT"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.SetFormat(c.String("log-format"))
			logger.SetLevel(c.String("log-level"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Plan every SKU found in the given history files",
				ArgsUsage: "[file ...]",
				Flags:     append(append(runFlags(), mappingFlags()...), driveFlags()...),
				Action:    runPlan,
			},
			{
				Name:      "validate",
				Usage:     "Detect columns and report data quality without planning",
				ArgsUsage: "<file>",
				Flags:     mappingFlags(),
				Action:    runValidate,
			},
			{
				Name:   "migrate",
				Usage:  "Create the postgres tables used to persist runs",
				Action: runMigrate,
			},
			{
				Name:  "runs",
				Usage: "List runs persisted in the local bolt store",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum runs to list", Value: 20},
				},
				Action: runList,
			},
			{
				Name:  "cache",
				Usage: "Manage the redis result cache",
				Subcommands: []*cli.Command{
					{
						Name:   "flush",
						Usage:  "Delete every cached SKU result",
						Action: runCacheFlush,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("planner failed")
	}
}
