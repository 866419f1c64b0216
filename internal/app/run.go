package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/PruthvirajGire18/scholarlink-backend/internal/cli"
	"github.com/PruthvirajGire18/scholarlink-backend/internal/config"
	"github.com/PruthvirajGire18/scholarlink-backend/internal/db"
	"github.com/PruthvirajGire18/scholarlink-backend/internal/ingest"
	"github.com/PruthvirajGire18/scholarlink-backend/internal/logging"
)

func runIngest(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Minute, "Run timeout")
	initiatedBy := fs.String("initiated-by", "cli", "Recorded initiator of the run")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "run does not accept positional arguments")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	svc := ingest.NewService(cfg, pool, logger)
	result, err := svc.Run(ctx, db.TriggerManual, *initiatedBy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion run failed: %v\n", err)
		return 1
	}
	if !result.Accepted {
		fmt.Fprintf(os.Stderr, "Run rejected: %s\n", result.Message)
		return 1
	}

	fmt.Printf("Run %s finished with status %s\n", result.RunID, result.Status)
	fmt.Printf("  fetched=%d normalized=%d inserted=%d updated=%d skipped=%d\n",
		result.Totals.Fetched, result.Totals.Normalized,
		result.Totals.Inserted, result.Totals.Updated, result.Totals.Skipped)
	for _, summary := range result.SourceSummaries {
		fmt.Printf("  source %s: fetched=%d inserted=%d updated=%d skipped=%d errors=%d\n",
			summary.Name, summary.Fetched, summary.Inserted, summary.Updated, summary.Skipped, len(summary.Errors))
		for _, msg := range summary.Errors {
			fmt.Printf("    - %s\n", msg)
		}
	}

	if result.Status == db.RunStatusFailed {
		return 1
	}
	return 0
}
