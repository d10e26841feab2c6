package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/lychee-technology/norma/internal/journal"
)

func runExportJournal(args []string) error {
	flags := flag.NewFlagSet("export-journal", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: norma-tools export-journal [options]")
		fmt.Println("")
		fmt.Println("Exports unflushed change journal rows to S3 as a parquet file and")
		fmt.Println("marks them flushed. A batch is exported once it reaches -min-records")
		fmt.Println("rows or its oldest row exceeds -max-age.")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	cfg := journal.Config{}
	var (
		maxAge time.Duration
		dryRun bool
	)
	flags.StringVar(&cfg.PGHost, "db-host", getenvDefault("DB_HOST", "localhost"), "database host")
	flags.IntVar(&cfg.PGPort, "db-port", getenvDefaultInt("DB_PORT", 5432), "database port")
	flags.StringVar(&cfg.PGDB, "db-name", getenvDefault("DB_NAME", "norma"), "database name")
	flags.StringVar(&cfg.PGUser, "db-user", getenvDefault("DB_USER", "postgres"), "database user")
	flags.StringVar(&cfg.PGPassword, "db-password", getenvDefault("DB_PASSWORD", "postgres"), "database password")
	flags.BoolVar(&cfg.PGUseIAM, "db-iam-auth", false, "authenticate with an AWS DSQL IAM token instead of the password")
	flags.StringVar(&cfg.TableName, "journal-table", getenvDefault("JOURNAL_TABLE", "settings_journal"), "change journal table name")
	flags.StringVar(&cfg.S3Bucket, "s3-bucket", getenvDefault("S3_BUCKET", ""), "destination s3 bucket (required)")
	flags.StringVar(&cfg.S3Prefix, "s3-prefix", getenvDefault("S3_PREFIX", "settings"), "destination s3 key prefix")
	flags.StringVar(&cfg.S3Region, "s3-region", getenvDefault("S3_REGION", ""), "s3 region")
	flags.StringVar(&cfg.S3Endpoint, "s3-endpoint", getenvDefault("S3_ENDPOINT", ""), "s3 endpoint override, e.g. MinIO")
	flags.StringVar(&cfg.DuckDBPath, "duckdb-path", "", "duckdb working database, empty for in-memory")
	flags.IntVar(&cfg.DuckDBMemoryMB, "duckdb-memory-mb", 1024, "duckdb memory limit in MB")
	flags.IntVar(&cfg.DuckDBThreads, "duckdb-threads", 2, "duckdb thread count")
	flags.IntVar(&cfg.MinRecords, "min-records", 500, "export once this many rows are waiting")
	flags.DurationVar(&maxAge, "max-age", 15*time.Minute, "export once the oldest waiting row is this old")
	flags.BoolVar(&dryRun, "dry-run", false, "export the parquet file but do not mark rows flushed")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if cfg.S3Bucket == "" {
		flags.Usage()
		return fmt.Errorf("-s3-bucket is required")
	}
	cfg.MaxAgeMs = maxAge.Milliseconds()

	return journal.RunOnce(context.Background(), cfg, dryRun, zap.L())
}
