package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/lychee-technology/norma"
	"github.com/lychee-technology/norma/factory"
)

type copyStoreOptions struct {
	from       string
	to         string
	dryRun     bool
	fileDir    string
	boltPath   string
	redisAddr  string
	redisDB    int
	duckdbPath string
	s3Bucket   string
	s3Prefix   string
	s3Region   string
	s3Endpoint string
	pgHost     string
	pgPort     int
	pgDatabase string
	pgUser     string
	pgPassword string
	pgTable    string
}

func runCopyStore(args []string) error {
	flags := flag.NewFlagSet("copy-store", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: norma-tools copy-store -from <adapter> -to <adapter> [options]")
		fmt.Println("")
		fmt.Println("Copies every stored settings document from one storage backend to")
		fmt.Println("another. The source backend must support key listing; all built-in")
		fmt.Println("backends do.")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	opts := copyStoreOptions{}
	flags.StringVar(&opts.from, "from", "", "source adapter (file, bbolt, postgres, redis, s3, duckdb)")
	flags.StringVar(&opts.to, "to", "", "destination adapter")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "list the keys that would be copied without writing")
	flags.StringVar(&opts.fileDir, "dir", getenvDefault("SETTINGS_DIR", "settings"), "file adapter directory")
	flags.StringVar(&opts.boltPath, "bolt-path", getenvDefault("BOLT_PATH", "settings.db"), "bbolt database file")
	flags.StringVar(&opts.redisAddr, "redis-addr", getenvDefault("REDIS_ADDR", "localhost:6379"), "redis address")
	flags.IntVar(&opts.redisDB, "redis-db", 0, "redis database number")
	flags.StringVar(&opts.duckdbPath, "duckdb-path", getenvDefault("DUCKDB_PATH", "settings.duckdb"), "duckdb database file")
	flags.StringVar(&opts.s3Bucket, "s3-bucket", getenvDefault("S3_BUCKET", ""), "s3 bucket")
	flags.StringVar(&opts.s3Prefix, "s3-prefix", getenvDefault("S3_PREFIX", "settings"), "s3 key prefix")
	flags.StringVar(&opts.s3Region, "s3-region", getenvDefault("S3_REGION", ""), "s3 region")
	flags.StringVar(&opts.s3Endpoint, "s3-endpoint", getenvDefault("S3_ENDPOINT", ""), "s3 endpoint override, e.g. MinIO")
	flags.StringVar(&opts.pgHost, "db-host", getenvDefault("DB_HOST", "localhost"), "database host")
	flags.IntVar(&opts.pgPort, "db-port", getenvDefaultInt("DB_PORT", 5432), "database port")
	flags.StringVar(&opts.pgDatabase, "db-name", getenvDefault("DB_NAME", "norma"), "database name")
	flags.StringVar(&opts.pgUser, "db-user", getenvDefault("DB_USER", "postgres"), "database user")
	flags.StringVar(&opts.pgPassword, "db-password", getenvDefault("DB_PASSWORD", "postgres"), "database password")
	flags.StringVar(&opts.pgTable, "settings-table", getenvDefault("SETTINGS_TABLE", "settings_store"), "settings store table name")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if opts.from == "" || opts.to == "" {
		flags.Usage()
		return fmt.Errorf("both -from and -to are required")
	}
	if opts.from == opts.to {
		return fmt.Errorf("source and destination adapter are the same: %s", opts.from)
	}

	return copyStore(context.Background(), opts)
}

func copyStore(ctx context.Context, opts copyStoreOptions) error {
	config := norma.DefaultConfig()
	config.File.Directory = opts.fileDir
	config.Bolt.Path = opts.boltPath
	config.Redis.Addr = opts.redisAddr
	config.Redis.DB = opts.redisDB
	config.DuckDB.Path = opts.duckdbPath
	config.S3.Bucket = opts.s3Bucket
	config.S3.Prefix = opts.s3Prefix
	config.S3.Region = opts.s3Region
	config.S3.Endpoint = opts.s3Endpoint
	config.Postgres.Host = opts.pgHost
	config.Postgres.Port = opts.pgPort
	config.Postgres.Database = opts.pgDatabase
	config.Postgres.Username = opts.pgUser
	config.Postgres.Password = opts.pgPassword
	config.Postgres.TableName = opts.pgTable
	config.Storage.Adapters = []string{opts.from, opts.to}

	runtime, err := factory.New(ctx, config)
	if err != nil {
		return fmt.Errorf("open storage backends: %w", err)
	}
	defer runtime.Close()

	source, err := runtime.Adapters.Get(opts.from)
	if err != nil {
		return err
	}
	dest, err := runtime.Adapters.Get(opts.to)
	if err != nil {
		return err
	}

	lister, ok := source.(norma.KeyLister)
	if !ok {
		return fmt.Errorf("source adapter '%s' does not support key listing", opts.from)
	}
	keys, err := lister.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list keys of '%s': %w", opts.from, err)
	}
	if len(keys) == 0 {
		fmt.Printf("Nothing to copy: store '%s' is empty.\n", opts.from)
		return nil
	}

	copied := 0
	for _, key := range keys {
		if opts.dryRun {
			fmt.Printf("would copy: %s\n", key)
			continue
		}
		data, err := source.Load(ctx, key)
		if err != nil {
			return fmt.Errorf("load '%s' from '%s': %w", key, opts.from, err)
		}
		if err := dest.Save(ctx, key, data); err != nil {
			return fmt.Errorf("save '%s' to '%s': %w", key, opts.to, err)
		}
		copied++
		fmt.Printf("copied: %s\n", key)
	}

	if opts.dryRun {
		fmt.Printf("Dry run: %d keys would be copied from '%s' to '%s'.\n", len(keys), opts.from, opts.to)
	} else {
		fmt.Printf("Copied %d keys from '%s' to '%s'.\n", copied, opts.from, opts.to)
	}
	return nil
}
