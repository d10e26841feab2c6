package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lychee-technology/norma"
	"github.com/lychee-technology/norma/factory"
)

type options struct {
	adapter      string
	docs         int
	iterations   int
	cleanup      bool
	fileDir      string
	boltPath     string
	duckdbPath   string
	redisAddr    string
	pgHost       string
	pgPort       int
	pgDatabase   string
	pgUser       string
	pgPassword   string
	pgTable      string
	seed         int64
	seedProvided bool
}

func main() {
	log.SetFlags(0)

	opts := parseFlags()
	ctx := context.Background()

	config := norma.DefaultConfig()
	config.File.Directory = opts.fileDir
	config.Bolt.Path = opts.boltPath
	config.DuckDB.Path = opts.duckdbPath
	config.Redis.Addr = opts.redisAddr
	config.Postgres.Host = opts.pgHost
	config.Postgres.Port = opts.pgPort
	config.Postgres.Database = opts.pgDatabase
	config.Postgres.Username = opts.pgUser
	config.Postgres.Password = opts.pgPassword
	config.Postgres.TableName = opts.pgTable
	config.Storage.Adapters = []string{opts.adapter}
	config.Storage.DefaultAdapter = opts.adapter
	config.Storage.Timeout = 0

	runtime, err := factory.New(ctx, config)
	if err != nil {
		log.Fatalf("failed to open storage backend %q: %v", opts.adapter, err)
	}
	defer runtime.Close()

	if !opts.seedProvided {
		log.Printf("[info] Using random seed %d", opts.seed)
	}
	random := rand.New(rand.NewSource(opts.seed))

	if opts.iterations > 0 {
		if err := runEngineBenchmark(runtime.Manager, opts.iterations, random); err != nil {
			log.Fatalf("engine benchmark failed: %v", err)
		}
	}

	if opts.docs > 0 {
		adapter, err := runtime.Adapters.Get(opts.adapter)
		if err != nil {
			log.Fatalf("adapter lookup failed: %v", err)
		}
		if err := runStorageBenchmark(ctx, adapter, opts, random); err != nil {
			log.Fatalf("storage benchmark failed: %v", err)
		}
	}

	log.Println("[success] Benchmark complete.")
}

func parseFlags() options {
	var opts options

	flag.StringVar(&opts.adapter, "adapter", norma.AdapterMemory, "storage adapter to benchmark (memory, file, bbolt, postgres, redis, duckdb)")
	flag.IntVar(&opts.docs, "docs", 10_000, "number of documents for the storage benchmark (0 skips it)")
	flag.IntVar(&opts.iterations, "iterations", 100_000, "iterations for the conversion engine benchmark (0 skips it)")
	flag.BoolVar(&opts.cleanup, "cleanup", true, "delete generated documents after the storage benchmark")
	flag.StringVar(&opts.fileDir, "dir", getenvDefault("SETTINGS_DIR", "benchmark-data"), "file adapter directory")
	flag.StringVar(&opts.boltPath, "bolt-path", getenvDefault("BOLT_PATH", "benchmark.db"), "bbolt database file")
	flag.StringVar(&opts.duckdbPath, "duckdb-path", getenvDefault("DUCKDB_PATH", "benchmark.duckdb"), "duckdb database file")
	flag.StringVar(&opts.redisAddr, "redis-addr", getenvDefault("REDIS_ADDR", "localhost:6379"), "redis address")
	flag.StringVar(&opts.pgHost, "db-host", getenvDefault("DB_HOST", "localhost"), "database host")
	flag.IntVar(&opts.pgPort, "db-port", getenvDefaultInt("DB_PORT", 5432), "database port")
	flag.StringVar(&opts.pgDatabase, "db-name", getenvDefault("DB_NAME", "norma"), "database name")
	flag.StringVar(&opts.pgUser, "db-user", getenvDefault("DB_USER", "postgres"), "database user")
	flag.StringVar(&opts.pgPassword, "db-password", getenvDefault("DB_PASSWORD", "postgres"), "database password")
	flag.StringVar(&opts.pgTable, "settings-table", getenvDefault("SETTINGS_TABLE", "settings_store"), "settings store table name")
	seed := flag.Int64("seed", 0, "random seed (0 uses current time)")

	flag.Parse()

	if *seed == 0 {
		opts.seed = time.Now().UnixNano()
		opts.seedProvided = false
	} else {
		opts.seed = *seed
		opts.seedProvided = true
	}

	if opts.docs < 0 || opts.iterations < 0 {
		log.Fatal("counts must be non-negative")
	}

	return opts
}

// benchmarkSettings carries a representative mix of parameter types.
type benchmarkSettings struct {
	Name       string            `setting:"name"`
	Threshold  int               `setting:"threshold"`
	Ratio      float64           `setting:"ratio"`
	Active     bool              `setting:"active"`
	Window     time.Duration     `setting:"window"`
	Regions    []string          `setting:"regions"`
	Weights    []int64           `setting:"weights"`
	Labels     map[string]string `setting:"labels"`
	ModifiedAt time.Time         `setting:"modified_at"`
}

func runEngineBenchmark(manager norma.SettingsManager, iterations int, r *rand.Rand) error {
	if err := manager.RegisterClass(&benchmarkSettings{
		Name:      "baseline",
		Threshold: 10,
		Ratio:     0.5,
		Window:    time.Minute,
	}, norma.ClassDeclaration{}); err != nil {
		return err
	}

	live := randomSettings(r)
	draft, err := manager.CreateClone(live)
	if err != nil {
		return err
	}

	log.Printf("[info] Engine benchmark: %d iterations", iterations)

	start := time.Now()
	var data norma.NormalizedRepresentation
	for i := 0; i < iterations; i++ {
		data, err = manager.ToNormalized(live)
		if err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
	}
	report("ToNormalized", iterations, time.Since(start))

	start = time.Now()
	for i := 0; i < iterations; i++ {
		if _, err := manager.ApplyNormalized(data, live); err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
	}
	report("ApplyNormalized", iterations, time.Since(start))

	start = time.Now()
	for i := 0; i < iterations; i++ {
		if _, err := manager.CreateClone(live); err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
	}
	report("CreateClone", iterations, time.Since(start))

	start = time.Now()
	for i := 0; i < iterations; i++ {
		if _, err := manager.MergeCopy(draft, live); err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
	}
	report("MergeCopy", iterations, time.Since(start))

	return nil
}

func runStorageBenchmark(ctx context.Context, adapter norma.StorageAdapter, opts options, r *rand.Rand) error {
	log.Printf("[info] Storage benchmark: %d documents via %q", opts.docs, opts.adapter)

	keys := make([]string, opts.docs)
	docs := make([]norma.NormalizedRepresentation, opts.docs)
	for i := range keys {
		keys[i] = "benchmark/" + uuid.Must(uuid.NewV7()).String()
		docs[i] = randomRepresentation(r)
	}

	start := time.Now()
	for i, key := range keys {
		if err := adapter.Save(ctx, key, docs[i]); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	report("Save", opts.docs, time.Since(start))

	start = time.Now()
	for _, key := range keys {
		if _, err := adapter.Load(ctx, key); err != nil {
			return fmt.Errorf("load %s: %w", key, err)
		}
	}
	report("Load", opts.docs, time.Since(start))

	if lister, ok := adapter.(norma.KeyLister); ok {
		start = time.Now()
		listed, err := lister.Keys(ctx)
		if err != nil {
			return fmt.Errorf("list keys: %w", err)
		}
		log.Printf("  - Keys: %d listed in %v", len(listed), time.Since(start))
	}

	if opts.cleanup {
		deleter, ok := adapter.(norma.KeyDeleter)
		if !ok {
			log.Printf("[info] Adapter %q cannot delete, generated documents were kept", opts.adapter)
			return nil
		}
		start = time.Now()
		for _, key := range keys {
			if err := deleter.Delete(ctx, key); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
		report("Delete", opts.docs, time.Since(start))
	}

	return nil
}

func report(phase string, count int, elapsed time.Duration) {
	rate := float64(count) / elapsed.Seconds()
	log.Printf("  - %s: %d ops in %v (%.0f ops/sec)", phase, count, elapsed.Round(time.Millisecond), rate)
}

func randomSettings(r *rand.Rand) *benchmarkSettings {
	return &benchmarkSettings{
		Name:       fmt.Sprintf("profile-%04d", r.Intn(10000)),
		Threshold:  r.Intn(1000),
		Ratio:      r.Float64(),
		Active:     r.Intn(2) == 0,
		Window:     time.Duration(r.Intn(3600)) * time.Second,
		Regions:    uniqueSample(r, []string{"eu-west-1", "eu-central-1", "us-east-1", "ap-northeast-1"}, 2),
		Weights:    []int64{int64(r.Intn(100)), int64(r.Intn(100)), int64(r.Intn(100))},
		Labels:     map[string]string{"team": randomChoice(r, []string{"core", "growth", "data"}), "tier": randomChoice(r, []string{"free", "pro"})},
		ModifiedAt: time.Now().Add(-time.Duration(r.Intn(30*24)) * time.Hour).UTC(),
	}
}

func randomRepresentation(r *rand.Rand) norma.NormalizedRepresentation {
	return norma.NormalizedRepresentation{
		"name":      fmt.Sprintf("profile-%04d", r.Intn(10000)),
		"threshold": int64(r.Intn(1000)),
		"ratio":     r.Float64(),
		"active":    r.Intn(2) == 0,
		"window":    (time.Duration(r.Intn(3600)) * time.Second).String(),
		"regions":   toAnySlice(uniqueSample(r, []string{"eu-west-1", "eu-central-1", "us-east-1", "ap-northeast-1"}, 2)),
		"labels": map[string]any{
			"team": randomChoice(r, []string{"core", "growth", "data"}),
			"tier": randomChoice(r, []string{"free", "pro"}),
		},
	}
}

func randomChoice(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}

func uniqueSample(r *rand.Rand, values []string, count int) []string {
	if count <= 0 {
		return []string{}
	}
	if count >= len(values) {
		return append([]string{}, values...)
	}

	perm := r.Perm(len(values))
	result := make([]string, 0, count)
	for i := 0; i < count; i++ {
		result = append(result, values[perm[i]])
	}
	return result
}

func toAnySlice(values []string) []any {
	result := make([]any, len(values))
	for i, v := range values {
		result[i] = v
	}
	return result
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvDefaultInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
