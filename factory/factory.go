// Package factory assembles a ready-to-use settings manager from a Config.
package factory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lychee-technology/norma"
	"github.com/lychee-technology/norma/internal"
	"github.com/lychee-technology/norma/internal/journal"
)

// Runtime bundles the manager with the registries it was built from and
// owns the lifecycle of every backend the factory opened.
type Runtime struct {
	Manager    norma.SettingsManager
	Converters norma.ConverterRegistry
	Adapters   norma.AdapterRegistry
	Migrators  norma.MigratorRegistry
	// Journal is nil unless the change journal is enabled.
	Journal *journal.Recorder

	closers []func() error
	cancel  context.CancelFunc
}

// New builds a SettingsManager with the built-in converters registered and
// the storage backends listed in config.Storage.Adapters opened. The caller
// registers settings classes on Runtime.Manager and closes the runtime on
// shutdown.
//
// Usage:
//
//	config := norma.DefaultConfig()
//	rt, err := factory.New(ctx, config)
//	if err != nil {
//	    // handle error
//	}
//	defer rt.Close()
//
//	err = rt.Manager.RegisterClass(&AppSettings{MaxUsers: 100}, norma.ClassDeclaration{})
func New(ctx context.Context, config *norma.Config) (*Runtime, error) {
	if config == nil {
		config = norma.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	rt := &Runtime{
		Converters: internal.NewConverterRegistry(),
		Adapters:   internal.NewAdapterRegistry(),
		Migrators:  internal.NewMigratorRegistry(),
	}

	// The memory adapter carries no configuration and costs nothing, so it
	// is always available.
	if err := rt.Adapters.Register(norma.AdapterMemory, internal.NewMemoryStorage()); err != nil {
		return nil, err
	}
	for _, id := range config.Storage.Adapters {
		if err := rt.registerAdapter(ctx, config, id); err != nil {
			_ = rt.Close()
			return nil, err
		}
	}
	if _, err := rt.Adapters.Get(config.Storage.DefaultAdapter); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("default adapter is not enabled: %w", err)
	}

	var observer internal.PersistObserver
	if config.Journal.Enabled {
		recorder, err := rt.startJournal(ctx, config)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.Journal = recorder
		observer = recorder
	}

	manager, err := internal.NewSettingsManager(config, rt.Converters, rt.Adapters, rt.Migrators, nil, observer)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Manager = manager

	zap.S().Infow("settings runtime ready",
		"adapters", rt.Adapters.Identifiers(),
		"default_adapter", config.Storage.DefaultAdapter,
		"journal", config.Journal.Enabled)
	return rt, nil
}

// Close flushes the journal, stops its loop and closes every backend New
// opened, in reverse order.
func (r *Runtime) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.Journal != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.Journal.Flush(flushCtx); err != nil {
			zap.S().Warnw("final journal flush failed", "error", err)
		}
		cancel()
	}

	var firstErr error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.closers = nil
	return firstErr
}

func (rt *Runtime) registerAdapter(ctx context.Context, config *norma.Config, id string) error {
	switch id {
	case norma.AdapterMemory:
		// Registered unconditionally above.
		return nil

	case norma.AdapterFile:
		storage, err := internal.NewFileStorage(config.File)
		if err != nil {
			return fmt.Errorf("failed to open file storage: %w", err)
		}
		return rt.register(config, id, storage)

	case norma.AdapterBolt:
		storage, err := internal.NewBoltStorage(config.Bolt)
		if err != nil {
			return fmt.Errorf("failed to open bbolt storage: %w", err)
		}
		rt.closers = append(rt.closers, storage.Close)
		return rt.register(config, id, storage)

	case norma.AdapterPostgres:
		storage, err := internal.NewPostgresStorage(ctx, config.Postgres)
		if err != nil {
			return fmt.Errorf("failed to open postgres storage: %w", err)
		}
		if err := storage.EnsureTable(ctx); err != nil {
			_ = storage.Close()
			return err
		}
		rt.closers = append(rt.closers, storage.Close)
		return rt.register(config, id, storage)

	case norma.AdapterRedis:
		storage, err := internal.NewRedisStorage(ctx, config.Redis)
		if err != nil {
			return fmt.Errorf("failed to open redis storage: %w", err)
		}
		rt.closers = append(rt.closers, storage.Close)
		return rt.register(config, id, storage)

	case norma.AdapterS3:
		storage, err := internal.NewS3Storage(ctx, config.S3)
		if err != nil {
			return fmt.Errorf("failed to open s3 storage: %w", err)
		}
		return rt.register(config, id, storage)

	case norma.AdapterDuckDB:
		storage, err := internal.NewDuckDBStorage(ctx, config.DuckDB)
		if err != nil {
			return fmt.Errorf("failed to open duckdb storage: %w", err)
		}
		rt.closers = append(rt.closers, storage.Close)
		return rt.register(config, id, storage)

	default:
		return fmt.Errorf("unknown storage adapter '%s' in configuration", id)
	}
}

// register installs the adapter, wrapped by the storage circuit breaker
// when enabled. The in-process memory adapter never goes through a breaker.
func (rt *Runtime) register(config *norma.Config, id string, storage norma.StorageAdapter) error {
	b := config.Storage.Breaker
	if b.Enabled && id != norma.AdapterMemory {
		breaker := internal.NewCircuitBreaker(b.Threshold, b.Window, b.Cooldown)
		storage = internal.NewBreakerStorage(id, storage, breaker)
	}
	return rt.Adapters.Register(id, storage)
}

func (rt *Runtime) startJournal(ctx context.Context, config *norma.Config) (*journal.Recorder, error) {
	jcfg := JournalConfig(config)
	logger := zap.L()

	db, err := journal.OpenDatabase(ctx, jcfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	recorder := journal.NewRecorder(db, jcfg, logger)
	if err := recorder.EnsureTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	rt.cancel = cancel
	go recorder.Run(runCtx, jcfg.FlushInterval)
	rt.closers = append(rt.closers, db.Close)
	return recorder, nil
}

// JournalConfig derives the journal package configuration from the top-level
// Config, reusing the Postgres and S3 sections for connectivity.
func JournalConfig(config *norma.Config) journal.Config {
	return journal.Config{
		TableName:     config.Journal.TableName,
		BatchSize:     config.Journal.BatchSize,
		FlushInterval: config.Journal.FlushInterval,
		PGHost:        config.Postgres.Host,
		PGPort:        config.Postgres.Port,
		PGUser:        config.Postgres.Username,
		PGPassword:    config.Postgres.Password,
		PGDB:          config.Postgres.Database,
		PGUseIAM:      config.Postgres.UseIAMAuth,
		S3Bucket:      config.Journal.ExportBucket,
		S3Prefix:      config.Journal.ExportPrefix,
		S3Region:      config.S3.Region,
		S3Endpoint:    config.S3.Endpoint,
	}
}
