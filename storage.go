package norma

import (
	"context"
)

// Built-in storage adapter identifiers. The adapter registry is open:
// applications may register additional backends under their own names.
const (
	AdapterMemory   = "memory"
	AdapterFile     = "file"
	AdapterBolt     = "bbolt"
	AdapterPostgres = "postgres"
	AdapterRedis    = "redis"
	AdapterS3       = "s3"
	AdapterDuckDB   = "duckdb"
)

// StorageAdapter persists normalized representations under string keys.
// Load of a never-saved key returns an empty representation, not an error.
// Save must be idempotent. Adapters are responsible for their own atomicity;
// the core never invokes an adapter concurrently for the same key within one
// call chain.
type StorageAdapter interface {
	Load(ctx context.Context, key string) (NormalizedRepresentation, error)
	Save(ctx context.Context, key string, data NormalizedRepresentation) error
}

// KeyLister is an optional adapter capability enumerating all stored keys.
// Used by maintenance tooling to copy or inspect whole stores.
type KeyLister interface {
	Keys(ctx context.Context) ([]string, error)
}

// KeyDeleter is an optional adapter capability removing a stored key.
type KeyDeleter interface {
	Delete(ctx context.Context, key string) error
}

// AdapterRegistry maps adapter identifiers to storage adapters.
type AdapterRegistry interface {
	// Get resolves an adapter, failing with an UnknownAdapterError when the
	// identifier is unregistered.
	Get(identifier string) (StorageAdapter, error)
	// Register binds an adapter to an identifier. Re-registering an
	// identifier fails with a DUPLICATE_ADAPTER error.
	Register(identifier string, adapter StorageAdapter) error
	// Identifiers returns all registered adapter identifiers.
	Identifiers() []string
}

// Migrator upgrades a stored representation written at an older schema
// version to the current one. Implementations typically switch on fromVersion
// and apply renames/derivations step by step.
type Migrator interface {
	Migrate(ctx context.Context, data NormalizedRepresentation, fromVersion, toVersion int) (NormalizedRepresentation, error)
}

// MigratorRegistry maps migration-service identifiers to migrators.
type MigratorRegistry interface {
	// Get resolves a migrator, failing with an UNKNOWN_MIGRATOR error when
	// the identifier is unregistered.
	Get(identifier string) (Migrator, error)
	// Register binds a migrator to an identifier.
	Register(identifier string, migrator Migrator) error
}
