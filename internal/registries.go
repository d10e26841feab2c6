package internal

import (
	"sort"
	"sync"

	"github.com/lychee-technology/norma"
)

// adapterRegistry is the default norma.AdapterRegistry implementation.
type adapterRegistry struct {
	mu       sync.RWMutex
	adapters map[string]norma.StorageAdapter
}

// NewAdapterRegistry creates an empty storage adapter registry.
func NewAdapterRegistry() norma.AdapterRegistry {
	return &adapterRegistry{adapters: make(map[string]norma.StorageAdapter)}
}

func (r *adapterRegistry) Get(identifier string) (norma.StorageAdapter, error) {
	r.mu.RLock()
	adapter, ok := r.adapters[identifier]
	r.mu.RUnlock()
	if !ok {
		return nil, norma.NewUnknownAdapterError(identifier)
	}
	return adapter, nil
}

func (r *adapterRegistry) Register(identifier string, adapter norma.StorageAdapter) error {
	if identifier == "" || adapter == nil {
		return norma.NewSettingsError(norma.ErrorTypeDeclaration, norma.ErrCodeInvalidDeclaration,
			"adapter registration requires an identifier and an adapter")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[identifier]; exists {
		return norma.NewSettingsError(norma.ErrorTypeDeclaration, norma.ErrCodeDuplicateAdapter,
			"storage adapter '"+identifier+"' already registered")
	}
	r.adapters[identifier] = adapter
	return nil
}

func (r *adapterRegistry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// migratorRegistry is the default norma.MigratorRegistry implementation.
type migratorRegistry struct {
	mu        sync.RWMutex
	migrators map[string]norma.Migrator
}

// NewMigratorRegistry creates an empty migrator registry.
func NewMigratorRegistry() norma.MigratorRegistry {
	return &migratorRegistry{migrators: make(map[string]norma.Migrator)}
}

func (r *migratorRegistry) Get(identifier string) (norma.Migrator, error) {
	r.mu.RLock()
	migrator, ok := r.migrators[identifier]
	r.mu.RUnlock()
	if !ok {
		return nil, norma.NewUnknownMigratorError(identifier)
	}
	return migrator, nil
}

func (r *migratorRegistry) Register(identifier string, migrator norma.Migrator) error {
	if identifier == "" || migrator == nil {
		return norma.NewSettingsError(norma.ErrorTypeDeclaration, norma.ErrCodeInvalidDeclaration,
			"migrator registration requires an identifier and a migrator")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.migrators[identifier]; exists {
		return norma.NewSettingsError(norma.ErrorTypeDeclaration, norma.ErrCodeDuplicateMigrator,
			"migrator '"+identifier+"' already registered")
	}
	r.migrators[identifier] = migrator
	return nil
}
