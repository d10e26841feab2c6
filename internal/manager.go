package internal

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/lychee-technology/norma"
)

// PersistObserver is notified after every successful persist, once per saved
// class, so a cascading persist reports its materialized embedded classes as
// well. The observer receives a detached copy of the stored representation.
// The change journal implements it; the manager works fine without one.
type PersistObserver interface {
	ObservePersist(ctx context.Context, class, key string, version int, data norma.NormalizedRepresentation)
}

// settingsManager wires the engines into the norma.SettingsManager facade.
type settingsManager struct {
	config     *norma.Config
	registry   *ClassRegistry
	schemas    *schemaCache
	marshaller *Marshaller
	cloner     *Cloner
	merger     *Merger
	resetter   *Resetter
	observer   PersistObserver
}

// NewSettingsManager creates the manager over the given registries. A nil
// config falls back to defaults, a nil guesser to the reflect-based one.
func NewSettingsManager(
	config *norma.Config,
	converters norma.ConverterRegistry,
	adapters norma.AdapterRegistry,
	migrators norma.MigratorRegistry,
	guesser norma.TypeGuesser,
	observer PersistObserver,
) (norma.SettingsManager, error) {
	if config == nil {
		config = norma.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	registry := NewClassRegistry()
	builder := NewSchemaBuilder(registry, guesser, config.Storage.DefaultAdapter)
	schemas, err := newSchemaCache(builder, config.Schema.CacheSize, config.Schema.Debug)
	if err != nil {
		return nil, err
	}

	return &settingsManager{
		config:     config,
		registry:   registry,
		schemas:    schemas,
		marshaller: NewMarshaller(registry, schemas, converters, adapters, migrators),
		cloner:     NewCloner(registry, schemas),
		merger:     NewMerger(registry, schemas),
		resetter:   NewResetter(registry, schemas),
		observer:   observer,
	}, nil
}

func (m *settingsManager) RegisterClass(prototype any, declaration norma.ClassDeclaration) error {
	if err := m.registry.Register(prototype, declaration); err != nil {
		m.logError("failed to register settings class", err, "class", declaration.Name)
		return err
	}
	return nil
}

func (m *settingsManager) Schema(classOrInstance any) (*norma.SchemaModel, error) {
	class, err := m.registry.Resolve(classOrInstance)
	if err != nil {
		return nil, err
	}
	return m.schemas.Get(class)
}

func (m *settingsManager) Classes() []string {
	names := m.registry.Names()
	sort.Strings(names)
	return names
}

func (m *settingsManager) Hydrate(ctx context.Context, settings any) (any, error) {
	schema, err := m.Schema(settings)
	if err != nil {
		return nil, err
	}
	ctx, cancel := m.storageContext(ctx)
	defer cancel()
	start := time.Now()

	result, err := m.marshaller.Hydrate(ctx, settings, schema)
	if err != nil {
		m.logError("failed to hydrate settings", err, "class", schema.Class())
		return nil, err
	}
	EmitOperationLatency(ctx, "hydrate", schema.Class(), time.Since(start).Milliseconds())
	m.logOperation("hydrated settings", "class", schema.Class(), "key", schema.StorageKey())
	return result, nil
}

func (m *settingsManager) Persist(ctx context.Context, settings any) (any, error) {
	schema, err := m.Schema(settings)
	if err != nil {
		return nil, err
	}
	ctx, cancel := m.storageContext(ctx)
	defer cancel()
	start := time.Now()

	var observe func(class, key string, version int, data norma.NormalizedRepresentation)
	if m.observer != nil {
		observe = func(class, key string, version int, data norma.NormalizedRepresentation) {
			m.observer.ObservePersist(ctx, class, key, version, data)
		}
	}
	result, err := m.marshaller.PersistObserved(ctx, settings, schema, observe)
	if err != nil {
		m.logError("failed to persist settings", err, "class", schema.Class())
		return nil, err
	}
	EmitOperationLatency(ctx, "persist", schema.Class(), time.Since(start).Milliseconds())
	m.logOperation("persisted settings", "class", schema.Class(), "key", schema.StorageKey())
	return result, nil
}

func (m *settingsManager) ToNormalized(settings any) (norma.NormalizedRepresentation, error) {
	schema, err := m.Schema(settings)
	if err != nil {
		return nil, err
	}
	return m.marshaller.ToNormalized(settings, schema)
}

func (m *settingsManager) ApplyNormalized(data norma.NormalizedRepresentation, settings any) (any, error) {
	schema, err := m.Schema(settings)
	if err != nil {
		return nil, err
	}
	return m.marshaller.ApplyNormalized(data, settings, schema)
}

func (m *settingsManager) CreateClone(settings any) (any, error) {
	clone, err := m.cloner.CreateClone(settings)
	if err != nil {
		m.logError("failed to clone settings", err)
		return nil, err
	}
	return clone, nil
}

func (m *settingsManager) MergeCopy(copy, into any) (any, error) {
	result, err := m.merger.MergeCopy(copy, into, true)
	if err != nil {
		m.logError("failed to merge settings", err)
		return nil, err
	}
	return result, nil
}

func (m *settingsManager) MergeCopyShallow(copy, into any) (any, error) {
	result, err := m.merger.MergeCopy(copy, into, false)
	if err != nil {
		m.logError("failed to merge settings", err)
		return nil, err
	}
	return result, nil
}

func (m *settingsManager) Reset(settings any) error {
	if err := m.resetter.Reset(settings); err != nil {
		m.logError("failed to reset settings", err)
		return err
	}
	return nil
}

func (m *settingsManager) ResetWithSchema(settings any, schema *norma.SchemaModel) error {
	if err := m.resetter.ResetWithSchema(settings, schema); err != nil {
		m.logError("failed to reset settings", err, "class", schema.Class())
		return err
	}
	return nil
}

func (m *settingsManager) NewInstance(class string) (any, error) {
	return m.registry.NewInstance(class)
}

func (m *settingsManager) ExportJSONSchema(classOrInstance any) ([]byte, error) {
	schema, err := m.Schema(classOrInstance)
	if err != nil {
		return nil, err
	}
	return norma.MarshalJSONSchema(schema)
}

func (m *settingsManager) ValidateNormalized(classOrInstance any, data norma.NormalizedRepresentation) error {
	schema, err := m.Schema(classOrInstance)
	if err != nil {
		return err
	}
	return norma.ValidateNormalized(schema, data)
}

// storageContext bounds storage-touching operations with the configured
// timeout. Zero timeout leaves the caller's context as is.
func (m *settingsManager) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.config.Storage.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.config.Storage.Timeout)
}

func (m *settingsManager) logOperation(msg string, keysAndValues ...any) {
	if m.config.Logging.LogOperations {
		zap.S().Infow(msg, keysAndValues...)
	}
}

func (m *settingsManager) logError(msg string, err error, keysAndValues ...any) {
	if m.config.Logging.LogErrors {
		zap.S().Errorw(msg, append(keysAndValues, "error", err)...)
	}
}
