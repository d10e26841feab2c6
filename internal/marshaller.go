package internal

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lychee-technology/norma"
)

// Marshaller converts settings objects to and from their normalized
// representation and moves that representation through storage adapters.
// Hydrate and Persist cascade over embedded settings; the pure halves
// ToNormalized / ApplyNormalized cover exactly one class.
type Marshaller struct {
	registry   *ClassRegistry
	schemas    *schemaCache
	converters norma.ConverterRegistry
	adapters   norma.AdapterRegistry
	migrators  norma.MigratorRegistry
}

func NewMarshaller(registry *ClassRegistry, schemas *schemaCache, converters norma.ConverterRegistry,
	adapters norma.AdapterRegistry, migrators norma.MigratorRegistry) *Marshaller {
	return &Marshaller{
		registry:   registry,
		schemas:    schemas,
		converters: converters,
		adapters:   adapters,
		migrators:  migrators,
	}
}

// Hydrate loads the stored representation of the schema's class and applies
// it to the settings object. Keys missing from the stored representation
// leave the object's current values untouched. Embedded settings are wired
// up lazily: an unmaterialized slot receives a deferred initializer that
// hydrates the embedded class on first access, an already materialized slot
// is refreshed in place.
func (m *Marshaller) Hydrate(ctx context.Context, settings any, schema *norma.SchemaModel) (any, error) {
	return m.hydrate(ctx, settings, schema, make(map[string]bool))
}

func (m *Marshaller) hydrate(ctx context.Context, settings any, schema *norma.SchemaModel, seen map[string]bool) (any, error) {
	class := schema.Class()
	if seen[class] {
		return settings, nil
	}
	seen[class] = true

	adapter, err := m.adapters.Get(schema.StorageAdapter())
	if err != nil {
		return nil, err
	}
	data, err := adapter.Load(ctx, schema.StorageKey())
	if err != nil {
		return nil, fmt.Errorf("failed to load settings '%s': %w", class, err)
	}

	data, err = m.migrateIfNeeded(ctx, data, schema)
	if err != nil {
		return nil, err
	}

	if err := m.applyParameters(data, settings, schema); err != nil {
		return nil, err
	}

	accessor, err := m.registry.Accessor(class)
	if err != nil {
		return nil, err
	}
	for _, ed := range schema.Embedded() {
		slot, err := accessor.Slot(settings, ed.Property)
		if err != nil {
			return nil, err
		}
		if slot.Materialized() {
			embedSchema, err := m.schemas.Get(ed.Class)
			if err != nil {
				return nil, err
			}
			if _, err := m.hydrate(ctx, slot.Resolve(), embedSchema, seen); err != nil {
				return nil, err
			}
			continue
		}
		slot.DeferTo(ed.Class, m.deferredHydrate(ed.Class))
	}
	return settings, nil
}

// deferredHydrate builds the initializer for a lazy embedded branch: a fresh
// default instance of the embedded class, hydrated from its own storage on
// first access. Initializer failures fall back to the default instance (or
// nil when even instantiation fails) and are logged, since the access point
// has no error channel.
func (m *Marshaller) deferredHydrate(class string) func() any {
	return func() any {
		instance, err := m.registry.NewInstance(class)
		if err != nil {
			zap.S().Errorw("failed to instantiate embedded settings", "class", class, "error", err)
			return nil
		}
		schema, err := m.schemas.Get(class)
		if err != nil {
			zap.S().Errorw("failed to resolve embedded settings schema", "class", class, "error", err)
			return instance
		}
		if _, err := m.hydrate(context.Background(), instance, schema, make(map[string]bool)); err != nil {
			zap.S().Errorw("failed to hydrate embedded settings", "class", class, "error", err)
		}
		return instance
	}
}

// Persist converts the settings object to its normalized representation and
// saves it under the schema's storage key, stamping the schema version into
// the envelope. Materialized embedded settings are persisted recursively;
// unmaterialized branches are skipped untouched.
func (m *Marshaller) Persist(ctx context.Context, settings any, schema *norma.SchemaModel) (any, error) {
	return m.persist(ctx, settings, schema, make(map[string]bool), nil)
}

// PersistObserved persists like Persist and reports every saved class to the
// observe callback with a detached copy of the representation that was
// written, cascaded embedded classes included.
func (m *Marshaller) PersistObserved(ctx context.Context, settings any, schema *norma.SchemaModel,
	observe func(class, key string, version int, data norma.NormalizedRepresentation)) (any, error) {
	return m.persist(ctx, settings, schema, make(map[string]bool), observe)
}

func (m *Marshaller) persist(ctx context.Context, settings any, schema *norma.SchemaModel, seen map[string]bool,
	observe func(class, key string, version int, data norma.NormalizedRepresentation)) (any, error) {
	class := schema.Class()
	if seen[class] {
		return settings, nil
	}
	seen[class] = true

	if err := m.checkClass(settings, schema); err != nil {
		return nil, err
	}

	data, err := m.ToNormalized(settings, schema)
	if err != nil {
		return nil, err
	}
	if schema.HasVersion() {
		data[norma.VersionKey] = schema.Version()
	}

	adapter, err := m.adapters.Get(schema.StorageAdapter())
	if err != nil {
		return nil, err
	}
	if err := adapter.Save(ctx, schema.StorageKey(), data); err != nil {
		return nil, fmt.Errorf("failed to save settings '%s': %w", class, err)
	}
	zap.S().Debugw("persisted settings", "class", class, "key", schema.StorageKey(), "adapter", schema.StorageAdapter())
	if observe != nil {
		observe(class, schema.StorageKey(), schema.Version(), data.Clone())
	}

	accessor, err := m.registry.Accessor(class)
	if err != nil {
		return nil, err
	}
	for _, ed := range schema.Embedded() {
		slot, err := accessor.Slot(settings, ed.Property)
		if err != nil {
			return nil, err
		}
		if !slot.Materialized() {
			continue
		}
		embedSchema, err := m.schemas.Get(ed.Class)
		if err != nil {
			return nil, err
		}
		if _, err := m.persist(ctx, slot.Resolve(), embedSchema, seen, observe); err != nil {
			return nil, err
		}
	}
	return settings, nil
}

// ToNormalized converts every declared parameter of the settings object into
// the normalized representation. The envelope stays unstamped; Persist adds
// the version key.
func (m *Marshaller) ToNormalized(settings any, schema *norma.SchemaModel) (norma.NormalizedRepresentation, error) {
	class := schema.Class()
	accessor, err := m.registry.Accessor(class)
	if err != nil {
		return nil, err
	}

	data := make(norma.NormalizedRepresentation, len(schema.Parameters()))
	for _, p := range schema.Parameters() {
		raw, err := accessor.Get(settings, p.Property)
		if err != nil {
			return nil, err
		}
		converter, err := m.converters.Get(p.Type)
		if err != nil {
			return nil, err
		}
		value, err := converter.ToNormalized(raw, schema, p.Name)
		if err != nil {
			return nil, norma.NewConversionError(class, p.Name, err)
		}
		if err := norma.CheckNormalizedValue(value); err != nil {
			var se *norma.SettingsError
			if errors.As(err, &se) {
				return nil, se.WithClass(class).WithParameter(p.Name)
			}
			return nil, err
		}
		data[p.Name] = value
	}
	return data, nil
}

// ApplyNormalized applies a normalized representation onto the settings
// object. Missing keys are skipped so older stored data hydrates cleanly
// into a schema that has since gained parameters; reserved envelope keys are
// ignored.
func (m *Marshaller) ApplyNormalized(data norma.NormalizedRepresentation, settings any, schema *norma.SchemaModel) (any, error) {
	if err := m.checkClass(settings, schema); err != nil {
		return nil, err
	}
	if err := m.applyParameters(data, settings, schema); err != nil {
		return nil, err
	}
	return settings, nil
}

func (m *Marshaller) applyParameters(data norma.NormalizedRepresentation, settings any, schema *norma.SchemaModel) error {
	if len(data) == 0 {
		return nil
	}
	class := schema.Class()
	accessor, err := m.registry.Accessor(class)
	if err != nil {
		return err
	}
	for _, p := range schema.Parameters() {
		value, present := data[p.Name]
		if !present {
			continue
		}
		converter, err := m.converters.Get(p.Type)
		if err != nil {
			return err
		}
		converted, err := converter.FromNormalized(value, schema, p.Name)
		if err != nil {
			return norma.NewConversionError(class, p.Name, err)
		}
		if err := accessor.Set(settings, p.Property, converted); err != nil {
			return err
		}
	}
	return nil
}

// migrateIfNeeded runs the schema's migrator when the stored version differs
// from the declared one. Empty representations have nothing to migrate.
func (m *Marshaller) migrateIfNeeded(ctx context.Context, data norma.NormalizedRepresentation, schema *norma.SchemaModel) (norma.NormalizedRepresentation, error) {
	if !schema.HasVersion() || len(data) == 0 {
		return data, nil
	}
	stored := data.StoredVersion()
	if stored == schema.Version() {
		return data, nil
	}

	migrator, err := m.migrators.Get(schema.Migrator())
	if err != nil {
		return nil, err
	}
	migrated, err := migrator.Migrate(ctx, data.Clone(), stored, schema.Version())
	if err != nil {
		return nil, norma.NewMigrationError(schema.Class(), stored, schema.Version(), err)
	}
	zap.S().Debugw("migrated settings representation",
		"class", schema.Class(),
		"from", stored,
		"to", schema.Version())
	return migrated, nil
}

// checkClass verifies the object actually is an instance of the schema's
// class before it is persisted or written to.
func (m *Marshaller) checkClass(settings any, schema *norma.SchemaModel) error {
	actual, err := m.registry.Resolve(settings)
	if err != nil {
		return err
	}
	if actual != schema.Class() {
		return norma.NewSchemaMismatchError(schema.Class(), actual)
	}
	return nil
}
