package internal

import (
	"github.com/lychee-technology/norma"
)

// Resetter restores declared parameters to their registered defaults. An
// object implementing norma.Resettable owns its reset entirely; otherwise
// the defaults are copied from a throwaway prototype-initialized instance,
// touching only the parameters the schema declares.
type Resetter struct {
	registry *ClassRegistry
	schemas  *schemaCache
}

func NewResetter(registry *ClassRegistry, schemas *schemaCache) *Resetter {
	return &Resetter{registry: registry, schemas: schemas}
}

// Reset restores the object's own schema-declared parameters.
func (r *Resetter) Reset(settings any) error {
	class, err := r.registry.Resolve(settings)
	if err != nil {
		return err
	}
	schema, err := r.schemas.Get(class)
	if err != nil {
		return err
	}
	return r.ResetWithSchema(settings, schema)
}

// ResetWithSchema restores the parameters the given schema declares and
// leaves everything else untouched, narrowing the blast radius when the
// schema covers a subset of the object's properties. Embedded branches are
// separate settings classes and are not descended into.
func (r *Resetter) ResetWithSchema(settings any, schema *norma.SchemaModel) error {
	if hook, ok := settings.(norma.Resettable); ok {
		hook.ResetToDefaults()
		return nil
	}

	class, err := r.registry.Resolve(settings)
	if err != nil {
		return err
	}
	accessor, err := r.registry.Accessor(class)
	if err != nil {
		return err
	}
	throwaway, err := r.registry.NewInstance(class)
	if err != nil {
		return err
	}

	for _, p := range schema.Parameters() {
		if !accessor.HasProperty(p.Property) {
			return norma.NewUnknownNameError(class, p.Property)
		}
		value, err := accessor.Get(throwaway, p.Property)
		if err != nil {
			return err
		}
		if isNilValue(value) && !p.Nullable {
			return norma.NewNoDefaultValueError(class, p.Name)
		}
		if err := accessor.Set(settings, p.Property, deepCopyAny(value)); err != nil {
			return err
		}
	}
	return nil
}
