package internal

import (
	"go.uber.org/zap"

	"github.com/lychee-technology/norma"
)

// Cloner deep-copies settings object graphs. Embedded branches stay lazy: a
// clone's slot materializes the source branch and clones it only on first
// access, so untouched branches cost nothing. A per-call memo keyed by the
// embedded class identifier guarantees that two slots embedding the same
// class resolve to one shared clone instance, matching the identity
// structure of the source graph.
type Cloner struct {
	registry *ClassRegistry
	schemas  *schemaCache
}

func NewCloner(registry *ClassRegistry, schemas *schemaCache) *Cloner {
	return &Cloner{registry: registry, schemas: schemas}
}

// CreateClone returns a detached deep copy of the settings object. No
// application constructor runs; the clone starts from the registered
// prototype defaults and every declared parameter is copied over. The clone
// shares no mutable compound value with the source.
func (c *Cloner) CreateClone(settings any) (any, error) {
	class, err := c.registry.Resolve(settings)
	if err != nil {
		return nil, err
	}
	return c.clone(settings, class, make(map[string]any))
}

func (c *Cloner) clone(source any, class string, memo map[string]any) (any, error) {
	schema, err := c.schemas.Get(class)
	if err != nil {
		return nil, err
	}
	accessor, err := c.registry.Accessor(class)
	if err != nil {
		return nil, err
	}
	clone, err := c.registry.NewInstance(class)
	if err != nil {
		return nil, err
	}

	for _, p := range schema.Parameters() {
		raw, err := accessor.Get(source, p.Property)
		if err != nil {
			return nil, err
		}
		if err := accessor.Set(clone, p.Property, deepCopyAny(raw)); err != nil {
			return nil, err
		}
	}

	for _, ed := range schema.Embedded() {
		srcSlot, err := accessor.Slot(source, ed.Property)
		if err != nil {
			return nil, err
		}
		dstSlot, err := accessor.Slot(clone, ed.Property)
		if err != nil {
			return nil, err
		}
		if existing, ok := memo[ed.Class]; ok {
			if err := dstSlot.Assign(existing); err != nil {
				return nil, err
			}
			continue
		}
		dstSlot.DeferTo(ed.Class, c.deferredClone(ed.Class, srcSlot, memo))
	}

	if hook, ok := clone.(norma.CloneAware); ok {
		hook.AfterClone(source)
	}
	return clone, nil
}

// deferredClone builds the initializer of a lazy cloned branch. The memo is
// captured so it stays shared between all branches of one clone operation,
// however late they materialize: whichever same-class branch resolves first
// registers the clone, the others reuse it.
func (c *Cloner) deferredClone(class string, srcSlot norma.EmbeddedSlot, memo map[string]any) func() any {
	return func() any {
		if existing, ok := memo[class]; ok {
			return existing
		}
		source := srcSlot.Resolve()
		if isNilValue(source) {
			return nil
		}
		cloned, err := c.clone(source, class, memo)
		if err != nil {
			zap.S().Errorw("failed to clone embedded settings", "class", class, "error", err)
			return nil
		}
		memo[class] = cloned
		return cloned
	}
}
