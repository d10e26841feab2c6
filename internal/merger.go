package internal

import (
	"github.com/lychee-technology/norma"
)

// Merger folds an edited copy of a settings object back into a live target
// of the same class. Recursion into embedded settings skips branches the
// copy never materialized (they cannot carry edits) and keeps a per-call
// memo of merged class identifiers, marked before descending, so repeated
// embeds of one class are merged exactly once.
type Merger struct {
	registry *ClassRegistry
	schemas  *schemaCache
}

func NewMerger(registry *ClassRegistry, schemas *schemaCache) *Merger {
	return &Merger{registry: registry, schemas: schemas}
}

// MergeCopy merges every declared parameter of copy onto into and, when
// recursive, descends into materialized embedded branches. Returns into.
func (g *Merger) MergeCopy(copy, into any, recursive bool) (any, error) {
	class, err := g.registry.Resolve(copy)
	if err != nil {
		return nil, err
	}
	intoClass, err := g.registry.Resolve(into)
	if err != nil {
		return nil, err
	}
	if class != intoClass {
		return nil, norma.NewSchemaMismatchError(class, intoClass)
	}
	return g.merge(copy, into, class, recursive, make(map[string]bool))
}

func (g *Merger) merge(copy, into any, class string, recursive bool, merged map[string]bool) (any, error) {
	merged[class] = true

	schema, err := g.schemas.Get(class)
	if err != nil {
		return nil, err
	}
	accessor, err := g.registry.Accessor(class)
	if err != nil {
		return nil, err
	}

	for _, p := range schema.Parameters() {
		raw, err := accessor.Get(copy, p.Property)
		if err != nil {
			return nil, err
		}
		if err := accessor.Set(into, p.Property, deepCopyAny(raw)); err != nil {
			return nil, err
		}
	}

	if recursive {
		for _, ed := range schema.Embedded() {
			if merged[ed.Class] {
				continue
			}
			copySlot, err := accessor.Slot(copy, ed.Property)
			if err != nil {
				return nil, err
			}
			// An unmaterialized branch on the copy was never touched, so
			// there is nothing to fold back. Checked without materializing.
			if !copySlot.Materialized() {
				continue
			}
			copyValue := copySlot.Resolve()
			if isNilValue(copyValue) {
				continue
			}

			intoSlot, err := accessor.Slot(into, ed.Property)
			if err != nil {
				return nil, err
			}
			intoValue := intoSlot.Resolve()
			if isNilValue(intoValue) {
				fresh, err := g.registry.NewInstance(ed.Class)
				if err != nil {
					return nil, err
				}
				if err := intoSlot.Assign(fresh); err != nil {
					return nil, err
				}
				intoValue = fresh
			}
			if _, err := g.merge(copyValue, intoValue, ed.Class, recursive, merged); err != nil {
				return nil, err
			}
		}
	}

	if hook, ok := into.(norma.MergeAware); ok {
		hook.AfterMerge(copy)
	}
	return into, nil
}
