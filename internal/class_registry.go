package internal

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/lychee-technology/norma"
	"go.uber.org/zap"
)

// classEntry binds one registered settings class: its declaration, the
// backing struct type, the prototype carrying default values and the
// accessor derived from the struct layout.
type classEntry struct {
	declaration norma.ClassDeclaration
	goType      reflect.Type  // struct type, not the pointer
	prototype   reflect.Value // pointer to the registered default instance
	accessor    *fieldAccessor
}

// ClassRegistry holds all registered settings classes, indexed by class
// name and by backing struct type. Registration happens once at startup;
// lookups are concurrent-safe.
type ClassRegistry struct {
	mu     sync.RWMutex
	byName map[string]*classEntry
	byType map[reflect.Type]string
}

func NewClassRegistry() *ClassRegistry {
	return &ClassRegistry{
		byName: make(map[string]*classEntry),
		byType: make(map[reflect.Type]string),
	}
}

// Register declares a settings class. The prototype must be a non-nil
// pointer to a struct; its field values become the class defaults. The class
// name falls back to the prototype's ClassNamer, then to a snake_case
// derivation of the struct name.
func (r *ClassRegistry) Register(prototype any, declaration norma.ClassDeclaration) error {
	if prototype == nil {
		return norma.NewSettingsError(norma.ErrorTypeDeclaration, norma.ErrCodeInvalidDeclaration,
			"prototype must not be nil")
	}
	pv := reflect.ValueOf(prototype)
	if pv.Kind() != reflect.Pointer || pv.IsNil() || pv.Elem().Kind() != reflect.Struct {
		return norma.NewSettingsError(norma.ErrorTypeDeclaration, norma.ErrCodeInvalidDeclaration,
			fmt.Sprintf("prototype must be a non-nil pointer to a struct, got %T", prototype))
	}
	goType := pv.Elem().Type()

	name := declaration.Name
	if name == "" {
		if namer, ok := prototype.(norma.ClassNamer); ok {
			name = namer.SettingsClassName()
		}
	}
	if name == "" {
		name = snakeCase(goType.Name())
	}
	if name == "" {
		return norma.NewSettingsError(norma.ErrorTypeDeclaration, norma.ErrCodeInvalidDeclaration,
			"class name cannot be derived from an anonymous struct")
	}
	declaration.Name = name

	accessor, err := newFieldAccessor(name, goType)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return norma.NewSettingsError(norma.ErrorTypeDeclaration, norma.ErrCodeDuplicateClass,
			"class name already registered").WithClass(name)
	}
	if existing, exists := r.byType[goType]; exists {
		return norma.NewSettingsError(norma.ErrorTypeDeclaration, norma.ErrCodeDuplicateClass,
			fmt.Sprintf("struct type %s already registered as class '%s'", goType, existing)).WithClass(name)
	}

	r.byName[name] = &classEntry{
		declaration: declaration,
		goType:      goType,
		prototype:   pv,
		accessor:    accessor,
	}
	r.byType[goType] = name

	zap.S().Debugw("registered settings class",
		"class", name,
		"type", goType.String())
	return nil
}

// Resolve maps a class name, a ClassNamer, an embedded slot or a registered
// instance to its class identifier. A deferred slot resolves to the class
// stamped on it without materializing; a directly assigned slot resolves
// through its element type. Unregistered input fails with a
// NotASettingsClassError.
func (r *ClassRegistry) Resolve(classOrInstance any) (string, error) {
	switch v := classOrInstance.(type) {
	case nil:
		return "", norma.NewSettingsError(norma.ErrorTypeDeclaration, norma.ErrCodeInvalidDeclaration,
			"cannot resolve the settings class of nil")
	case string:
		r.mu.RLock()
		_, ok := r.byName[v]
		r.mu.RUnlock()
		if !ok {
			return "", norma.NewNotASettingsClassError(v)
		}
		return v, nil
	case norma.ClassNamer:
		name := v.SettingsClassName()
		r.mu.RLock()
		_, ok := r.byName[name]
		r.mu.RUnlock()
		if !ok {
			return "", norma.NewNotASettingsClassError(name)
		}
		return name, nil
	case norma.EmbeddedSlot:
		if class := v.EmbeddedClass(); class != "" {
			r.mu.RLock()
			_, ok := r.byName[class]
			r.mu.RUnlock()
			if !ok {
				return "", norma.NewNotASettingsClassError(class)
			}
			return class, nil
		}
		st := reflect.TypeOf(classOrInstance)
		for st.Kind() == reflect.Pointer {
			st = st.Elem()
		}
		if elem, ok := slotElemType(st); ok {
			if name, ok := r.ResolveType(elem); ok {
				return name, nil
			}
			return "", norma.NewNotASettingsClassError(elem.String())
		}
		return "", norma.NewNotASettingsClassError(st.String())
	}

	t := reflect.TypeOf(classOrInstance)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	name, ok := r.byType[t]
	r.mu.RUnlock()
	if !ok {
		return "", norma.NewNotASettingsClassError(t.String())
	}
	return name, nil
}

// ResolveType maps a struct type to its class identifier, if registered.
func (r *ClassRegistry) ResolveType(t reflect.Type) (string, bool) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	name, ok := r.byType[t]
	r.mu.RUnlock()
	return name, ok
}

// Entry returns the registration record of a class.
func (r *ClassRegistry) Entry(class string) (*classEntry, error) {
	r.mu.RLock()
	entry, ok := r.byName[class]
	r.mu.RUnlock()
	if !ok {
		return nil, norma.NewNotASettingsClassError(class)
	}
	return entry, nil
}

// Accessor returns the field accessor of a class.
func (r *ClassRegistry) Accessor(class string) (*fieldAccessor, error) {
	entry, err := r.Entry(class)
	if err != nil {
		return nil, err
	}
	return entry.accessor, nil
}

// Names returns all registered class identifiers.
func (r *ClassRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}

// NewInstance builds a fresh default instance of a class: a zero struct with
// the prototype's exported field values deep-copied on top. Embedded slots
// stay empty; application-defined constructors are never invoked.
func (r *ClassRegistry) NewInstance(class string) (any, error) {
	entry, err := r.Entry(class)
	if err != nil {
		return nil, err
	}

	instance := reflect.New(entry.goType)
	dst := instance.Elem()
	src := entry.prototype.Elem()
	for i := 0; i < entry.goType.NumField(); i++ {
		f := dst.Field(i)
		if !f.CanSet() {
			continue
		}
		if isSlotType(entry.goType.Field(i).Type) {
			continue
		}
		f.Set(deepCopyValue(src.Field(i)))
	}
	return instance.Interface(), nil
}

var embeddedSlotType = reflect.TypeOf((*norma.EmbeddedSlot)(nil)).Elem()

// isSlotType reports whether a struct field type is an embedded slot.
func isSlotType(t reflect.Type) bool {
	return reflect.PointerTo(t).Implements(embeddedSlotType)
}

// slotElemType extracts the embedded struct type a slot field wraps, by
// inspecting the slot's internal pointer field.
func slotElemType(t reflect.Type) (reflect.Type, bool) {
	for i := 0; i < t.NumField(); i++ {
		ft := t.Field(i).Type
		if ft.Kind() == reflect.Pointer && ft.Elem().Kind() == reflect.Struct {
			return ft.Elem(), true
		}
	}
	return nil, false
}
