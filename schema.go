package norma

import (
	"fmt"
	"strings"
)

// SchemaDefinition carries the raw inputs for assembling a SchemaModel.
// Usually produced by the schema builder, not by hand.
type SchemaDefinition struct {
	Class          string               `json:"class"`
	StorageAdapter string               `json:"storage_adapter"`
	StorageKey     string               `json:"storage_key"`
	Version        int                  `json:"version,omitempty"`
	Migrator       string               `json:"migrator,omitempty"`
	DefaultGroups  []string             `json:"default_groups,omitempty"`
	AdapterOptions map[string]any       `json:"adapter_options,omitempty"`
	Parameters     []ParameterDescriptor `json:"parameters"`
	Embedded       []EmbeddedDescriptor  `json:"embedded,omitempty"`
}

// SchemaModel is the immutable structural description of one settings class:
// its parameters, its embedded-settings references and its storage target.
// Built once per class by the schema builder and cached for the process
// lifetime; never mutated after construction.
type SchemaModel struct {
	class          string
	storageAdapter string
	storageKey     string
	version        int
	migrator       string
	defaultGroups  []string
	adapterOptions map[string]any

	parameters []ParameterDescriptor
	embedded   []EmbeddedDescriptor

	paramsByName       map[string]int
	paramsByProperty   map[string]int
	paramsByGroup      map[string][]int
	embeddedByProperty map[string]int
	embeddedByGroup    map[string][]int
}

// NewSchemaModel assembles and validates a SchemaModel from its definition.
// Duplicate names or properties fail with a SchemaConflictError; a version
// without a migrator fails with a MissingMigratorError; a non-positive
// version fails with an InvalidVersionError.
func NewSchemaModel(def SchemaDefinition) (*SchemaModel, error) {
	if def.Class == "" {
		return nil, NewSettingsError(ErrorTypeDeclaration, ErrCodeInvalidDeclaration,
			"schema definition carries no class identifier")
	}
	if def.Version < 0 {
		return nil, NewInvalidVersionError(def.Class, def.Version)
	}
	if def.Version > 0 && def.Migrator == "" {
		return nil, NewMissingMigratorError(def.Class)
	}
	if def.StorageAdapter == "" {
		return nil, NewSettingsError(ErrorTypeDeclaration, ErrCodeInvalidDeclaration,
			"schema definition carries no storage adapter identifier").WithClass(def.Class)
	}

	storageKey := def.StorageKey
	if storageKey == "" {
		storageKey = def.Class
	}

	m := &SchemaModel{
		class:              def.Class,
		storageAdapter:     def.StorageAdapter,
		storageKey:         storageKey,
		version:            def.Version,
		migrator:           def.Migrator,
		defaultGroups:      append([]string(nil), def.DefaultGroups...),
		adapterOptions:     copyOptions(def.AdapterOptions),
		parameters:         append([]ParameterDescriptor(nil), def.Parameters...),
		embedded:           append([]EmbeddedDescriptor(nil), def.Embedded...),
		paramsByName:       make(map[string]int, len(def.Parameters)),
		paramsByProperty:   make(map[string]int, len(def.Parameters)),
		paramsByGroup:      make(map[string][]int),
		embeddedByProperty: make(map[string]int, len(def.Embedded)),
		embeddedByGroup:    make(map[string][]int),
	}

	for i, p := range m.parameters {
		if p.Name == "" || p.Property == "" {
			return nil, NewSchemaConflictError(def.Class,
				fmt.Sprintf("parameter at index %d has an empty name or property", i))
		}
		if strings.HasPrefix(p.Name, reservedKeyPrefix) {
			return nil, NewReservedNameError(def.Class, p.Name)
		}
		if p.Type == "" {
			return nil, NewMissingTypeError(def.Class, p.Property)
		}
		if _, dup := m.paramsByName[p.Name]; dup {
			return nil, NewSchemaConflictError(def.Class,
				fmt.Sprintf("duplicate parameter name '%s'", p.Name)).WithParameter(p.Name)
		}
		if _, dup := m.paramsByProperty[p.Property]; dup {
			return nil, NewSchemaConflictError(def.Class,
				fmt.Sprintf("duplicate parameter property '%s'", p.Property)).WithParameter(p.Property)
		}
		m.paramsByName[p.Name] = i
		m.paramsByProperty[p.Property] = i
		for _, g := range p.Groups {
			m.paramsByGroup[g] = append(m.paramsByGroup[g], i)
		}
	}

	for i, e := range m.embedded {
		if e.Property == "" || e.Class == "" {
			return nil, NewSchemaConflictError(def.Class,
				fmt.Sprintf("embedded declaration at index %d has an empty property or class", i))
		}
		if _, dup := m.embeddedByProperty[e.Property]; dup {
			return nil, NewSchemaConflictError(def.Class,
				fmt.Sprintf("duplicate embedded property '%s'", e.Property)).WithParameter(e.Property)
		}
		if _, clash := m.paramsByProperty[e.Property]; clash {
			return nil, NewSchemaConflictError(def.Class,
				fmt.Sprintf("property '%s' declared both as parameter and embedded", e.Property)).WithParameter(e.Property)
		}
		m.embeddedByProperty[e.Property] = i
		for _, g := range e.Groups {
			m.embeddedByGroup[g] = append(m.embeddedByGroup[g], i)
		}
	}

	return m, nil
}

// Class returns the settings class identifier.
func (m *SchemaModel) Class() string { return m.class }

// StorageAdapter returns the storage adapter identifier of the class.
func (m *SchemaModel) StorageAdapter() string { return m.storageAdapter }

// StorageKey returns the key the normalized representation is stored under.
func (m *SchemaModel) StorageKey() string { return m.storageKey }

// Version returns the declared schema version, 0 when unversioned.
func (m *SchemaModel) Version() int { return m.version }

// HasVersion reports whether the class declares a version.
func (m *SchemaModel) HasVersion() bool { return m.version > 0 }

// Migrator returns the migration-service identifier, empty when unversioned.
func (m *SchemaModel) Migrator() string { return m.migrator }

// DefaultGroups returns the class-level default group list.
func (m *SchemaModel) DefaultGroups() []string {
	return append([]string(nil), m.defaultGroups...)
}

// AdapterOptions returns the storage-adapter-specific options map.
func (m *SchemaModel) AdapterOptions() map[string]any {
	return copyOptions(m.adapterOptions)
}

// Parameters returns the ordered parameter descriptors.
func (m *SchemaModel) Parameters() []ParameterDescriptor {
	return append([]ParameterDescriptor(nil), m.parameters...)
}

// ParameterNames returns the external names of all parameters in declaration order.
func (m *SchemaModel) ParameterNames() []string {
	names := make([]string, len(m.parameters))
	for i, p := range m.parameters {
		names[i] = p.Name
	}
	return names
}

// ParameterByName looks up a parameter by its external name.
func (m *SchemaModel) ParameterByName(name string) (ParameterDescriptor, error) {
	i, ok := m.paramsByName[name]
	if !ok {
		return ParameterDescriptor{}, NewUnknownNameError(m.class, name)
	}
	return m.parameters[i], nil
}

// ParameterByProperty looks up a parameter by its backing property identifier.
func (m *SchemaModel) ParameterByProperty(property string) (ParameterDescriptor, error) {
	i, ok := m.paramsByProperty[property]
	if !ok {
		return ParameterDescriptor{}, NewUnknownNameError(m.class, property)
	}
	return m.parameters[i], nil
}

// HasParameter reports whether a parameter with the given external name exists.
func (m *SchemaModel) HasParameter(name string) bool {
	_, ok := m.paramsByName[name]
	return ok
}

// ParametersInGroup returns the parameters belonging to the given group,
// in declaration order. Unknown groups yield an empty slice.
func (m *SchemaModel) ParametersInGroup(group string) []ParameterDescriptor {
	idx := m.paramsByGroup[group]
	out := make([]ParameterDescriptor, len(idx))
	for i, j := range idx {
		out[i] = m.parameters[j]
	}
	return out
}

// Embedded returns the ordered embedded-settings descriptors.
func (m *SchemaModel) Embedded() []EmbeddedDescriptor {
	return append([]EmbeddedDescriptor(nil), m.embedded...)
}

// HasEmbedded reports whether the class declares any embedded settings.
func (m *SchemaModel) HasEmbedded() bool { return len(m.embedded) > 0 }

// EmbeddedByProperty looks up an embedded declaration by property identifier.
func (m *SchemaModel) EmbeddedByProperty(property string) (EmbeddedDescriptor, error) {
	i, ok := m.embeddedByProperty[property]
	if !ok {
		return EmbeddedDescriptor{}, NewUnknownNameError(m.class, property)
	}
	return m.embedded[i], nil
}

// EmbeddedInGroup returns the embedded declarations belonging to the given
// group, in declaration order.
func (m *SchemaModel) EmbeddedInGroup(group string) []EmbeddedDescriptor {
	idx := m.embeddedByGroup[group]
	out := make([]EmbeddedDescriptor, len(idx))
	for i, j := range idx {
		out[i] = m.embedded[j]
	}
	return out
}

// Groups returns all group names referenced by parameters or embeds.
func (m *SchemaModel) Groups() []string {
	seen := make(map[string]bool)
	var groups []string
	for _, p := range m.parameters {
		for _, g := range p.Groups {
			if !seen[g] {
				seen[g] = true
				groups = append(groups, g)
			}
		}
	}
	for _, e := range m.embedded {
		for _, g := range e.Groups {
			if !seen[g] {
				seen[g] = true
				groups = append(groups, g)
			}
		}
	}
	return groups
}

// Definition reconstructs the raw definition of the schema, e.g. for export.
func (m *SchemaModel) Definition() SchemaDefinition {
	return SchemaDefinition{
		Class:          m.class,
		StorageAdapter: m.storageAdapter,
		StorageKey:     m.storageKey,
		Version:        m.version,
		Migrator:       m.migrator,
		DefaultGroups:  m.DefaultGroups(),
		AdapterOptions: m.AdapterOptions(),
		Parameters:     m.Parameters(),
		Embedded:       m.Embedded(),
	}
}

func copyOptions(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
