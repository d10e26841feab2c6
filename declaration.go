package norma

import (
	"reflect"
)

// ClassDeclaration is the class-level settings declaration an application
// registers for each settings struct. Everything except the storage adapter
// is optional: the name defaults to a snake_case derivation of the struct
// name, the storage key to the class name, and parameters/embeds to whatever
// the struct's `setting:"..."` and `embedded:"..."` tags declare.
//
// Explicit Parameters/Embedded entries override the tag of the same property;
// entries for properties without a tag add them to the schema.
type ClassDeclaration struct {
	// Name is the class identifier. Unique across the registry.
	Name string
	// StorageAdapter selects the storage backend; empty falls back to the
	// configured default adapter.
	StorageAdapter string
	// StorageKey overrides the key the representation is stored under.
	StorageKey string
	// DefaultGroups apply to every parameter that declares no groups itself.
	DefaultGroups []string
	// Version declares the schema version (> 0). Requires Migrator.
	Version int
	// Migrator names the migration service for versioned classes.
	Migrator string
	// AdapterOptions is handed through to the storage adapter unchanged.
	AdapterOptions map[string]any
	// Parameters explicitly declares or overrides parameters.
	Parameters []ParameterDeclaration
	// Embedded explicitly declares or overrides embedded settings.
	Embedded []EmbeddedDeclaration
}

// ParameterDeclaration is the property-level declaration of one setting.
// Zero values mean "not declared": the schema builder falls back to the
// type guesser for Type and Nullable.
type ParameterDeclaration struct {
	Property    string
	Name        string
	Type        TypeIdentifier
	Nullable    *bool
	Label       string
	Description string
	Options     map[string]any
	Groups      []string
}

// EmbeddedDeclaration declares an embedded-settings property.
type EmbeddedDeclaration struct {
	Property string
	// Class identifies the embedded settings class; empty is resolved from
	// the slot field's type parameter.
	Class  string
	Groups []string
}

// PropertyProbe describes one candidate property while the schema builder
// derives its descriptor. The type guesser inspects it to fill in what the
// declaration left out.
type PropertyProbe struct {
	Class    string
	Property string
	// GoType is the static field type, nil when the class is not
	// struct-backed.
	GoType reflect.Type
	// Tag is the raw struct tag of the field, empty when not struct-backed.
	Tag reflect.StructTag
}

// TypeGuesser infers parameter metadata from a property's static type when
// the declaration leaves it out. Implementations return ok=false to abstain.
type TypeGuesser interface {
	GuessType(probe PropertyProbe) (TypeIdentifier, bool)
	GuessNullable(probe PropertyProbe) (bool, bool)
	GuessOptions(probe PropertyProbe) (map[string]any, bool)
}

// ClassNamer lets an instance report its settings class directly instead of
// being resolved through the registry's type index.
type ClassNamer interface {
	SettingsClassName() string
}

// Resettable is the reset hook. When a settings struct implements it, reset
// delegates entirely: the hook owns all defaults, including properties the
// schema never declared.
type Resettable interface {
	ResetToDefaults()
}

// CloneAware is invoked on a fresh clone after all parameters and embeds are
// set, so the object can fix up derived or transient state.
type CloneAware interface {
	AfterClone(original any)
}

// MergeAware is invoked on the merge target after all assignment and
// recursion completed. The argument is the merged-in copy.
type MergeAware interface {
	AfterMerge(source any)
}
