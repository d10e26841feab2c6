package norma

// TypeIdentifier names a registered value converter.
type TypeIdentifier = string

// Built-in type identifiers. The converter registry is open: applications
// may register additional identifiers alongside these.
const (
	TypeString      TypeIdentifier = "string"
	TypeInt         TypeIdentifier = "int"
	TypeFloat       TypeIdentifier = "float"
	TypeBool        TypeIdentifier = "bool"
	TypeDatetime    TypeIdentifier = "datetime"
	TypeDuration    TypeIdentifier = "duration"
	TypeStringSlice TypeIdentifier = "string_slice"
	TypeIntSlice    TypeIdentifier = "int_slice"
	TypeStringMap   TypeIdentifier = "string_map"
	TypeJSON        TypeIdentifier = "json"
)

// ParameterDescriptor describes one declared setting of a settings class.
// Descriptors are assembled by the schema builder and are immutable once the
// owning SchemaModel has been constructed.
type ParameterDescriptor struct {
	// Property is the Go struct field (or accessor key) backing the parameter.
	Property string `json:"property"`
	// Name is the external name used in the normalized representation.
	// Defaults to the property identifier; unique within a schema.
	Name string `json:"name"`
	// Type identifies the registered converter for this parameter.
	Type TypeIdentifier `json:"type"`
	// Nullable reports whether the parameter accepts null/absent values.
	Nullable bool `json:"nullable"`
	// Groups lists the ordered group memberships of the parameter.
	Groups []string `json:"groups,omitempty"`
	// Label and Description carry display metadata. Opaque to the core.
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
	// Options is a free-form map handed through to the type converter.
	Options map[string]any `json:"options,omitempty"`
}

// InGroup reports whether the parameter belongs to the given group.
func (p ParameterDescriptor) InGroup(group string) bool {
	for _, g := range p.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// EmbeddedDescriptor describes one declared embedded-settings relationship.
type EmbeddedDescriptor struct {
	// Property is the struct field holding the embedded slot.
	Property string `json:"property"`
	// Class is the embedded settings class identifier.
	Class string `json:"class"`
	// Groups lists the ordered group memberships of the embed.
	Groups []string `json:"groups,omitempty"`
}

// InGroup reports whether the embed belongs to the given group.
func (e EmbeddedDescriptor) InGroup(group string) bool {
	for _, g := range e.Groups {
		if g == group {
			return true
		}
	}
	return false
}
