package norma

// Converter turns a typed parameter value into its normalized storage form
// and back. Converters are pure functions over their inputs: no side effects,
// total for well-typed input. A nil value must pass through unchanged when
// the declared parameter is nullable.
type Converter interface {
	// ToNormalized converts a live property value into a storage primitive.
	ToNormalized(value any, schema *SchemaModel, parameter string) (any, error)
	// FromNormalized converts a storage primitive back into a property value.
	FromNormalized(value any, schema *SchemaModel, parameter string) (any, error)
}

// ConverterRegistry maps type identifiers to converters.
type ConverterRegistry interface {
	// Get resolves a converter, failing with an UnknownTypeError when the
	// identifier is unregistered.
	Get(typeIdentifier TypeIdentifier) (Converter, error)
	// Register binds a converter to a type identifier. Re-registering an
	// identifier fails with a DUPLICATE_TYPE error.
	Register(typeIdentifier TypeIdentifier, converter Converter) error
	// Types returns all registered type identifiers.
	Types() []TypeIdentifier
}
