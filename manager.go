package norma

import (
	"context"
)

// SettingsManager provides comprehensive settings operations: class
// registration, schema lookup, hydrate/persist marshalling, clone/merge
// editing flows and reset-to-default.
type SettingsManager interface {
	// Class registration and schema lookup
	RegisterClass(prototype any, declaration ClassDeclaration) error
	Schema(classOrInstance any) (*SchemaModel, error)
	Classes() []string

	// Storage round trips
	Hydrate(ctx context.Context, settings any) (any, error)
	Persist(ctx context.Context, settings any) (any, error)

	// Pure conversion halves, usable independent of storage
	ToNormalized(settings any) (NormalizedRepresentation, error)
	ApplyNormalized(data NormalizedRepresentation, settings any) (any, error)

	// Editing flow: detached copy, fold back, restore defaults
	CreateClone(settings any) (any, error)
	MergeCopy(copy, into any) (any, error)
	MergeCopyShallow(copy, into any) (any, error)
	Reset(settings any) error
	// ResetWithSchema restores only the parameters the given schema
	// declares, e.g. to narrow a reset to one group's sub-schema.
	ResetWithSchema(settings any, schema *SchemaModel) error

	// NewInstance builds a default instance of a registered class.
	NewInstance(class string) (any, error)

	// ExportJSONSchema renders a class schema as a JSON Schema document.
	ExportJSONSchema(classOrInstance any) ([]byte, error)
	// ValidateNormalized checks a representation against the class schema.
	ValidateNormalized(classOrInstance any, data NormalizedRepresentation) error
}
