package norma

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// BuildJSONSchema renders the normalized representation of a settings class
// as a JSON Schema document (draft 2020-12 compatible map form). Nullable
// parameters accept "null" alongside their base type; the reserved version
// envelope is declared when the class is versioned.
func BuildJSONSchema(schema *SchemaModel) map[string]any {
	properties := make(map[string]any)
	for _, p := range schema.Parameters() {
		properties[p.Name] = parameterJSONSchema(p)
	}
	if schema.HasVersion() {
		properties[VersionKey] = map[string]any{"type": "integer"}
	}

	doc := map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"title":      schema.Class(),
		"type":       "object",
		"properties": properties,
	}
	return doc
}

// MarshalJSONSchema renders the class schema as indented JSON bytes.
func MarshalJSONSchema(schema *SchemaModel) ([]byte, error) {
	data, err := json.MarshalIndent(BuildJSONSchema(schema), "", "  ")
	if err != nil {
		return nil, NewSettingsError(ErrorTypeInternal, ErrCodeSchemaExportFailed,
			"failed to marshal JSON schema").WithClass(schema.Class()).WithCause(err)
	}
	return data, nil
}

// ValidateNormalized checks a normalized representation against the class
// schema's JSON Schema rendering. Keys absent from the representation are
// not reported (partial representations are legal input to hydrate); present
// keys must carry values of the declared shape.
func ValidateNormalized(schema *SchemaModel, data NormalizedRepresentation) error {
	doc := BuildJSONSchema(schema)

	schemaBytes, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal schema for validation: %w", err)
	}
	var js jsonschema.Schema
	if err := json.Unmarshal(schemaBytes, &js); err != nil {
		return fmt.Errorf("failed to unmarshal into jsonschema.Schema: %w", err)
	}

	resolved, err := js.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return fmt.Errorf("failed to resolve JSON schema: %w", err)
	}

	// Round-trip through JSON so adapter-specific integer widths collapse
	// to the shapes the validator expects.
	dataBytes, err := json.Marshal(map[string]any(data))
	if err != nil {
		return fmt.Errorf("failed to marshal data for validation: %w", err)
	}
	var dataToValidate any
	if err := json.Unmarshal(dataBytes, &dataToValidate); err != nil {
		return fmt.Errorf("failed to unmarshal data for validation: %w", err)
	}

	if err := resolved.Validate(dataToValidate); err != nil {
		return NewSettingsError(ErrorTypeMarshalling, ErrCodeValidationFailed,
			"normalized representation does not match schema").
			WithClass(schema.Class()).WithCause(err)
	}
	return nil
}

func parameterJSONSchema(p ParameterDescriptor) map[string]any {
	prop := make(map[string]any)

	var base any
	switch p.Type {
	case TypeString, TypeDuration:
		base = "string"
	case TypeInt:
		base = "integer"
	case TypeFloat:
		base = "number"
	case TypeBool:
		base = "boolean"
	case TypeDatetime:
		base = "string"
		prop["format"] = "date-time"
	case TypeStringSlice:
		base = "array"
		prop["items"] = map[string]any{"type": "string"}
	case TypeIntSlice:
		base = "array"
		prop["items"] = map[string]any{"type": "integer"}
	case TypeStringMap:
		base = "object"
		prop["additionalProperties"] = map[string]any{"type": "string"}
	case TypeJSON:
		// Accepts any JSON shape.
		base = nil
	default:
		base = nil
	}

	if base != nil {
		if p.Nullable {
			prop["type"] = []any{base, "null"}
		} else {
			prop["type"] = base
		}
	}
	if p.Label != "" {
		prop["title"] = p.Label
	}
	if p.Description != "" {
		prop["description"] = p.Description
	}
	return prop
}
