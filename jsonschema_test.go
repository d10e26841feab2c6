package norma

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonSchemaTestModel(t *testing.T) *SchemaModel {
	t.Helper()
	m, err := NewSchemaModel(SchemaDefinition{
		Class:          "server_settings",
		StorageAdapter: AdapterMemory,
		Parameters: []ParameterDescriptor{
			{Property: "Host", Name: "host", Type: TypeString, Label: "Host name", Description: "Bind address"},
			{Property: "Port", Name: "port", Type: TypeInt},
			{Property: "Ratio", Name: "ratio", Type: TypeFloat, Nullable: true},
			{Property: "Debug", Name: "debug", Type: TypeBool},
			{Property: "Started", Name: "started", Type: TypeDatetime},
			{Property: "Tags", Name: "tags", Type: TypeStringSlice},
			{Property: "Limits", Name: "limits", Type: TypeStringMap},
			{Property: "Extra", Name: "extra", Type: TypeJSON},
		},
	})
	require.NoError(t, err)
	return m
}

func TestBuildJSONSchemaShapes(t *testing.T) {
	doc := BuildJSONSchema(jsonSchemaTestModel(t))

	assert.Equal(t, "server_settings", doc["title"])
	assert.Equal(t, "object", doc["type"])

	props := doc["properties"].(map[string]any)
	assert.Equal(t, "string", props["host"].(map[string]any)["type"])
	assert.Equal(t, "Host name", props["host"].(map[string]any)["title"])
	assert.Equal(t, "Bind address", props["host"].(map[string]any)["description"])
	assert.Equal(t, "integer", props["port"].(map[string]any)["type"])
	assert.Equal(t, "boolean", props["debug"].(map[string]any)["type"])
	assert.Equal(t, "date-time", props["started"].(map[string]any)["format"])
	assert.Equal(t, "array", props["tags"].(map[string]any)["type"])
	assert.Equal(t, "object", props["limits"].(map[string]any)["type"])

	assert.Equal(t, []any{"number", "null"}, props["ratio"].(map[string]any)["type"],
		"nullable parameters accept null")
	assert.NotContains(t, props["extra"].(map[string]any), "type",
		"json parameters accept any shape")
}

func TestBuildJSONSchemaVersionEnvelope(t *testing.T) {
	m, err := NewSchemaModel(SchemaDefinition{
		Class:          "versioned_settings",
		StorageAdapter: AdapterMemory,
		Version:        2,
		Migrator:       "versioned-migrator",
		Parameters: []ParameterDescriptor{
			{Property: "Mode", Name: "mode", Type: TypeString},
		},
	})
	require.NoError(t, err)

	props := BuildJSONSchema(m)["properties"].(map[string]any)
	assert.Contains(t, props, VersionKey)
}

func TestMarshalJSONSchemaIsValidJSON(t *testing.T) {
	raw, err := MarshalJSONSchema(jsonSchemaTestModel(t))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "https://json-schema.org/draft/2020-12/schema", doc["$schema"])
}

func TestValidateNormalizedAccepts(t *testing.T) {
	m := jsonSchemaTestModel(t)

	require.NoError(t, ValidateNormalized(m, NormalizedRepresentation{
		"host":  "localhost",
		"port":  int64(8080),
		"ratio": nil,
		"debug": true,
		"tags":  []any{"a", "b"},
	}))

	// Partial representations are legal hydrate input.
	require.NoError(t, ValidateNormalized(m, NormalizedRepresentation{"host": "localhost"}))
	require.NoError(t, ValidateNormalized(m, NormalizedRepresentation{}))
}

func TestValidateNormalizedRejectsWrongShapes(t *testing.T) {
	m := jsonSchemaTestModel(t)

	for name, data := range map[string]NormalizedRepresentation{
		"string for int":    {"port": "8080"},
		"int for string":    {"host": int64(1)},
		"null for non-null": {"host": nil},
		"scalar for array":  {"tags": "a"},
	} {
		err := ValidateNormalized(m, data)
		require.Error(t, err, name)
		var settingsErr *SettingsError
		require.ErrorAs(t, err, &settingsErr, name)
		assert.Equal(t, ErrCodeValidationFailed, settingsErr.Code, name)
	}
}
