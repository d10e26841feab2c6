package internal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/norma"
)

type noopMigrator struct{}

func (noopMigrator) Migrate(ctx context.Context, data norma.NormalizedRepresentation, fromVersion, toVersion int) (norma.NormalizedRepresentation, error) {
	return data, nil
}

func TestAdapterRegistry(t *testing.T) {
	registry := NewAdapterRegistry()

	require.NoError(t, registry.Register(norma.AdapterMemory, NewMemoryStorage()))
	require.NoError(t, registry.Register("audit", NewMemoryStorage()))

	adapter, err := registry.Get(norma.AdapterMemory)
	require.NoError(t, err)
	assert.NotNil(t, adapter)

	assert.Equal(t, []string{"audit", norma.AdapterMemory}, registry.Identifiers())
}

func TestAdapterRegistryUnknown(t *testing.T) {
	registry := NewAdapterRegistry()

	_, err := registry.Get("etcd")
	require.Error(t, err)
	var settingsErr *norma.SettingsError
	require.ErrorAs(t, err, &settingsErr)
	assert.Equal(t, norma.ErrCodeUnknownAdapter, settingsErr.Code)
}

func TestAdapterRegistryRejectsDuplicates(t *testing.T) {
	registry := NewAdapterRegistry()
	require.NoError(t, registry.Register(norma.AdapterMemory, NewMemoryStorage()))

	err := registry.Register(norma.AdapterMemory, NewMemoryStorage())
	require.Error(t, err)
	var settingsErr *norma.SettingsError
	require.ErrorAs(t, err, &settingsErr)
	assert.Equal(t, norma.ErrCodeDuplicateAdapter, settingsErr.Code)

	assert.Error(t, registry.Register("", NewMemoryStorage()))
	assert.Error(t, registry.Register("null", nil))
}

func TestMigratorRegistry(t *testing.T) {
	registry := NewMigratorRegistry()

	require.NoError(t, registry.Register("report_migrations", noopMigrator{}))

	migrator, err := registry.Get("report_migrations")
	require.NoError(t, err)
	assert.NotNil(t, migrator)

	_, err = registry.Get("ghost")
	require.Error(t, err)
	var settingsErr *norma.SettingsError
	require.ErrorAs(t, err, &settingsErr)
	assert.Equal(t, norma.ErrCodeUnknownMigrator, settingsErr.Code)

	err = registry.Register("report_migrations", noopMigrator{})
	require.Error(t, err)
	require.ErrorAs(t, err, &settingsErr)
	assert.Equal(t, norma.ErrCodeDuplicateMigrator, settingsErr.Code)
}
