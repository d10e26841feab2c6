package internal

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/norma"
)

type recordingObserver struct {
	classes []string
	keys    []string
	data    []norma.NormalizedRepresentation
}

func (o *recordingObserver) ObservePersist(_ context.Context, class, key string, _ int, data norma.NormalizedRepresentation) {
	o.classes = append(o.classes, class)
	o.keys = append(o.keys, key)
	o.data = append(o.data, data)
}

func newTestManager(t *testing.T, observer PersistObserver) norma.SettingsManager {
	t.Helper()
	adapters := NewAdapterRegistry()
	require.NoError(t, adapters.Register(norma.AdapterMemory, NewMemoryStorage()))
	manager, err := NewSettingsManager(norma.DefaultConfig(), NewConverterRegistry(), adapters, NewMigratorRegistry(), nil, observer)
	require.NoError(t, err)
	return manager
}

func TestManagerRejectsInvalidConfig(t *testing.T) {
	config := norma.DefaultConfig()
	config.Storage.DefaultAdapter = ""

	_, err := NewSettingsManager(config, NewConverterRegistry(), NewAdapterRegistry(), NewMigratorRegistry(), nil, nil)
	require.Error(t, err)
	var cfgErr *norma.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t, nil)

	require.NoError(t, manager.RegisterClass(defaultNotifier(), norma.ClassDeclaration{}))
	require.NoError(t, manager.RegisterClass(defaultProfile(), norma.ClassDeclaration{}))

	live := defaultProfile()
	live.Theme = "dark"
	_, err := manager.Persist(ctx, live)
	require.NoError(t, err)

	reloaded := &profileSettings{}
	_, err = manager.Hydrate(ctx, reloaded)
	require.NoError(t, err)
	assert.Equal(t, "dark", reloaded.Theme)

	cloned, err := manager.CreateClone(reloaded)
	require.NoError(t, err)
	edit := cloned.(*profileSettings)
	edit.PageSize = 77

	_, err = manager.MergeCopy(edit, reloaded)
	require.NoError(t, err)
	assert.Equal(t, 77, reloaded.PageSize)

	require.NoError(t, manager.Reset(reloaded))
	assert.Equal(t, "light", reloaded.Theme)
	assert.Equal(t, 25, reloaded.PageSize)
}

func TestManagerClassesSorted(t *testing.T) {
	manager := newTestManager(t, nil)

	require.NoError(t, manager.RegisterClass(defaultProfile(), norma.ClassDeclaration{Name: "zeta"}))
	require.NoError(t, manager.RegisterClass(defaultNotifier(), norma.ClassDeclaration{Name: "alpha"}))

	assert.Equal(t, []string{"alpha", "zeta"}, manager.Classes())
}

func TestManagerSchemaByNameAndInstance(t *testing.T) {
	manager := newTestManager(t, nil)
	require.NoError(t, manager.RegisterClass(defaultNotifier(), norma.ClassDeclaration{}))

	byInstance, err := manager.Schema(&notifierSettings{})
	require.NoError(t, err)
	byName, err := manager.Schema("notifier_settings")
	require.NoError(t, err)
	assert.Equal(t, byInstance.Class(), byName.Class())

	_, err = manager.Schema("unregistered")
	require.Error(t, err)
	assert.True(t, norma.IsNotASettingsClassError(err))
}

func TestManagerNotifiesObserverOnPersist(t *testing.T) {
	ctx := context.Background()
	observer := &recordingObserver{}
	manager := newTestManager(t, observer)
	require.NoError(t, manager.RegisterClass(defaultNotifier(), norma.ClassDeclaration{}))

	settings := defaultNotifier()
	settings.Retries = 11
	_, err := manager.Persist(ctx, settings)
	require.NoError(t, err)

	require.Len(t, observer.data, 1)
	assert.Equal(t, []string{"notifier_settings"}, observer.classes)
	assert.Equal(t, []string{"notifier_settings"}, observer.keys)
	assert.Equal(t, int64(11), observer.data[0]["retries"])
}

// TestManagerObserverSeesCascadedPersists tests that a persist descending
// into a materialized embedded branch reports both saved classes.
func TestManagerObserverSeesCascadedPersists(t *testing.T) {
	ctx := context.Background()
	observer := &recordingObserver{}
	manager := newTestManager(t, observer)
	require.NoError(t, manager.RegisterClass(defaultNotifier(), norma.ClassDeclaration{}))
	require.NoError(t, manager.RegisterClass(defaultProfile(), norma.ClassDeclaration{}))

	settings := defaultProfile()
	settings.Notifier.Set(&notifierSettings{Webhook: "https://cascade.example.com", Retries: 9})

	_, err := manager.Persist(ctx, settings)
	require.NoError(t, err)

	assert.Equal(t, []string{"profile_settings", "notifier_settings"}, observer.classes)
	require.Len(t, observer.data, 2)
	assert.Equal(t, int64(9), observer.data[1]["retries"])
}

func TestManagerNormalizedRoundTrip(t *testing.T) {
	manager := newTestManager(t, nil)
	require.NoError(t, manager.RegisterClass(defaultNotifier(), norma.ClassDeclaration{}))

	source := &notifierSettings{Webhook: "https://rt.example.com", Retries: 4}
	data, err := manager.ToNormalized(source)
	require.NoError(t, err)

	fresh := &notifierSettings{}
	_, err = manager.ApplyNormalized(data, fresh)
	require.NoError(t, err)
	assert.Equal(t, source, fresh)
}

func TestManagerNewInstance(t *testing.T) {
	manager := newTestManager(t, nil)
	require.NoError(t, manager.RegisterClass(defaultNotifier(), norma.ClassDeclaration{}))

	instance, err := manager.NewInstance("notifier_settings")
	require.NoError(t, err)
	created, ok := instance.(*notifierSettings)
	require.True(t, ok)
	assert.Equal(t, defaultNotifier(), created, "new instances start from the prototype defaults")

	_, err = manager.NewInstance("unregistered")
	require.Error(t, err)
}

func TestManagerExportJSONSchema(t *testing.T) {
	manager := newTestManager(t, nil)
	require.NoError(t, manager.RegisterClass(defaultNotifier(), norma.ClassDeclaration{}))

	raw, err := manager.ExportJSONSchema("notifier_settings")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "object", doc["type"])
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "webhook")
	assert.Contains(t, props, "retries")
}

func TestManagerValidateNormalized(t *testing.T) {
	manager := newTestManager(t, nil)
	require.NoError(t, manager.RegisterClass(defaultNotifier(), norma.ClassDeclaration{}))

	require.NoError(t, manager.ValidateNormalized("notifier_settings", norma.NormalizedRepresentation{
		"webhook": "https://ok.example.com",
		"retries": int64(2),
	}))

	err := manager.ValidateNormalized("notifier_settings", norma.NormalizedRepresentation{
		"webhook": 42,
	})
	require.Error(t, err)
}
