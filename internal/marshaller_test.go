package internal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/norma"
)

func TestMarshallerPersistHydrateRoundTrip(t *testing.T) {
	ctx := context.Background()
	rig := newEngineRig(t)
	schema := rig.registerProfileGraph(t)

	live := &profileSettings{Theme: "dark", PageSize: 50, Labels: []string{"a", "b"}}
	_, err := rig.marshaller.Persist(ctx, live, schema)
	require.NoError(t, err)

	fresh := &profileSettings{}
	_, err = rig.marshaller.Hydrate(ctx, fresh, schema)
	require.NoError(t, err)

	assert.Equal(t, "dark", fresh.Theme)
	assert.Equal(t, 50, fresh.PageSize)
	assert.Equal(t, []string{"a", "b"}, fresh.Labels)
}

// TestMarshallerPersistObservedReportsSavedRepresentation tests that the
// observer callback receives exactly the stored envelope, detached from the
// store.
func TestMarshallerPersistObservedReportsSavedRepresentation(t *testing.T) {
	ctx := context.Background()
	rig := newEngineRig(t)
	schema := rig.register(t, defaultNotifier(), norma.ClassDeclaration{Version: 2, Migrator: "notifier-migrator"})

	settings := &notifierSettings{Webhook: "https://observe.example.com", Retries: 5}
	var observed []norma.NormalizedRepresentation
	_, err := rig.marshaller.PersistObserved(ctx, settings, schema,
		func(class, key string, version int, data norma.NormalizedRepresentation) {
			assert.Equal(t, "notifier_settings", class)
			assert.Equal(t, "notifier_settings", key)
			assert.Equal(t, 2, version)
			observed = append(observed, data)
		})
	require.NoError(t, err)

	stored, err := rig.store.Load(ctx, "notifier_settings")
	require.NoError(t, err)
	require.Len(t, observed, 1)
	assert.True(t, norma.EqualNormalized(stored, observed[0]))

	observed[0]["retries"] = int64(99)
	stored, err = rig.store.Load(ctx, "notifier_settings")
	require.NoError(t, err)
	assert.Equal(t, int64(5), stored["retries"], "observed copy must not alias the store")
}

func TestMarshallerToNormalizedApplyNormalizedRoundTrip(t *testing.T) {
	rig := newEngineRig(t)
	schema := rig.registerProfileGraph(t)

	source := &profileSettings{Theme: "dark", PageSize: 50, Labels: []string{"x"}}
	data, err := rig.marshaller.ToNormalized(source, schema)
	require.NoError(t, err)
	assert.Equal(t, "dark", data["theme"])
	assert.Equal(t, int64(50), data["page_size"])

	fresh := &profileSettings{}
	_, err = rig.marshaller.ApplyNormalized(data, fresh, schema)
	require.NoError(t, err)
	assert.Equal(t, source.Theme, fresh.Theme)
	assert.Equal(t, source.PageSize, fresh.PageSize)
	assert.Equal(t, source.Labels, fresh.Labels)
}

func TestMarshallerPartialHydrateIsAdditive(t *testing.T) {
	ctx := context.Background()
	rig := newEngineRig(t)
	schema := rig.registerProfileGraph(t)

	// The stored representation only knows about the theme.
	require.NoError(t, rig.store.Save(ctx, schema.StorageKey(),
		norma.NormalizedRepresentation{"theme": "solarized"}))

	settings := &profileSettings{PageSize: 7, Labels: []string{"keep"}}
	_, err := rig.marshaller.Hydrate(ctx, settings, schema)
	require.NoError(t, err)

	assert.Equal(t, "solarized", settings.Theme)
	assert.Equal(t, 7, settings.PageSize, "missing keys leave existing values untouched")
	assert.Equal(t, []string{"keep"}, settings.Labels)
}

func TestMarshallerHydrateEmptyStoreKeepsDefaults(t *testing.T) {
	ctx := context.Background()
	rig := newEngineRig(t)
	schema := rig.registerProfileGraph(t)

	settings := defaultProfile()
	_, err := rig.marshaller.Hydrate(ctx, settings, schema)
	require.NoError(t, err)
	assert.Equal(t, "light", settings.Theme)
	assert.Equal(t, 25, settings.PageSize)
}

func TestMarshallerPersistRejectsForeignObject(t *testing.T) {
	ctx := context.Background()
	rig := newEngineRig(t)
	profileSchema := rig.registerProfileGraph(t)

	_, err := rig.marshaller.Persist(ctx, defaultNotifier(), profileSchema)
	require.Error(t, err)
	assert.True(t, norma.IsSchemaMismatchError(err))

	_, err = rig.marshaller.ApplyNormalized(norma.NormalizedRepresentation{}, defaultNotifier(), profileSchema)
	require.Error(t, err)
	assert.True(t, norma.IsSchemaMismatchError(err))
}

func TestMarshallerPersistStampsVersion(t *testing.T) {
	ctx := context.Background()
	rig := newEngineRig(t)
	schema := rig.register(t, defaultNotifier(), norma.ClassDeclaration{
		Version:  3,
		Migrator: "notifier-migrator",
	})

	_, err := rig.marshaller.Persist(ctx, defaultNotifier(), schema)
	require.NoError(t, err)

	stored, err := rig.store.Load(ctx, schema.StorageKey())
	require.NoError(t, err)
	assert.Equal(t, 3, stored.StoredVersion())
}

type renameMigrator struct {
	calls int
}

func (m *renameMigrator) Migrate(_ context.Context, data norma.NormalizedRepresentation, fromVersion, toVersion int) (norma.NormalizedRepresentation, error) {
	m.calls++
	if hook, ok := data["hook"]; ok {
		data["webhook"] = hook
		delete(data, "hook")
	}
	data[norma.VersionKey] = toVersion
	return data, nil
}

func TestMarshallerHydrateMigratesOldRepresentations(t *testing.T) {
	ctx := context.Background()
	rig := newEngineRig(t)
	migrator := &renameMigrator{}
	require.NoError(t, rig.migrators.Register("notifier-migrator", migrator))

	schema := rig.register(t, defaultNotifier(), norma.ClassDeclaration{
		Version:  2,
		Migrator: "notifier-migrator",
	})

	require.NoError(t, rig.store.Save(ctx, schema.StorageKey(), norma.NormalizedRepresentation{
		norma.VersionKey: int64(1),
		"hook":           "https://old.example.com",
		"retries":        int64(9),
	}))

	settings := &notifierSettings{}
	_, err := rig.marshaller.Hydrate(ctx, settings, schema)
	require.NoError(t, err)
	assert.Equal(t, 1, migrator.calls)
	assert.Equal(t, "https://old.example.com", settings.Webhook)
	assert.Equal(t, 9, settings.Retries)
}

func TestMarshallerHydrateCurrentVersionSkipsMigrator(t *testing.T) {
	ctx := context.Background()
	rig := newEngineRig(t)
	migrator := &renameMigrator{}
	require.NoError(t, rig.migrators.Register("notifier-migrator", migrator))

	schema := rig.register(t, defaultNotifier(), norma.ClassDeclaration{
		Version:  2,
		Migrator: "notifier-migrator",
	})
	require.NoError(t, rig.store.Save(ctx, schema.StorageKey(), norma.NormalizedRepresentation{
		norma.VersionKey: int64(2),
		"webhook":        "https://current.example.com",
	}))

	settings := &notifierSettings{}
	_, err := rig.marshaller.Hydrate(ctx, settings, schema)
	require.NoError(t, err)
	assert.Equal(t, 0, migrator.calls)
	assert.Equal(t, "https://current.example.com", settings.Webhook)
}

func TestMarshallerHydrateUnregisteredMigratorFails(t *testing.T) {
	ctx := context.Background()
	rig := newEngineRig(t)
	schema := rig.register(t, defaultNotifier(), norma.ClassDeclaration{
		Version:  2,
		Migrator: "missing-migrator",
	})
	require.NoError(t, rig.store.Save(ctx, schema.StorageKey(), norma.NormalizedRepresentation{
		norma.VersionKey: int64(1),
		"webhook":        "https://old.example.com",
	}))

	_, err := rig.marshaller.Hydrate(ctx, &notifierSettings{}, schema)
	require.Error(t, err)
	assert.True(t, norma.IsUnknownMigratorError(err))
}

type failingMigrator struct{}

func (failingMigrator) Migrate(_ context.Context, _ norma.NormalizedRepresentation, _, _ int) (norma.NormalizedRepresentation, error) {
	return nil, errors.New("cannot map legacy layout")
}

func TestMarshallerHydrateMigrationFailure(t *testing.T) {
	ctx := context.Background()
	rig := newEngineRig(t)
	require.NoError(t, rig.migrators.Register("notifier-migrator", failingMigrator{}))
	schema := rig.register(t, defaultNotifier(), norma.ClassDeclaration{
		Version:  2,
		Migrator: "notifier-migrator",
	})
	require.NoError(t, rig.store.Save(ctx, schema.StorageKey(), norma.NormalizedRepresentation{
		norma.VersionKey: int64(1),
	}))

	_, err := rig.marshaller.Hydrate(ctx, &notifierSettings{}, schema)
	require.Error(t, err)
	assert.True(t, norma.IsMigrationError(err))
}

func TestMarshallerHydrateWiresLazyEmbeds(t *testing.T) {
	ctx := context.Background()
	rig := newEngineRig(t)
	rig.register(t, defaultNotifier(), norma.ClassDeclaration{})
	profileSchema := rig.register(t, defaultProfile(), norma.ClassDeclaration{})

	notifierSchema, err := rig.schemas.Get("notifier_settings")
	require.NoError(t, err)
	require.NoError(t, rig.store.Save(ctx, notifierSchema.StorageKey(), norma.NormalizedRepresentation{
		"webhook": "https://stored.example.com",
	}))

	settings := &profileSettings{}
	_, err = rig.marshaller.Hydrate(ctx, settings, profileSchema)
	require.NoError(t, err)

	require.False(t, settings.Notifier.Materialized(), "hydrate must not materialize embedded branches")
	notifier := settings.Notifier.Get()
	require.NotNil(t, notifier)
	assert.Equal(t, "https://stored.example.com", notifier.Webhook)
	assert.Equal(t, 3, notifier.Retries, "missing keys fall back to the prototype default")
	assert.Same(t, notifier, settings.Notifier.Get())
}

func TestMarshallerPersistSkipsUnmaterializedEmbeds(t *testing.T) {
	ctx := context.Background()
	rig := newEngineRig(t)
	profileSchema := rig.registerProfileGraph(t)

	settings := defaultProfile()
	_, err := rig.marshaller.Persist(ctx, settings, profileSchema)
	require.NoError(t, err)

	keys, err := rig.store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"profile_settings"}, keys, "untouched embedded branch is not persisted")

	// Materialized branches persist recursively under their own key.
	settings.Notifier.Set(&notifierSettings{Webhook: "https://set.example.com"})
	_, err = rig.marshaller.Persist(ctx, settings, profileSchema)
	require.NoError(t, err)
	keys, err = rig.store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"notifier_settings", "profile_settings"}, keys)
}

func TestMarshallerToNormalizedRejectsUnknownType(t *testing.T) {
	rig := newEngineRig(t)
	schema := rig.register(t, defaultNotifier(), norma.ClassDeclaration{
		Parameters: []norma.ParameterDeclaration{
			{Property: "Webhook", Type: "exotic"},
		},
	})

	_, err := rig.marshaller.ToNormalized(defaultNotifier(), schema)
	require.Error(t, err)
	assert.True(t, norma.IsUnknownTypeError(err))
}
