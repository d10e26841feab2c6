package internal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/norma"
)

func TestFileStorageRequiresDirectory(t *testing.T) {
	_, err := NewFileStorage(norma.FileConfig{})
	require.Error(t, err)
}

func TestFileStorageRejectsUnknownFormat(t *testing.T) {
	_, err := NewFileStorage(norma.FileConfig{Directory: t.TempDir(), Format: "toml"})
	require.Error(t, err)
}

func TestFileStorageJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStorage(norma.FileConfig{Directory: dir, Format: "json"})
	require.NoError(t, err)

	in := norma.NormalizedRepresentation{"theme": "dark", "page_size": float64(50)}
	require.NoError(t, store.Save(ctx, "profile", in))
	assert.FileExists(t, filepath.Join(dir, "profile.json"))

	out, err := store.Load(ctx, "profile")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFileStorageYAMLRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStorage(norma.FileConfig{Directory: dir, Format: "yaml"})
	require.NoError(t, err)

	in := norma.NormalizedRepresentation{"theme": "dark", "retries": 3}
	require.NoError(t, store.Save(ctx, "profile", in))
	assert.FileExists(t, filepath.Join(dir, "profile.yaml"))

	out, err := store.Load(ctx, "profile")
	require.NoError(t, err)
	assert.Equal(t, "dark", out["theme"])
	assert.Equal(t, 3, out["retries"])
}

func TestFileStorageMissingKeyYieldsEmpty(t *testing.T) {
	store, err := NewFileStorage(norma.FileConfig{Directory: t.TempDir()})
	require.NoError(t, err)

	out, err := store.Load(context.Background(), "absent")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFileStorageCorruptDocumentFails(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStorage(norma.FileConfig{Directory: dir})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0600))
	_, err = store.Load(ctx, "broken")
	require.Error(t, err)
	assert.True(t, norma.IsStorageError(err))
}

func TestFileStorageKeysSkipLocksAndForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStorage(norma.FileConfig{Directory: dir})
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "profile", norma.NormalizedRepresentation{}))
	require.NoError(t, store.Save(ctx, "server", norma.NormalizedRepresentation{}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("x"), 0600))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"profile", "server"}, keys)
}

func TestFileStorageDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStorage(norma.FileConfig{Directory: dir})
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "profile", norma.NormalizedRepresentation{"a": "b"}))
	require.NoError(t, store.Delete(ctx, "profile"))
	assert.NoFileExists(t, filepath.Join(dir, "profile.json"))
	require.NoError(t, store.Delete(ctx, "profile"))
}

func TestFileStorageSavesAreAtomicReplacements(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStorage(norma.FileConfig{Directory: dir})
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "profile", norma.NormalizedRepresentation{"rev": float64(1)}))
	require.NoError(t, store.Save(ctx, "profile", norma.NormalizedRepresentation{"rev": float64(2)}))

	out, err := store.Load(ctx, "profile")
	require.NoError(t, err)
	assert.Equal(t, float64(2), out["rev"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), "-tmp")
	}
}
