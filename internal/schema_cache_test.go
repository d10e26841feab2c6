package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/norma"
)

func TestSchemaCacheReturnsSameModel(t *testing.T) {
	registry := NewClassRegistry()
	require.NoError(t, registry.Register(&displaySettings{}, norma.ClassDeclaration{}))
	builder := NewSchemaBuilder(registry, nil, norma.AdapterMemory)

	cache, err := newSchemaCache(builder, 8, false)
	require.NoError(t, err)

	first, err := cache.Get("display_settings")
	require.NoError(t, err)
	second, err := cache.Get("display_settings")
	require.NoError(t, err)
	assert.Same(t, first, second, "cached lookups return the built model")

	_, err = cache.Get("ghost")
	assert.Error(t, err)
}

func TestSchemaCacheDebugBypass(t *testing.T) {
	registry := NewClassRegistry()
	require.NoError(t, registry.Register(&displaySettings{}, norma.ClassDeclaration{}))
	builder := NewSchemaBuilder(registry, nil, norma.AdapterMemory)

	cache, err := newSchemaCache(builder, 8, true)
	require.NoError(t, err)

	first, err := cache.Get("display_settings")
	require.NoError(t, err)
	second, err := cache.Get("display_settings")
	require.NoError(t, err)
	assert.NotSame(t, first, second, "debug mode rebuilds on every lookup")
}

func TestSchemaCacheInvalidate(t *testing.T) {
	registry := NewClassRegistry()
	require.NoError(t, registry.Register(&displaySettings{}, norma.ClassDeclaration{}))
	builder := NewSchemaBuilder(registry, nil, norma.AdapterMemory)

	cache, err := newSchemaCache(builder, 8, false)
	require.NoError(t, err)

	first, err := cache.Get("display_settings")
	require.NoError(t, err)
	cache.Invalidate("display_settings")
	second, err := cache.Get("display_settings")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestSchemaCacheRejectsBadSize(t *testing.T) {
	registry := NewClassRegistry()
	builder := NewSchemaBuilder(registry, nil, norma.AdapterMemory)

	_, err := newSchemaCache(builder, 0, false)
	assert.Error(t, err)

	_, err = newSchemaCache(builder, 0, true)
	assert.NoError(t, err, "debug mode never allocates the cache")
}
