package norma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type proxyTestSettings struct {
	Host string
}

func TestEmbeddedEmptySlot(t *testing.T) {
	var slot Embedded[proxyTestSettings]
	assert.True(t, slot.IsEmpty())
	assert.False(t, slot.Materialized())
	assert.Nil(t, slot.Get())
	assert.Nil(t, slot.Resolve())
	assert.Empty(t, slot.EmbeddedClass())
}

func TestEmbeddedOf(t *testing.T) {
	value := &proxyTestSettings{Host: "proxy.internal"}
	slot := EmbeddedOf(value)
	assert.True(t, slot.Materialized())
	assert.Same(t, value, slot.Get())
}

func TestEmbeddedSetAndAssign(t *testing.T) {
	var slot Embedded[proxyTestSettings]
	value := &proxyTestSettings{Host: "a"}
	slot.Set(value)
	assert.Same(t, value, slot.Get())

	require.NoError(t, slot.Assign(&proxyTestSettings{Host: "b"}))
	assert.Equal(t, "b", slot.Get().Host)

	require.Error(t, slot.Assign("not a settings pointer"))

	require.NoError(t, slot.Assign(nil))
	assert.True(t, slot.IsEmpty())
}

func TestEmbeddedDeferToRunsOnce(t *testing.T) {
	var slot Embedded[proxyTestSettings]
	calls := 0
	slot.DeferTo("proxy_settings", func() any {
		calls++
		return &proxyTestSettings{Host: "lazy.internal"}
	})

	assert.False(t, slot.Materialized())
	assert.False(t, slot.IsEmpty())
	assert.Equal(t, "proxy_settings", slot.EmbeddedClass())
	assert.Equal(t, 0, calls)

	first := slot.Get()
	require.NotNil(t, first)
	assert.Equal(t, "lazy.internal", first.Host)
	assert.Equal(t, 1, calls)
	assert.True(t, slot.Materialized())

	assert.Same(t, first, slot.Get())
	assert.Equal(t, 1, calls)
}

func TestEmbeddedDeferToNilResult(t *testing.T) {
	var slot Embedded[proxyTestSettings]
	calls := 0
	slot.DeferTo("proxy_settings", func() any {
		calls++
		return nil
	})

	assert.Nil(t, slot.Get())
	assert.Nil(t, slot.Get())
	assert.Equal(t, 1, calls, "a failed initializer is not retried")
	assert.True(t, slot.IsEmpty())
}

func TestEmbeddedSetClearsPendingInitializer(t *testing.T) {
	var slot Embedded[proxyTestSettings]
	calls := 0
	slot.DeferTo("proxy_settings", func() any {
		calls++
		return &proxyTestSettings{}
	})

	direct := &proxyTestSettings{Host: "direct"}
	slot.Set(direct)
	assert.Same(t, direct, slot.Get())
	assert.Equal(t, 0, calls)
}

func TestEmbeddedSlotInterface(t *testing.T) {
	var slot Embedded[proxyTestSettings]
	var iface EmbeddedSlot = &slot

	iface.DeferTo("proxy_settings", func() any { return &proxyTestSettings{Host: "x"} })
	resolved, ok := iface.Resolve().(*proxyTestSettings)
	require.True(t, ok)
	assert.Equal(t, "x", resolved.Host)
}
