package internal

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/norma"
)

type accessorFixture struct {
	Title    string
	Count    int
	Ratio    *float64
	Tags     []string
	Limits   map[string]int64
	Child    norma.Embedded[displaySettings]
	internal string
}

func newAccessorFixture(t *testing.T) *fieldAccessor {
	t.Helper()
	accessor, err := newFieldAccessor("accessor_fixture", reflect.TypeOf(accessorFixture{}))
	require.NoError(t, err)
	return accessor
}

func TestFieldAccessorPropertyIndex(t *testing.T) {
	accessor := newAccessorFixture(t)

	assert.True(t, accessor.HasProperty("Title"))
	assert.True(t, accessor.HasProperty("Ratio"))
	assert.False(t, accessor.HasProperty("Child"), "slots are not parameters")
	assert.False(t, accessor.HasProperty("internal"), "unexported fields are invisible")
	assert.True(t, accessor.HasSlot("Child"))
	assert.False(t, accessor.HasSlot("Title"))
}

func TestFieldAccessorGet(t *testing.T) {
	accessor := newAccessorFixture(t)
	ratio := 0.5
	obj := &accessorFixture{Title: "a", Count: 3, Ratio: &ratio}

	got, err := accessor.Get(obj, "Title")
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	got, err = accessor.Get(obj, "Ratio")
	require.NoError(t, err)
	assert.Equal(t, 0.5, got, "pointers are dereferenced")

	obj.Ratio = nil
	got, err = accessor.Get(obj, "Ratio")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = accessor.Get(obj, "Tags")
	require.NoError(t, err)
	assert.Nil(t, got, "nil slice reads as nil")

	_, err = accessor.Get(obj, "Ghost")
	require.Error(t, err)
	var settingsErr *norma.SettingsError
	require.ErrorAs(t, err, &settingsErr)
	assert.Equal(t, norma.ErrCodeUnknownName, settingsErr.Code)
}

func TestFieldAccessorSet(t *testing.T) {
	accessor := newAccessorFixture(t)
	obj := &accessorFixture{}

	require.NoError(t, accessor.Set(obj, "Title", "updated"))
	assert.Equal(t, "updated", obj.Title)

	require.NoError(t, accessor.Set(obj, "Count", int64(7)), "numeric widths convert")
	assert.Equal(t, 7, obj.Count)

	require.NoError(t, accessor.Set(obj, "Ratio", 0.25), "plain value fills a pointer field")
	require.NotNil(t, obj.Ratio)
	assert.Equal(t, 0.25, *obj.Ratio)

	require.NoError(t, accessor.Set(obj, "Ratio", nil))
	assert.Nil(t, obj.Ratio)

	require.NoError(t, accessor.Set(obj, "Tags", []any{"a", "b"}), "boxed elements convert")
	assert.Equal(t, []string{"a", "b"}, obj.Tags)

	require.NoError(t, accessor.Set(obj, "Limits", map[string]any{"eu": int64(4)}))
	assert.Equal(t, map[string]int64{"eu": 4}, obj.Limits)
}

func TestFieldAccessorSetRejectsNullScalar(t *testing.T) {
	accessor := newAccessorFixture(t)
	obj := &accessorFixture{Count: 5}

	err := accessor.Set(obj, "Count", nil)
	require.Error(t, err)
	var settingsErr *norma.SettingsError
	require.ErrorAs(t, err, &settingsErr)
	assert.Equal(t, norma.ErrCodeConversionFailed, settingsErr.Code)
	assert.Equal(t, 5, obj.Count, "failed assignment leaves the field untouched")
}

func TestFieldAccessorSetIncompatible(t *testing.T) {
	accessor := newAccessorFixture(t)
	obj := &accessorFixture{}

	err := accessor.Set(obj, "Count", "not a number")
	assert.Error(t, err)

	err = accessor.Set(obj, "Tags", []any{1, 2})
	assert.Error(t, err)
}

func TestFieldAccessorSlot(t *testing.T) {
	accessor := newAccessorFixture(t)
	obj := &accessorFixture{}

	slot, err := accessor.Slot(obj, "Child")
	require.NoError(t, err)
	assert.True(t, slot.IsEmpty())

	require.NoError(t, slot.Assign(&displaySettings{Theme: "dark"}))
	assert.True(t, obj.Child.Materialized(), "slot writes through to the struct field")
	assert.Equal(t, "dark", obj.Child.Get().Theme)

	_, err = accessor.Slot(obj, "Title")
	assert.Error(t, err, "parameter fields are not slots")
}

func TestFieldAccessorWrongInstance(t *testing.T) {
	accessor := newAccessorFixture(t)

	_, err := accessor.Get(&displaySettings{}, "Title")
	require.Error(t, err)
	var settingsErr *norma.SettingsError
	require.ErrorAs(t, err, &settingsErr)
	assert.Equal(t, norma.ErrCodeSchemaMismatch, settingsErr.Code)

	_, err = accessor.Get(nil, "Title")
	assert.Error(t, err)

	_, err = accessor.Get(accessorFixture{}, "Title")
	assert.Error(t, err, "values are rejected, a pointer is required")
}
