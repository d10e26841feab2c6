package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnakeCase(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{name: "single word", input: "Theme", expect: "theme"},
		{name: "two words", input: "MaxUsers", expect: "max_users"},
		{name: "leading acronym", input: "HTTPTimeout", expect: "http_timeout"},
		{name: "trailing acronym", input: "BaseURL", expect: "base_url"},
		{name: "inner acronym", input: "EnableTLSNow", expect: "enable_tls_now"},
		{name: "already lower", input: "theme", expect: "theme"},
		{name: "digits stay attached", input: "Retries3", expect: "retries3"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, snakeCase(tt.input))
		})
	}
}

// TestDeepCopyAnyIsolatesCompounds tests that slices and maps inside the
// copied value do not share backing storage with the source.
func TestDeepCopyAnyIsolatesCompounds(t *testing.T) {
	src := map[string]any{
		"regions": []string{"eu", "us"},
		"limits":  map[string]int{"eu": 10},
	}

	cpy, ok := deepCopyAny(src).(map[string]any)
	require.True(t, ok)

	cpy["regions"].([]string)[0] = "ap"
	cpy["limits"].(map[string]int)["eu"] = 99

	assert.Equal(t, "eu", src["regions"].([]string)[0])
	assert.Equal(t, 10, src["limits"].(map[string]int)["eu"])
}

func TestDeepCopyAnyPointer(t *testing.T) {
	n := 5
	cpy, ok := deepCopyAny(&n).(*int)
	require.True(t, ok)
	require.NotNil(t, cpy)

	*cpy = 9
	assert.Equal(t, 5, n)
}

func TestDeepCopyAnyStruct(t *testing.T) {
	type inner struct {
		Tags []string
	}
	type outer struct {
		Name  string
		Inner inner
		When  time.Time
	}

	src := outer{Name: "a", Inner: inner{Tags: []string{"x"}}, When: time.Unix(100, 0)}
	cpy, ok := deepCopyAny(src).(outer)
	require.True(t, ok)

	cpy.Inner.Tags[0] = "changed"
	assert.Equal(t, "x", src.Inner.Tags[0])
	assert.True(t, cpy.When.Equal(src.When))
}

func TestDeepCopyAnyNil(t *testing.T) {
	assert.Nil(t, deepCopyAny(nil))

	var s []string
	copied := deepCopyAny(s)
	require.IsType(t, []string(nil), copied)
	assert.Nil(t, copied)
}

func TestIsNilValue(t *testing.T) {
	var ptr *int
	var slice []string
	var m map[string]int
	n := 1

	assert.True(t, isNilValue(nil))
	assert.True(t, isNilValue(ptr))
	assert.True(t, isNilValue(slice))
	assert.True(t, isNilValue(m))
	assert.False(t, isNilValue(&n))
	assert.False(t, isNilValue(0))
	assert.False(t, isNilValue(""))
	assert.False(t, isNilValue([]string{}))
}
