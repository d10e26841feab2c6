package norma

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizedClone(t *testing.T) {
	original := NormalizedRepresentation{
		"theme":  "dark",
		"labels": []any{"a", "b"},
		"limits": map[string]any{"max": int64(10)},
	}

	clone := original.Clone()
	require.Equal(t, original, clone)

	clone["labels"].([]any)[0] = "mutated"
	clone["limits"].(map[string]any)["max"] = int64(99)
	assert.Equal(t, "a", original["labels"].([]any)[0])
	assert.Equal(t, int64(10), original["limits"].(map[string]any)["max"])

	assert.Nil(t, NormalizedRepresentation(nil).Clone())
}

func TestStoredVersion(t *testing.T) {
	assert.Equal(t, 0, NormalizedRepresentation{}.StoredVersion())
	assert.Equal(t, 3, NormalizedRepresentation{VersionKey: int64(3)}.StoredVersion())
	assert.Equal(t, 3, NormalizedRepresentation{VersionKey: 3}.StoredVersion())
	assert.Equal(t, 3, NormalizedRepresentation{VersionKey: float64(3)}.StoredVersion(),
		"JSON decoding yields float64")
	assert.Equal(t, 0, NormalizedRepresentation{VersionKey: float64(3.5)}.StoredVersion())
	assert.Equal(t, 0, NormalizedRepresentation{VersionKey: "3"}.StoredVersion())
}

func TestWithoutReservedKeys(t *testing.T) {
	in := NormalizedRepresentation{
		VersionKey: int64(2),
		"$future":  true,
		"theme":    "dark",
	}
	out := in.WithoutReservedKeys()
	assert.Equal(t, NormalizedRepresentation{"theme": "dark"}, out)
}

func TestCheckNormalizedValue(t *testing.T) {
	for _, value := range []any{
		nil, "text", true, int64(1), 1, 1.5,
		[]any{"a", int64(2)},
		map[string]any{"nested": []any{nil}},
	} {
		assert.NoError(t, CheckNormalizedValue(value), "%T should be a storage primitive", value)
	}

	for _, value := range []any{
		time.Now(),
		[]string{"typed slices are not normalized"},
		map[string]string{"typed": "map"},
		struct{}{},
		[]any{struct{}{}},
	} {
		err := CheckNormalizedValue(value)
		require.Error(t, err, "%T must be rejected", value)
	}
}

func TestCheckNormalizedValueDepthLimit(t *testing.T) {
	deep := any("leaf")
	for i := 0; i < 40; i++ {
		deep = []any{deep}
	}
	require.Error(t, CheckNormalizedValue(deep))
}

func TestEqualNormalized(t *testing.T) {
	a := NormalizedRepresentation{
		"count":  int64(5),
		"labels": []any{"x"},
		"nested": map[string]any{"flag": true},
	}
	b := NormalizedRepresentation{
		"count":  5,
		"labels": []any{"x"},
		"nested": map[string]any{"flag": true},
	}
	assert.True(t, EqualNormalized(a, b), "int and int64 compare equal")

	assert.False(t, EqualNormalized(a, NormalizedRepresentation{"count": int64(5)}))
	assert.False(t, EqualNormalized(a, NormalizedRepresentation{
		"count":  int64(5),
		"labels": []any{"y"},
		"nested": map[string]any{"flag": true},
	}))
	assert.True(t, EqualNormalized(nil, NormalizedRepresentation{}))
}
