package norma

import (
	"fmt"
	"math"
)

// reservedKeyPrefix marks keys owned by the library inside a stored
// representation. Parameter names must not start with it.
const reservedKeyPrefix = "$"

// VersionKey is the reserved envelope key carrying the schema version a
// representation was written with. It never corresponds to a parameter.
const VersionKey = reservedKeyPrefix + "version"

// NormalizedRepresentation maps parameter external names to storage-safe
// values. It is the wire format between the hydrator and a storage adapter
// and must survive a round trip through any serialization an adapter picks
// (JSON, YAML, database rows). Allowed values: nil, string, bool, int64,
// float64, []any and map[string]any of the same.
type NormalizedRepresentation map[string]any

// Clone returns a deep copy of the representation.
func (r NormalizedRepresentation) Clone() NormalizedRepresentation {
	if r == nil {
		return nil
	}
	out := make(NormalizedRepresentation, len(r))
	for k, v := range r {
		out[k] = cloneNormalizedValue(v)
	}
	return out
}

// StoredVersion extracts the version envelope, 0 when absent.
func (r NormalizedRepresentation) StoredVersion() int {
	switch v := r[VersionKey].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		if v == math.Trunc(v) {
			return int(v)
		}
	}
	return 0
}

// WithoutReservedKeys returns a shallow copy stripped of all "$"-prefixed keys.
func (r NormalizedRepresentation) WithoutReservedKeys() NormalizedRepresentation {
	out := make(NormalizedRepresentation, len(r))
	for k, v := range r {
		if len(k) > 0 && k[0] == reservedKeyPrefix[0] {
			continue
		}
		out[k] = v
	}
	return out
}

// CheckNormalizedValue verifies a value is representable in any adapter
// serialization. Returns a SettingsError with code INVALID_NORMALIZED_VALUE
// for anything outside the allowed primitive set.
func CheckNormalizedValue(value any) error {
	return checkNormalizedValue(value, 0)
}

const maxNormalizedDepth = 32

func checkNormalizedValue(value any, depth int) error {
	if depth > maxNormalizedDepth {
		return NewSettingsError(ErrorTypeMarshalling, ErrCodeInvalidNormalized,
			"normalized value nesting exceeds maximum depth")
	}
	switch v := value.(type) {
	case nil, string, bool, int64, float64:
		return nil
	case int:
		return nil
	case []any:
		for _, item := range v {
			if err := checkNormalizedValue(item, depth+1); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		for _, item := range v {
			if err := checkNormalizedValue(item, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return NewSettingsError(ErrorTypeMarshalling, ErrCodeInvalidNormalized,
			fmt.Sprintf("value of type %T is not a storage primitive", value))
	}
}

func cloneNormalizedValue(value any) any {
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneNormalizedValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = cloneNormalizedValue(item)
		}
		return out
	default:
		return v
	}
}

// EqualNormalized compares two representations by value, treating int and
// int64 as interchangeable (adapters differ in how they decode integers).
func EqualNormalized(a, b NormalizedRepresentation) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !equalNormalizedValue(av, bv) {
			return false
		}
	}
	return true
}

func equalNormalizedValue(a, b any) bool {
	if an, aok := asInt64(a); aok {
		bn, bok := asInt64(b)
		return bok && an == bn
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalNormalizedValue(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k := range av {
			inner, ok := bv[k]
			if !ok || !equalNormalizedValue(av[k], inner) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}
