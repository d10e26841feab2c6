package internal

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/lychee-technology/norma"
)

// converterRegistry is the default norma.ConverterRegistry implementation.
// Built-in converters are pre-registered; applications add their own under
// new type identifiers.
type converterRegistry struct {
	mu         sync.RWMutex
	converters map[norma.TypeIdentifier]norma.Converter
}

// NewConverterRegistry creates a registry with all built-in converters.
func NewConverterRegistry() norma.ConverterRegistry {
	r := &converterRegistry{
		converters: make(map[norma.TypeIdentifier]norma.Converter),
	}
	builtins := map[norma.TypeIdentifier]norma.Converter{
		norma.TypeString:      stringConverter{},
		norma.TypeInt:         intConverter{},
		norma.TypeFloat:       floatConverter{},
		norma.TypeBool:        boolConverter{},
		norma.TypeDatetime:    datetimeConverter{},
		norma.TypeDuration:    durationConverter{},
		norma.TypeStringSlice: stringSliceConverter{},
		norma.TypeIntSlice:    intSliceConverter{},
		norma.TypeStringMap:   stringMapConverter{},
		norma.TypeJSON:        jsonConverter{},
	}
	for id, c := range builtins {
		r.converters[id] = c
	}
	return r
}

func (r *converterRegistry) Get(typeIdentifier norma.TypeIdentifier) (norma.Converter, error) {
	r.mu.RLock()
	c, ok := r.converters[typeIdentifier]
	r.mu.RUnlock()
	if !ok {
		return nil, norma.NewUnknownTypeError(typeIdentifier)
	}
	return c, nil
}

func (r *converterRegistry) Register(typeIdentifier norma.TypeIdentifier, converter norma.Converter) error {
	if typeIdentifier == "" || converter == nil {
		return norma.NewSettingsError(norma.ErrorTypeDeclaration, norma.ErrCodeInvalidDeclaration,
			"converter registration requires an identifier and a converter")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.converters[typeIdentifier]; exists {
		return norma.NewSettingsError(norma.ErrorTypeDeclaration, norma.ErrCodeDuplicateType,
			fmt.Sprintf("type converter '%s' already registered", typeIdentifier))
	}
	r.converters[typeIdentifier] = converter
	return nil
}

func (r *converterRegistry) Types() []norma.TypeIdentifier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]norma.TypeIdentifier, 0, len(r.converters))
	for id := range r.converters {
		types = append(types, id)
	}
	sort.Strings(types)
	return types
}

// ============================================================================
// Built-in converters
// ============================================================================

type stringConverter struct{}

func (stringConverter) ToNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	if value == nil {
		return nil, nil
	}
	return toString(value)
}

func (stringConverter) FromNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	if value == nil {
		return nil, nil
	}
	return toString(value)
}

type intConverter struct{}

func (intConverter) ToNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	if value == nil {
		return nil, nil
	}
	return toInt64(value)
}

func (intConverter) FromNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	if value == nil {
		return nil, nil
	}
	return toInt64(value)
}

type floatConverter struct{}

func (floatConverter) ToNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	if value == nil {
		return nil, nil
	}
	return toFloat64(value)
}

func (floatConverter) FromNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	if value == nil {
		return nil, nil
	}
	return toFloat64(value)
}

type boolConverter struct{}

func (boolConverter) ToNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	if value == nil {
		return nil, nil
	}
	return toBool(value)
}

func (boolConverter) FromNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	if value == nil {
		return nil, nil
	}
	return toBool(value)
}

// datetimeConverter stores timestamps as formatted strings. The format comes
// from the parameter's "format" option, RFC3339 by default.
type datetimeConverter struct{}

func (datetimeConverter) ToNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	if value == nil {
		return nil, nil
	}
	t, err := toTime(value)
	if err != nil {
		return nil, err
	}
	return t.Format(datetimeFormat(schema, parameter)), nil
}

func (datetimeConverter) FromNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	if value == nil {
		return nil, nil
	}
	if s, ok := value.(string); ok {
		if t, err := time.Parse(datetimeFormat(schema, parameter), s); err == nil {
			return t, nil
		}
	}
	return toTime(value)
}

func datetimeFormat(schema *norma.SchemaModel, parameter string) string {
	if schema != nil {
		if p, err := schema.ParameterByName(parameter); err == nil {
			if format, ok := p.Options["format"].(string); ok && format != "" {
				return format
			}
		}
	}
	return time.RFC3339
}

// durationConverter stores durations in Go's "1h30m" string notation.
type durationConverter struct{}

func (durationConverter) ToNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	if value == nil {
		return nil, nil
	}
	d, err := toDuration(value)
	if err != nil {
		return nil, err
	}
	return d.String(), nil
}

func (durationConverter) FromNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	if value == nil {
		return nil, nil
	}
	return toDuration(value)
}

type stringSliceConverter struct{}

func (stringSliceConverter) ToNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			s, err := toString(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to string slice", value)
	}
}

func (stringSliceConverter) FromNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, err := toString(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to string slice", value)
	}
}

type intSliceConverter struct{}

func (intSliceConverter) ToNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case []int64:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = int64(n)
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			n, err := toInt64(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to int slice", value)
	}
}

func (intSliceConverter) FromNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case []int64:
		return v, nil
	case []any:
		out := make([]int64, len(v))
		for i, item := range v {
			n, err := toInt64(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to int slice", value)
	}
}

type stringMapConverter struct{}

func (stringMapConverter) ToNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			s, err := toString(item)
			if err != nil {
				return nil, fmt.Errorf("key '%s': %w", k, err)
			}
			out[k] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to string map", value)
	}
}

func (stringMapConverter) FromNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case map[string]string:
		return v, nil
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, item := range v {
			s, err := toString(item)
			if err != nil {
				return nil, fmt.Errorf("key '%s': %w", k, err)
			}
			out[k] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to string map", value)
	}
}

// jsonConverter round-trips arbitrary values through encoding/json so the
// normalized form only carries storage primitives.
type jsonConverter struct{}

func (jsonConverter) ToNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal json value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal json value: %w", err)
	}
	return out, nil
}

func (jsonConverter) FromNormalized(value any, schema *norma.SchemaModel, parameter string) (any, error) {
	return value, nil
}

// ============================================================================
// Value coercion helpers
// ============================================================================

func toString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return fmt.Sprintf("%v", value), nil
	}
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("value %v is not an integer", v)
		}
		return int64(v), nil
	case float32:
		return toInt64(float64(v))
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", value)
	}
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", value)
	}
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to bool", value)
	}
}

func toTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		epoch, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return time.UnixMilli(epoch), nil
		}

		formats := []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02",
			"2006-01",
		}
		for _, format := range formats {
			if parsed, err := time.Parse(format, v); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unsupported time format: %s", v)
	case int64:
		return time.UnixMilli(v), nil
	case float64:
		return time.UnixMilli(int64(v)), nil
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time.Time", value)
	}
}

func toDuration(value any) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case string:
		return time.ParseDuration(v)
	case int64:
		return time.Duration(v), nil
	case float64:
		return time.Duration(int64(v)), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to time.Duration", value)
	}
}
