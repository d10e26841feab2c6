package internal

import (
	"reflect"
	"time"

	"github.com/lychee-technology/norma"
)

var durationType = reflect.TypeOf(time.Duration(0))

// ReflectTypeGuesser infers parameter metadata from the static Go field type
// when the declaration leaves it out: the base type selects the converter,
// pointer-ness decides nullability, and datetime fields pick up a format
// option consumed by the datetime converter.
type ReflectTypeGuesser struct{}

func NewReflectTypeGuesser() *ReflectTypeGuesser {
	return &ReflectTypeGuesser{}
}

func (g *ReflectTypeGuesser) GuessType(probe norma.PropertyProbe) (norma.TypeIdentifier, bool) {
	t := probe.GoType
	if t == nil {
		return "", false
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t {
	case timeType:
		return norma.TypeDatetime, true
	case durationType:
		return norma.TypeDuration, true
	}

	switch t.Kind() {
	case reflect.String:
		return norma.TypeString, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return norma.TypeInt, true
	case reflect.Float32, reflect.Float64:
		return norma.TypeFloat, true
	case reflect.Bool:
		return norma.TypeBool, true
	case reflect.Slice:
		switch t.Elem().Kind() {
		case reflect.String:
			return norma.TypeStringSlice, true
		case reflect.Int, reflect.Int32, reflect.Int64:
			return norma.TypeIntSlice, true
		}
		if t.Elem().Kind() == reflect.Interface {
			return norma.TypeJSON, true
		}
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return "", false
		}
		switch t.Elem().Kind() {
		case reflect.String:
			return norma.TypeStringMap, true
		case reflect.Interface:
			return norma.TypeJSON, true
		}
	}
	return "", false
}

func (g *ReflectTypeGuesser) GuessNullable(probe norma.PropertyProbe) (bool, bool) {
	t := probe.GoType
	if t == nil {
		return false, false
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return true, true
	}
	return false, true
}

func (g *ReflectTypeGuesser) GuessOptions(probe norma.PropertyProbe) (map[string]any, bool) {
	t := probe.GoType
	if t == nil {
		return nil, false
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return map[string]any{"format": time.RFC3339}, true
	}
	return nil, false
}
