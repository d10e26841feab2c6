package internal

import (
	"fmt"
	"reflect"

	"github.com/lychee-technology/norma"
)

// fieldAccessor is the reflect-derived get/set table of one settings class.
// It is computed once at registration so the marshalling engines never walk
// struct metadata at runtime.
type fieldAccessor struct {
	class  string
	goType reflect.Type
	fields map[string]int // parameter property -> field index
	slots  map[string]int // embedded property -> field index
}

func newFieldAccessor(class string, t reflect.Type) (*fieldAccessor, error) {
	a := &fieldAccessor{
		class:  class,
		goType: t,
		fields: make(map[string]int),
		slots:  make(map[string]int),
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if isSlotType(f.Type) {
			a.slots[f.Name] = i
		} else {
			a.fields[f.Name] = i
		}
	}
	return a, nil
}

func (a *fieldAccessor) structValue(obj any) (reflect.Value, error) {
	rv := reflect.ValueOf(obj)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return reflect.Value{}, norma.NewInternalError(
			fmt.Sprintf("settings object must be a non-nil pointer, got %T", obj), nil)
	}
	ev := rv.Elem()
	if ev.Type() != a.goType {
		return reflect.Value{}, norma.NewSchemaMismatchError(a.class, ev.Type().String())
	}
	return ev, nil
}

// HasProperty reports whether the class struct carries the parameter field.
func (a *fieldAccessor) HasProperty(property string) bool {
	_, ok := a.fields[property]
	return ok
}

// HasSlot reports whether the class struct carries the embedded slot field.
func (a *fieldAccessor) HasSlot(property string) bool {
	_, ok := a.slots[property]
	return ok
}

// Get reads a parameter property. Pointer fields are dereferenced so the
// caller always sees the underlying value, or nil for an unset pointer.
func (a *fieldAccessor) Get(obj any, property string) (any, error) {
	ev, err := a.structValue(obj)
	if err != nil {
		return nil, err
	}
	idx, ok := a.fields[property]
	if !ok {
		return nil, norma.NewUnknownNameError(a.class, property)
	}
	fv := ev.Field(idx)
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil, nil
		}
		return fv.Elem().Interface(), nil
	}
	switch fv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Interface:
		if fv.IsNil() {
			return nil, nil
		}
	}
	return fv.Interface(), nil
}

// Set writes a parameter property, adapting the value to the field type:
// nil empties nil-able fields, pointer fields get a fresh pointer, numeric
// widths are converted, slices and maps element-wise.
func (a *fieldAccessor) Set(obj any, property string, value any) error {
	ev, err := a.structValue(obj)
	if err != nil {
		return err
	}
	idx, ok := a.fields[property]
	if !ok {
		return norma.NewUnknownNameError(a.class, property)
	}
	return a.assignField(property, ev.Field(idx), value)
}

// Slot returns the embedded slot behind an embedded property.
func (a *fieldAccessor) Slot(obj any, property string) (norma.EmbeddedSlot, error) {
	ev, err := a.structValue(obj)
	if err != nil {
		return nil, err
	}
	idx, ok := a.slots[property]
	if !ok {
		return nil, norma.NewUnknownNameError(a.class, property)
	}
	return ev.Field(idx).Addr().Interface().(norma.EmbeddedSlot), nil
}

func (a *fieldAccessor) assignField(property string, fv reflect.Value, value any) error {
	if isNilValue(value) {
		switch fv.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		default:
			return norma.NewConversionError(a.class, property,
				fmt.Errorf("cannot assign null to non-nullable %s field", fv.Type()))
		}
	}

	rv := reflect.ValueOf(value)
	if fv.Kind() == reflect.Pointer {
		if rv.Type() == fv.Type() {
			fv.Set(rv)
			return nil
		}
		elem := reflect.New(fv.Type().Elem())
		if err := assignCompatible(elem.Elem(), rv); err != nil {
			return norma.NewConversionError(a.class, property, err)
		}
		fv.Set(elem)
		return nil
	}
	if err := assignCompatible(fv, rv); err != nil {
		return norma.NewConversionError(a.class, property, err)
	}
	return nil
}

func assignCompatible(dst, src reflect.Value) error {
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}
	if isNumericKind(src.Kind()) && isNumericKind(dst.Kind()) && src.Type().ConvertibleTo(dst.Type()) {
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	if dst.Kind() == reflect.Slice && src.Kind() == reflect.Slice {
		out := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			sv := src.Index(i)
			if sv.Kind() == reflect.Interface {
				sv = sv.Elem()
			}
			if err := assignCompatible(out.Index(i), sv); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		dst.Set(out)
		return nil
	}
	if dst.Kind() == reflect.Map && src.Kind() == reflect.Map {
		out := reflect.MakeMapWithSize(dst.Type(), src.Len())
		iter := src.MapRange()
		for iter.Next() {
			mv := reflect.New(dst.Type().Elem()).Elem()
			sv := iter.Value()
			if sv.Kind() == reflect.Interface {
				sv = sv.Elem()
			}
			if err := assignCompatible(mv, sv); err != nil {
				return fmt.Errorf("key '%v': %w", iter.Key(), err)
			}
			out.SetMapIndex(iter.Key(), mv)
		}
		dst.Set(out)
		return nil
	}
	return fmt.Errorf("cannot assign %s to %s", src.Type(), dst.Type())
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
