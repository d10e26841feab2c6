package norma

import (
	"fmt"
)

// EmbeddedSlot is the non-generic introspection surface of an embedded
// settings field. The clone and merge engines operate on slots through this
// interface: they can tell whether a branch was ever materialized without
// forcing materialization, and they can install a deferred initializer that
// builds the branch on first access.
type EmbeddedSlot interface {
	// Materialized reports whether the slot holds a built instance.
	// It never triggers materialization.
	Materialized() bool
	// IsEmpty reports whether the slot holds neither a value nor a
	// deferred initializer.
	IsEmpty() bool
	// Resolve materializes the slot if needed and returns the instance,
	// or nil for an empty slot.
	Resolve() any
	// Assign stores a built instance directly, clearing any pending
	// initializer. A nil value empties the slot.
	Assign(value any) error
	// DeferTo installs a deferred initializer for the given embedded class.
	// The initializer runs at most once, on first Resolve/Get.
	DeferTo(class string, init func() any)
	// EmbeddedClass returns the class identifier stamped by DeferTo,
	// empty for slots that were only ever assigned directly.
	EmbeddedClass() string
}

// Embedded is a lazy slot for an embedded settings object. A slot is either
// empty, holds a direct value, or holds a deferred initializer that builds
// the value on first access; once built, the result is memoized on the slot
// and subsequent accesses are free. Slots are not safe for concurrent use,
// matching the synchronous call-and-return model of the rest of the core.
//
// Settings structs declare embedded settings as slot fields:
//
//	type AppSettings struct {
//		Proxy norma.Embedded[ProxySettings] `embedded:""`
//	}
type Embedded[T any] struct {
	value *T
	init  func() any
	class string
}

// EmbeddedOf returns a slot holding the given instance directly.
func EmbeddedOf[T any](value *T) Embedded[T] {
	return Embedded[T]{value: value}
}

// Get materializes the slot if a deferred initializer is pending and returns
// the embedded instance, or nil for an empty slot. The initializer runs at
// most once.
func (s *Embedded[T]) Get() *T {
	if s.value == nil && s.init != nil {
		init := s.init
		s.init = nil
		if v, ok := init().(*T); ok {
			s.value = v
		}
	}
	return s.value
}

// Set stores the instance directly, clearing any pending initializer.
func (s *Embedded[T]) Set(value *T) {
	s.value = value
	s.init = nil
}

// Materialized reports whether the slot holds a built instance.
func (s *Embedded[T]) Materialized() bool {
	return s.value != nil
}

// IsEmpty reports whether the slot holds neither a value nor an initializer.
func (s *Embedded[T]) IsEmpty() bool {
	return s.value == nil && s.init == nil
}

// Resolve implements EmbeddedSlot.
func (s *Embedded[T]) Resolve() any {
	if v := s.Get(); v != nil {
		return v
	}
	return nil
}

// Assign implements EmbeddedSlot.
func (s *Embedded[T]) Assign(value any) error {
	if value == nil {
		s.value = nil
		s.init = nil
		return nil
	}
	v, ok := value.(*T)
	if !ok {
		return NewInternalError(
			fmt.Sprintf("cannot assign %T to embedded slot of %T", value, (*T)(nil)), nil)
	}
	s.value = v
	s.init = nil
	return nil
}

// DeferTo implements EmbeddedSlot.
func (s *Embedded[T]) DeferTo(class string, init func() any) {
	s.class = class
	s.init = init
	s.value = nil
}

// EmbeddedClass implements EmbeddedSlot.
func (s *Embedded[T]) EmbeddedClass() string {
	return s.class
}
