// Package inject provides context-scoped capability slots.
//
// A Slot is declared once per process with a fallback. Overrides are bound to
// a context.Context, so a value installed for one call tree is never visible
// to a concurrently running one, and leaving the call tree restores the
// previous value simply by dropping the derived context.
package inject

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// ErrMissingContext is matched by every error a Missing fallback returns.
var ErrMissingContext = errors.New("missing context")

// MissingContextError reports a slot read outside any scope that binds it.
type MissingContextError struct {
	Slot string
}

func (e *MissingContextError) Error() string {
	return fmt.Sprintf("no %s in context", e.Slot)
}

// Is lets errors.Is(err, ErrMissingContext) match.
func (e *MissingContextError) Is(target error) bool {
	return target == ErrMissingContext
}

// Fallback produces the value of a slot when nothing is bound.
type Fallback[T any] func(slot string) (T, error)

// Value returns a fallback that always yields v.
func Value[T any](v T) Fallback[T] {
	return func(string) (T, error) { return v, nil }
}

// Missing is a fallback that fails with a *MissingContextError.
func Missing[T any](slot string) (T, error) {
	var zero T
	return zero, &MissingContextError{Slot: slot}
}

type slotKey struct {
	name string
}

// Slot is a named, typed capability.
type Slot[T any] struct {
	key      *slotKey
	fallback Fallback[T]
}

// Declare creates a new slot. Two declarations never share bindings, even
// with the same name.
func Declare[T any](name string, fallback Fallback[T]) *Slot[T] {
	if fallback == nil {
		fallback = Missing[T]
	}
	return &Slot[T]{key: &slotKey{name: name}, fallback: fallback}
}

// Name returns the slot name used in error messages.
func (s *Slot[T]) Name() string {
	return s.key.name
}

// Read returns the value bound in ctx, or the fallback.
func (s *Slot[T]) Read(ctx context.Context) (T, error) {
	if ctx != nil {
		if v, ok := ctx.Value(s.key).(T); ok {
			return v, nil
		}
	}
	return s.fallback(s.key.name)
}

// Bound reports whether ctx carries an override for the slot.
func (s *Slot[T]) Bound(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	_, ok := ctx.Value(s.key).(T)
	return ok
}

// Bind returns an override that installs v for the slot. A nil func, pointer,
// map, channel or interface binds nothing, so reads keep the value from the
// enclosing scope or the fallback.
func (s *Slot[T]) Bind(v T) Override {
	if isNil(v) {
		return Override{}
	}
	return Override{bindings: []binding{{key: s.key, value: v}}}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}
