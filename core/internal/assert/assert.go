// Package assert holds the fatal checks used for programming-invariant
// violations. A failed check panics with a *Violation; callers never
// recover from it.
package assert

import (
	"fmt"
	"reflect"
)

// Violation is the panic value of a failed assertion.
type Violation struct {
	Msg string
}

func (v *Violation) Error() string {
	return "invariant violation: " + v.Msg
}

// Fail panics unconditionally.
func Fail(format string, args ...any) {
	panic(&Violation{Msg: fmt.Sprintf(format, args...)})
}

// True panics when cond is false.
func True(cond bool, format string, args ...any) {
	if !cond {
		Fail(format, args...)
	}
}

// NotNil panics when v is nil, including typed nil pointers, maps,
// slices, funcs and channels stored in an interface.
func NotNil[T any](v T, what string) T {
	if IsNil(v) {
		Fail("%s must not be nil", what)
	}
	return v
}

// IsNil reports whether v is nil or holds a nil reference.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func,
		reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}
