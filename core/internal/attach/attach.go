// Package attach lets code running inside a framework-controlled callback
// hand exactly one typed value back to the code that invoked it.
//
// The caller declares a descriptor, runs the region and gets the value:
//
//	name := attach.Run(attach.CollectionName, func(y *attach.Yield[string]) {
//		hooks.RenderCollectionName(entity, func(s string) {
//			y.Yield(attach.CollectionName, s)
//		})
//	})
//
// Yielding against another descriptor, yielding twice, yielding nil or not
// yielding at all is a programming error and panics.
package attach

import (
	"github.com/qbloq/mongobridge/core/internal/assert"
)

// Descriptor is the untyped view shared by every ValueDescriptor.
type Descriptor interface {
	Name() string
	descriptor()
}

// ValueDescriptor identifies a slot carrying a value of type T. Two
// descriptors are only ever equal when they are the same instance.
type ValueDescriptor[T any] struct {
	name string
}

// NewDescriptor returns a fresh descriptor, distinct from every other.
func NewDescriptor[T any](name string) *ValueDescriptor[T] {
	return &ValueDescriptor[T]{name: name}
}

func (d *ValueDescriptor[T]) Name() string {
	return d.name
}

func (d *ValueDescriptor[T]) String() string {
	return d.name
}

func (d *ValueDescriptor[T]) descriptor() {}

var (
	// ColumnName carries a resolved document field path.
	ColumnName = NewDescriptor[string]("ColumnName")

	// CollectionName carries a resolved collection name.
	CollectionName = NewDescriptor[string]("CollectionName")
)

// Yield is the one-shot container handed to the protected region.
type Yield[T any] struct {
	descriptor Descriptor
	value      T
	set        bool
}

// Yield stores v. d must be the descriptor the caller declared.
func (y *Yield[T]) Yield(d Descriptor, v T) {
	assert.True(d == y.descriptor,
		"yielded against descriptor %s, expected %s", descriptorName(d), y.descriptor.Name())
	assert.True(!y.set, "value for %s already yielded", y.descriptor.Name())
	assert.True(!assert.IsNil(v), "value for %s must not be nil", y.descriptor.Name())
	y.value = v
	y.set = true
}

func (y *Yield[T]) get() T {
	assert.True(y.set, "no value yielded for %s", y.descriptor.Name())
	return y.value
}

// Run invokes fn with a fresh container bound to d and returns the value
// yielded inside it.
func Run[T any](d *ValueDescriptor[T], fn func(*Yield[T])) T {
	assert.True(d != nil, "descriptor must not be nil")
	y := &Yield[T]{descriptor: d}
	fn(y)
	return y.get()
}

func descriptorName(d Descriptor) string {
	if assert.IsNil(d) {
		return "<nil>"
	}
	return d.Name()
}
