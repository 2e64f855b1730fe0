package goglib

import (
	"errors"
	"fmt"

	"github.com/obinnaokechukwu/goglib/gobject"
)

// Property is a typed accessor for one named property of a wrapper.
//
// V must be the Go type the runtime uses for the property; for GLib that is
// bool, int32, uint32, int64, uint64, float32, float64 or string.
type Property[V any] struct {
	obj  *Object
	name string
}

// NewProperty returns an accessor for the property name of w.
func NewProperty[V any](w ObjectWrapper, name string) Property[V] {
	return Property[V]{obj: w.Base(), name: name}
}

func (p Property[V]) Name() string {
	return p.name
}

func (p Property[V]) store() (gobject.PropertyStore, error) {
	if p.obj.IsDestroyed() {
		return nil, ErrDestroyed
	}
	s, ok := p.obj.rt.(gobject.PropertyStore)
	if !ok {
		return nil, fmt.Errorf("%w: properties on %T", ErrNotSupported, p.obj.rt)
	}
	return s, nil
}

// Get reads the property.
func (p Property[V]) Get() (V, error) {
	var zero V
	s, err := p.store()
	if err != nil {
		return zero, err
	}
	raw, err := s.GetProperty(p.obj.handle, p.name)
	if err != nil {
		return zero, p.wrap("get", err)
	}
	v, ok := raw.(V)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T, not %T", ErrPropertyType, p.name, raw, zero)
	}
	return v, nil
}

// Set writes the property.
func (p Property[V]) Set(v V) error {
	s, err := p.store()
	if err != nil {
		return err
	}
	if err := s.SetProperty(p.obj.handle, p.name, v); err != nil {
		return p.wrap("set", err)
	}
	return nil
}

func (p Property[V]) wrap(op string, err error) error {
	if errors.Is(err, gobject.ErrUnsupportedValue) {
		return fmt.Errorf("%w: %s property %q: %w", ErrPropertyType, op, p.name, err)
	}
	return fmt.Errorf("goglib: %s property %q: %w", op, p.name, err)
}
