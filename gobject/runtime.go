// Package gobject describes the foreign object runtime that goglib wraps:
// reference-counted instances with a runtime type, per-instance keyed data
// with destroy notification, and weak references.
//
// Two runtimes are provided. MemRuntime is implemented in Go and counts every
// Ref/Unref it receives; GLibRuntime forwards to libgobject-2.0 via purego.
package gobject

import "errors"

// Handle is an opaque native instance. Zero is the null handle.
type Handle uintptr

// Type is a runtime type tag. Zero is the invalid type.
type Type uintptr

// Quark is an interned string used as an instance data key.
type Quark uint32

// WeakToken names one weak reference slot owned by the runtime.
type WeakToken uintptr

// DestroyNotify runs when instance data is dropped by the runtime, either
// because the instance is finalized or because the data was replaced.
type DestroyNotify func()

// Runtime is the object model consumed by goglib.
//
// Ref and Unref must be atomic. Unref of the last reference finalizes the
// instance synchronously in the calling goroutine: weak tokens pointing at
// it are cleared first, then every DestroyNotify attached with SetData runs.
type Runtime interface {
	Ref(h Handle)
	Unref(h Handle)

	TypeOf(h Handle) Type
	// TypeParent returns 0 for a root type.
	TypeParent(t Type) Type
	TypeName(t Type) string
	IsA(t, ancestor Type) bool

	Quark(name string) Quark
	SetData(h Handle, key Quark, value uintptr, destroy DestroyNotify)
	GetData(h Handle, key Quark) uintptr
	// StealData removes the data without running its DestroyNotify.
	StealData(h Handle, key Quark) uintptr

	WeakInit(h Handle) WeakToken
	// WeakGet returns h with a new strong reference, or 0 if the instance is
	// gone or being finalized. It never returns a finalizing instance.
	WeakGet(tok WeakToken) Handle
	WeakSet(tok WeakToken, h Handle)
	// WeakClear releases the token. Clearing a zero token is a no-op.
	WeakClear(tok WeakToken)
}

// PropertyStore is implemented by runtimes that expose named instance
// properties.
type PropertyStore interface {
	GetProperty(h Handle, name string) (any, error)
	SetProperty(h Handle, name string, v any) error
}

var (
	// ErrNoSuchProperty is returned for an unknown property name.
	ErrNoSuchProperty = errors.New("gobject: no such property")

	// ErrUnsupportedValue is returned when a value type cannot be marshaled.
	ErrUnsupportedValue = errors.New("gobject: unsupported property value type")

	// ErrInvalidHandle is returned for a null or finalized handle.
	ErrInvalidHandle = errors.New("gobject: invalid handle")
)

// Ancestors returns t followed by each of its parents up to the root.
func Ancestors(rt Runtime, t Type) []Type {
	var chain []Type
	for ; t != 0; t = rt.TypeParent(t) {
		chain = append(chain, t)
	}
	return chain
}
