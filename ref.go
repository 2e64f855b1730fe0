package goglib

import (
	"cmp"
	"fmt"
	"reflect"
)

// Referencer is implemented by types carrying an intrusive reference count.
type Referencer interface {
	Reference()
	Unreference()
}

// Counted is the element constraint of Ref. In practice T is a pointer to a
// wrapper type, or an interface such as ObjectWrapper.
type Counted interface {
	comparable
	Referencer
}

// Ref owns one reference to a T. The zero Ref is null.
//
// A Ref is a value with ownership: never copy one with plain assignment.
// Use Clone to obtain a second owning Ref, Move to transfer ownership, and
// Unref to give the reference back. Unref of the last reference may finalize
// the native instance synchronously, running destroy hooks of the wrapper
// and of everything it owned on the calling goroutine.
//
// Ref never returns an error. Get on a null Ref returns the zero T, which
// for pointer types behaves exactly like a nil pointer.
type Ref[T Counted] struct {
	p T
}

// Adopt wraps p without calling Reference: the caller hands over a
// reference it already owns, typically the one a native constructor
// returned.
func Adopt[T Counted](p T) Ref[T] {
	return Ref[T]{p: p}
}

// NewRef takes a new reference to p and returns it.
func NewRef[T Counted](p T) Ref[T] {
	var zero T
	if p != zero {
		p.Reference()
	}
	return Ref[T]{p: p}
}

// Get returns the referenced value without affecting ownership.
func (r *Ref[T]) Get() T {
	return r.p
}

// IsNil reports whether r is null.
func (r *Ref[T]) IsNil() bool {
	var zero T
	return r.p == zero
}

// Clone returns a second owning Ref to the same value.
func (r *Ref[T]) Clone() Ref[T] {
	if !r.IsNil() {
		r.p.Reference()
	}
	return Ref[T]{p: r.p}
}

// Move transfers ownership to the returned Ref and nulls r.
func (r *Ref[T]) Move() Ref[T] {
	return Ref[T]{p: r.Detach()}
}

// Unref gives the reference back and nulls r. r is null before
// Unreference runs, so destroy hooks never observe it.
func (r *Ref[T]) Unref() {
	if r.IsNil() {
		return
	}
	r.Detach().Unreference()
}

// Assign makes r share src's value. The previous value of r is released
// after the swap, so self-assignment is safe.
func (r *Ref[T]) Assign(src *Ref[T]) {
	tmp := src.Clone()
	r.Swap(&tmp)
	tmp.Unref()
}

// AssignMove transfers src's ownership into r, releasing r's previous value.
func (r *Ref[T]) AssignMove(src *Ref[T]) {
	tmp := src.Move()
	r.Swap(&tmp)
	tmp.Unref()
}

// Swap exchanges the values of r and o.
func (r *Ref[T]) Swap(o *Ref[T]) {
	r.p, o.p = o.p, r.p
}

// Detach nulls r and returns its value without calling Unreference. The
// caller becomes responsible for the reference.
func (r *Ref[T]) Detach() T {
	p := r.p
	var zero T
	r.p = zero
	return p
}

// Equal reports whether r and o refer to the same address.
func (r *Ref[T]) Equal(o *Ref[T]) bool {
	return addressOf(r.p) == addressOf(o.p)
}

// Less orders Refs by address, null first.
func (r *Ref[T]) Less(o *Ref[T]) bool {
	return addressOf(r.p) < addressOf(o.p)
}

func (r *Ref[T]) String() string {
	if r.IsNil() {
		return "Ref(nil)"
	}
	return fmt.Sprintf("Ref(%T@%#x)", r.p, addressOf(r.p))
}

// Compare orders Refs by address and is suitable for slices.SortFunc.
func Compare[T Counted](a, b *Ref[T]) int {
	return cmp.Compare(addressOf(a.p), addressOf(b.p))
}

// CastDynamic returns a new Ref to r's value as a U. It returns a null Ref,
// without touching the count, when r is null or its value is not a U. On
// success one reference is taken, so r keeps its own.
func CastDynamic[U Counted, T Counted](r *Ref[T]) Ref[U] {
	if r.IsNil() {
		return Ref[U]{}
	}
	u, ok := any(r.p).(U)
	if !ok {
		return Ref[U]{}
	}
	u.Reference()
	return Ref[U]{p: u}
}

// CastStatic is CastDynamic for conversions known to hold. A value that is
// not a U is a programming error and panics.
func CastStatic[U Counted, T Counted](r *Ref[T]) Ref[U] {
	if r.IsNil() {
		return Ref[U]{}
	}
	u, ok := any(r.p).(U)
	if !ok {
		panic(fmt.Sprintf("goglib: CastStatic of %T to %v", r.p, reflect.TypeOf((*U)(nil)).Elem()))
	}
	u.Reference()
	return Ref[U]{p: u}
}

// CastMove converts r to a Ref[U] by moving ownership, without reference
// count traffic. When r's value is not a U, r is left untouched and a null
// Ref is returned.
func CastMove[U Counted, T Counted](r *Ref[T]) Ref[U] {
	if r.IsNil() {
		return Ref[U]{}
	}
	u, ok := any(r.p).(U)
	if !ok {
		return Ref[U]{}
	}
	r.Detach()
	return Ref[U]{p: u}
}

// addressOf returns the address a pointer-like value refers to, or 0 for a
// nil value or a type without identity.
func addressOf(v any) uintptr {
	if v == nil {
		return 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Chan:
		return rv.Pointer()
	}
	return 0
}
