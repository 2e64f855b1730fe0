package goglib

import (
	"github.com/obinnaokechukwu/goglib/gobject"
)

// WeakRef observes a wrapper without keeping it alive. It holds a runtime
// weak token and the wrapper it was made from; the wrapper is non-nil only
// while the token is.
//
// The zero WeakRef is empty. Like Ref, a WeakRef must not be copied with
// plain assignment: use Clone or Move, and Reset when done.
type WeakRef[T Wrapped] struct {
	rt  gobject.Runtime
	tok gobject.WeakToken
	p   T
}

// NewWeakRef returns a weak reference to r's wrapper. It does not change the
// strong count. A null r gives an empty WeakRef.
func NewWeakRef[T Wrapped](r *Ref[T]) WeakRef[T] {
	if r.IsNil() {
		return WeakRef[T]{}
	}
	o := r.p.Base()
	return WeakRef[T]{rt: o.rt, tok: o.rt.WeakInit(o.handle), p: r.p}
}

// Get returns a strong reference, or a null Ref when the wrapper is gone.
// The runtime resolves the token and references the instance in one step,
// so the result is never a wrapper in the middle of destruction.
func (w *WeakRef[T]) Get() Ref[T] {
	if w.tok == 0 {
		return Ref[T]{}
	}
	h := w.rt.WeakGet(w.tok)
	if h == 0 {
		return Ref[T]{}
	}
	if h != w.p.Base().handle {
		// Token rebound behind our back; do not hand out the wrong wrapper.
		w.rt.Unref(h)
		return Ref[T]{}
	}
	return Adopt(w.p)
}

// Valid reports whether the wrapper was alive at the time of the call. With
// other goroutines dropping references the answer may be stale at once: use
// Get when the wrapper is going to be used.
func (w *WeakRef[T]) Valid() bool {
	r := w.Get()
	ok := !r.IsNil()
	r.Unref()
	return ok
}

// IsEmpty reports whether w holds no token.
func (w *WeakRef[T]) IsEmpty() bool {
	return w.tok == 0
}

// Clone returns an independent WeakRef with its own token. Cloning a
// WeakRef whose wrapper is gone gives an empty WeakRef.
func (w *WeakRef[T]) Clone() WeakRef[T] {
	return cloneWeak(w, w.p)
}

// Move transfers the token to the returned WeakRef and empties w.
func (w *WeakRef[T]) Move() WeakRef[T] {
	m := *w
	*w = WeakRef[T]{}
	return m
}

// Reset releases the token. Resetting an empty WeakRef does nothing.
func (w *WeakRef[T]) Reset() {
	if w.tok != 0 {
		w.rt.WeakClear(w.tok)
	}
	*w = WeakRef[T]{}
}

// CastWeakDynamic returns a WeakRef to w's wrapper as a U, with its own
// token. It is empty when w is empty, the wrapper is gone, or it is not a U.
func CastWeakDynamic[U Wrapped, T Wrapped](w *WeakRef[T]) WeakRef[U] {
	if w.tok == 0 {
		return WeakRef[U]{}
	}
	u, ok := any(w.p).(U)
	if !ok {
		return WeakRef[U]{}
	}
	return cloneWeak(w, u)
}

// cloneWeak pins the instance through w's token while a second token is
// initialized, so the new token never points at a finalized instance.
func cloneWeak[U Wrapped, T Wrapped](w *WeakRef[T], p U) WeakRef[U] {
	if w.tok == 0 {
		return WeakRef[U]{}
	}
	h := w.rt.WeakGet(w.tok)
	if h == 0 {
		return WeakRef[U]{}
	}
	c := WeakRef[U]{rt: w.rt, tok: w.rt.WeakInit(h), p: p}
	w.rt.Unref(h)
	return c
}
