package goglib

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/obinnaokechukwu/goglib/gobject"
	"github.com/obinnaokechukwu/goglib/internal/goid"
	"github.com/obinnaokechukwu/goglib/internal/handles"
	"github.com/obinnaokechukwu/goglib/internal/logging"
)

// Factory builds the wrapper for a freshly observed handle. base is already
// bound to the handle; the factory embeds it in its wrapper type and returns
// the wrapper, whose Base method must return base.
type Factory func(base *Object) ObjectWrapper

var registryIDs atomic.Uint64

// Registry maps native handles to their unique wrapper.
//
// The handle-to-wrapper link is instance data on the handle (a table id,
// since Go pointers cannot live in native memory). It is set once, when the
// wrapper is created, and removed only by the runtime when it finalizes the
// instance; that destroy notification is the only way a wrapper goes away.
//
// A Registry has no goroutine affinity and can be used before any loop
// exists.
type Registry struct {
	rt    gobject.Runtime
	quark gobject.Quark

	mu        sync.RWMutex
	factories map[gobject.Type]Factory

	// createMu guards the building and dying maps. It is never held while
	// a factory or a runtime call that may finalize an instance runs.
	createMu sync.Mutex
	building map[gobject.Handle]*pending
	dying    map[gobject.Handle]*Object

	wrappers handles.Table[*Object]

	log *logrus.Entry
}

// NewRegistry returns an empty registry over rt.
func NewRegistry(rt gobject.Runtime) *Registry {
	id := registryIDs.Add(1)
	return &Registry{
		rt:        rt,
		quark:     rt.Quark(fmt.Sprintf("goglib-wrapper-%d", id)),
		factories: make(map[gobject.Type]Factory),
		building:  make(map[gobject.Handle]*pending),
		dying:     make(map[gobject.Handle]*Object),
		log:       logging.For("goglib", "Registry").WithField("registry", id),
	}
}

// Runtime returns the runtime the registry wraps.
func (r *Registry) Runtime() gobject.Runtime {
	return r.rt
}

// RegisterFactory sets the factory for handles whose type is t, or derives
// from t without a closer registration. Registering t again replaces the
// previous factory.
func (r *Registry) RegisterFactory(t gobject.Type, f Factory) {
	if t == 0 || f == nil {
		panic("goglib: RegisterFactory needs a valid type and a factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[t]; dup {
		r.log.WithField("type", r.rt.TypeName(t)).Debug("replacing wrapper factory")
	}
	r.factories[t] = f
}

// factoryFor walks from t up its ancestor chain to the first registered
// factory.
func (r *Registry) factoryFor(t gobject.Type) (Factory, gobject.Type) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range gobject.Ancestors(r.rt, t) {
		if f, ok := r.factories[a]; ok {
			return f, a
		}
	}
	return nil, 0
}

// lookup returns the Object bound to h, or nil.
func (r *Registry) lookup(h gobject.Handle) *Object {
	id := r.rt.GetData(h, r.quark)
	if id == 0 {
		return nil
	}
	o, _ := r.wrappers.Lookup(uint64(id))
	return o
}

// Lookup returns the wrapper of h without creating one. It returns nil when
// h has no wrapper or its wrapper is being destroyed.
func (r *Registry) Lookup(h gobject.Handle) ObjectWrapper {
	if h == 0 {
		return nil
	}
	if o := r.lookup(h); o != nil && !o.IsDestroying() {
		return o.wrapper
	}
	return nil
}

// LookupOrCreate returns the wrapper of h, creating it with the factory of
// the closest registered ancestor type if there is none yet. With takeRef,
// a reference to h is added for the caller; without it the caller must
// already own one (for instance the reference a constructor returned).
//
// Factories run without registry locks held, so a factory may wrap other
// handles or drop references. Concurrent callers for the same handle wait
// for the first factory to finish and share its wrapper.
//
// It returns nil, and logs, when no factory matches or when h is being
// finalized.
func (r *Registry) LookupOrCreate(h gobject.Handle, takeRef bool) ObjectWrapper {
	if h == 0 {
		return nil
	}

	if o := r.lookup(h); o != nil {
		return r.hand(o, takeRef)
	}

	o, p := r.claim(h)
	if p == nil {
		if o == nil {
			return nil
		}
		return r.hand(o, takeRef)
	}

	t := r.rt.TypeOf(h)
	f, _ := r.factoryFor(t)
	if f == nil {
		r.log.WithFields(logrus.Fields{
			"handle": fmt.Sprintf("%#x", uintptr(h)),
			"type":   r.rt.TypeName(t),
		}).Error("no wrapper factory registered for type or any ancestor")
		r.settle(h, p)
		return nil
	}
	if o = r.attach(h, f, p); o == nil {
		return nil
	}
	if takeRef {
		r.rt.Ref(h)
	}
	return o.wrapper
}

// pending marks a handle whose wrapper is being built.
type pending struct {
	owner uint64
	obj   *Object
	done  chan struct{}
}

// claim either returns the existing wrapper of h or registers the caller as
// its builder. A nil pending with a nil Object means h cannot be wrapped.
func (r *Registry) claim(h gobject.Handle) (*Object, *pending) {
	r.createMu.Lock()
	if r.dying[h] != nil {
		r.createMu.Unlock()
		r.log.WithField("handle", fmt.Sprintf("%#x", uintptr(h))).
			Warn("refusing to wrap a handle whose wrapper is being destroyed")
		return nil, nil
	}
	if o := r.lookup(h); o != nil {
		r.createMu.Unlock()
		return o, nil
	}
	if p := r.building[h]; p != nil {
		r.createMu.Unlock()
		if p.owner == goid.Get() {
			r.log.WithField("handle", fmt.Sprintf("%#x", uintptr(h))).
				Error("wrapper factory asked for the handle it is wrapping")
			return nil, nil
		}
		<-p.done
		return p.obj, nil
	}
	p := &pending{owner: goid.Get(), done: make(chan struct{})}
	r.building[h] = p
	r.createMu.Unlock()
	return nil, p
}

// settle publishes the outcome of a build to waiting callers.
func (r *Registry) settle(h gobject.Handle, p *pending) {
	r.createMu.Lock()
	delete(r.building, h)
	r.createMu.Unlock()
	close(p.done)
}

func (r *Registry) hand(o *Object, takeRef bool) ObjectWrapper {
	if o.IsDestroying() {
		r.log.WithField("handle", fmt.Sprintf("%#x", uintptr(o.handle))).
			Warn("refusing to wrap a handle whose wrapper is being destroyed")
		return nil
	}
	if takeRef {
		r.rt.Ref(o.handle)
	}
	return o.wrapper
}

// Bind pairs a new handle with a wrapper built by f, regardless of the
// registered factories. The caller keeps the reference it owns on h.
// Binding a handle that already has a wrapper returns ErrAlreadyWrapped.
func (r *Registry) Bind(h gobject.Handle, f Factory) (ObjectWrapper, error) {
	if h == 0 || f == nil {
		return nil, fmt.Errorf("goglib: Bind needs a handle and a factory")
	}
	r.createMu.Lock()
	if r.dying[h] != nil || r.building[h] != nil || r.lookup(h) != nil {
		r.createMu.Unlock()
		r.log.WithField("handle", fmt.Sprintf("%#x", uintptr(h))).Warn("second wrapper for handle rejected")
		return nil, fmt.Errorf("%w: %#x", ErrAlreadyWrapped, uintptr(h))
	}
	p := &pending{owner: goid.Get(), done: make(chan struct{})}
	r.building[h] = p
	r.createMu.Unlock()

	o := r.attach(h, f, p)
	if o == nil {
		return nil, fmt.Errorf("goglib: factory returned no wrapper for %#x", uintptr(h))
	}
	return o.wrapper, nil
}

// attach runs f and links the wrapper to h. The caller must have claimed h;
// attach settles the claim whatever the outcome, including a panic in f.
func (r *Registry) attach(h gobject.Handle, f Factory, p *pending) *Object {
	defer r.settle(h, p)

	base := &Object{rt: r.rt, handle: h, reg: r}
	w := f(base)
	if w == nil {
		r.log.WithField("type", r.rt.TypeName(r.rt.TypeOf(h))).Error("wrapper factory returned nil")
		return nil
	}
	if w.Base() != base {
		panic(fmt.Sprintf("goglib: factory for %s returned %T not built on the given *Object",
			r.rt.TypeName(r.rt.TypeOf(h)), w))
	}
	base.wrapper = w
	base.id = r.wrappers.Register(base)
	r.rt.SetData(h, r.quark, uintptr(base.id), func() { r.finalize(base) })
	p.obj = base

	r.log.WithFields(logrus.Fields{
		"handle":  fmt.Sprintf("%#x", uintptr(h)),
		"wrapper": fmt.Sprintf("%T", w),
	}).Debug("wrapper created")
	return base
}

// finalize is the runtime's destroy notification for a wrapper's link.
func (r *Registry) finalize(o *Object) {
	r.createMu.Lock()
	o.dying.Store(true)
	r.dying[o.handle] = o
	r.createMu.Unlock()

	o.destroy()

	r.createMu.Lock()
	if r.dying[o.handle] == o {
		delete(r.dying, o.handle)
	}
	r.wrappers.Unregister(o.id)
	r.createMu.Unlock()
}

// Len returns the number of live wrappers.
func (r *Registry) Len() int {
	return r.wrappers.Len()
}

// Wrap returns an owning Ref to the wrapper of h as a T. Without takeRef the
// Ref adopts the reference the caller already holds. A missing wrapper or a
// wrapper of another type yields a null Ref; in the latter case a reference
// taken for takeRef is given back.
func Wrap[T Counted](r *Registry, h gobject.Handle, takeRef bool) Ref[T] {
	w := r.LookupOrCreate(h, takeRef)
	if w == nil {
		return Ref[T]{}
	}
	t, ok := w.(T)
	if !ok {
		if takeRef {
			r.rt.Unref(h)
		}
		r.log.WithFields(logrus.Fields{
			"wrapper": fmt.Sprintf("%T", w),
			"want":    reflect.TypeOf((*T)(nil)).Elem().String(),
		}).Warn("wrapper has an unexpected type")
		return Ref[T]{}
	}
	return Adopt(t)
}
